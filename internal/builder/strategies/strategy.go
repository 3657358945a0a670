package strategies

import (
	"context"
	"fmt"

	"github.com/alvesdmateus/base-images/internal/definitions"
)

// Strategy defines how to build container images
type Strategy interface {
	// Build builds the image described by spec and tags it namespace/repository:spec.TagSuffix
	Build(ctx context.Context, spec definitions.BuildSpec, namespace, repository string, noCache bool) (definitions.PublishTarget, error)

	// Name returns the strategy name (e.g., "docker")
	Name() string
}

// StrategyType defines the type of build strategy
type StrategyType string

const (
	StrategyTypeDocker StrategyType = "docker"
)

// StrategyFactory creates build strategies bound to one engine handle
type StrategyFactory struct {
	engine BuildEngine
	output Output
}

// NewStrategyFactory creates a new strategy factory
func NewStrategyFactory(engine BuildEngine, output Output) *StrategyFactory {
	return &StrategyFactory{
		engine: engine,
		output: output,
	}
}

// CreateStrategy creates a build strategy based on the specified type
func (f *StrategyFactory) CreateStrategy(strategyType StrategyType) (Strategy, error) {
	switch strategyType {
	case StrategyTypeDocker, "":
		return NewDockerStrategy(f.engine, f.output), nil
	default:
		return nil, ErrUnknownStrategy{Type: strategyType}
	}
}

// ErrUnknownStrategy is returned when an unknown strategy type is requested
type ErrUnknownStrategy struct {
	Type StrategyType
}

func (e ErrUnknownStrategy) Error() string {
	return "unknown strategy type: " + string(e.Type)
}

// BuildVerificationError is returned when the engine reported a failure or the
// tagged image is missing from local storage after the build stream completed
type BuildVerificationError struct {
	Context  string
	ImageTag string
	Err      error
}

func (e BuildVerificationError) Error() string {
	return fmt.Sprintf("image build failed for %s (%s): %v", e.Context, e.ImageTag, e.Err)
}

func (e BuildVerificationError) Unwrap() error {
	return e.Err
}
