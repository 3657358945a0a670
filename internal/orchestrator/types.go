package orchestrator

import (
	"context"
	"fmt"

	"github.com/alvesdmateus/base-images/internal/definitions"
	"github.com/alvesdmateus/base-images/internal/state"
)

// Stage names the step of the per-definition pipeline an item reached
type Stage string

const (
	StageResolve Stage = "resolve"
	StageBuild   Stage = "build"
	StagePublish Stage = "publish"
	StageRecord  Stage = "record"
	StageDone    Stage = "done"
)

// RunOptions controls one batch run
type RunOptions struct {
	// Selector is a definition name or definitions.Wildcard
	Selector  string
	Namespace string
	BuildOnly bool
	NoCache   bool
	// AutoRevision writes a new revision record after each successful publish
	AutoRevision bool
}

// BatchResult is the outcome of one definition that built successfully
type BatchResult struct {
	Definition string
	Namespace  string
	Repository string
	Tag        string
	Published  bool
	// RecordPath is the revision record written for this publish, empty if none
	RecordPath string
	BuildOnly  bool
}

// Reference renders namespace/repository:tag
func (r BatchResult) Reference() string {
	return fmt.Sprintf("%s/%s:%s", r.Namespace, r.Repository, r.Tag)
}

// Reporter is told about every item that failed at some stage
type Reporter interface {
	ItemFailed(definition string, stage Stage, err error)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(definition string, stage Stage, err error)

func (f ReporterFunc) ItemFailed(definition string, stage Stage, err error) {
	f(definition, stage, err)
}

// SetResolver selects the definitions of a run
type SetResolver interface {
	Resolve(selector string) ([]definitions.Definition, error)
}

// SpecResolver turns a definition into a build spec
type SpecResolver interface {
	Resolve(def definitions.Definition) (definitions.BuildSpec, error)
}

// Builder builds and verifies one image
type Builder interface {
	Build(ctx context.Context, spec definitions.BuildSpec, namespace, repository string, noCache bool) (definitions.PublishTarget, error)
}

// Publisher pushes one image
type Publisher interface {
	Publish(ctx context.Context, target definitions.PublishTarget) (bool, error)
}

// RevisionRecorder writes the next revision record of a definition
type RevisionRecorder interface {
	RecordPublish(ctx context.Context, def definitions.Definition, namespace, repository, tag string) (string, error)
}

// HistoryRecorder stores item outcomes
type HistoryRecorder interface {
	RecordItem(ctx context.Context, record *state.BuildRecord) error
}
