package strategies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/base-images/internal/definitions"
)

// BuildEngine is the part of the docker engine API the build driver uses
type BuildEngine interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error)
}

// Output is where engine output is forwarded as it arrives
type Output struct {
	Out io.Writer
	Err io.Writer
}

func (o Output) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o Output) err() io.Writer {
	if o.Err == nil {
		return o.out()
	}
	return o.Err
}

// DockerStrategy implements Strategy using the docker engine API
type DockerStrategy struct {
	engine BuildEngine
	output Output
}

// NewDockerStrategy creates a new Docker build strategy
func NewDockerStrategy(engine BuildEngine, output Output) *DockerStrategy {
	return &DockerStrategy{
		engine: engine,
		output: output,
	}
}

// Name returns the strategy name
func (s *DockerStrategy) Name() string {
	return string(StrategyTypeDocker)
}

// Build builds spec.ContextDir, streams every log fragment to the operator
// output and verifies the tagged image exists locally afterwards
func (s *DockerStrategy) Build(ctx context.Context, spec definitions.BuildSpec, namespace, repository string, noCache bool) (definitions.PublishTarget, error) {
	startTime := time.Now()
	target := definitions.PublishTarget{
		Namespace:  namespace,
		Repository: repository,
		Tag:        spec.TagSuffix,
	}
	imageTag := target.Reference()

	log.Info().
		Str("imageTag", imageTag).
		Str("definition", spec.Definition.Name).
		Str("context", spec.ContextDir).
		Bool("noCache", noCache).
		Msg("Building Docker image")

	buildContextTar, err := createBuildContext(spec.ContextDir)
	if err != nil {
		return target, fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildContextTar.Close()

	buildOptions := types.ImageBuildOptions{
		Tags:       []string{imageTag},
		Dockerfile: definitions.DefaultBuildFile,
		NoCache:    noCache,
		Remove:     true, // Remove intermediate containers
		PullParent: true, // Always pull newer base layers
		BuildArgs:  spec.EngineBuildArgs(),
		Labels: map[string]string{
			"base-images.definition": spec.Definition.Name,
		},
	}

	buildResponse, err := s.engine.ImageBuild(ctx, buildContextTar, buildOptions)
	if err != nil {
		return target, BuildVerificationError{
			Context:  spec.ContextDir,
			ImageTag: imageTag,
			Err:      fmt.Errorf("docker build failed: %w", err),
		}
	}
	defer buildResponse.Body.Close()

	if err := s.streamBuildOutput(ctx, buildResponse.Body); err != nil {
		return target, BuildVerificationError{
			Context:  spec.ContextDir,
			ImageTag: imageTag,
			Err:      err,
		}
	}

	// The stream can end cleanly without producing an image, so check local storage
	imageInspect, _, err := s.engine.ImageInspectWithRaw(ctx, imageTag)
	if err != nil {
		return target, BuildVerificationError{
			Context:  spec.ContextDir,
			ImageTag: imageTag,
			Err:      fmt.Errorf("built image not found: %w", err),
		}
	}

	log.Info().
		Str("imageTag", imageTag).
		Str("imageID", imageInspect.ID).
		Dur("duration", time.Since(startTime)).
		Msg("Docker build completed successfully")

	return target, nil
}

// streamBuildOutput forwards build fragments one at a time. An engine-reported
// error does not stop consumption; it is returned once the stream is drained.
func (s *DockerStrategy) streamBuildOutput(ctx context.Context, reader io.Reader) error {
	decoder := json.NewDecoder(reader)
	var buildErrs []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}

		switch {
		case msg.Error != nil || msg.ErrorMessage != "":
			text := msg.ErrorMessage
			if msg.Error != nil && msg.Error.Message != "" {
				text = msg.Error.Message
			}
			fmt.Fprintf(s.output.err(), "%s\n", text)
			buildErrs = append(buildErrs, text)
		case msg.Stream != "":
			fmt.Fprint(s.output.out(), msg.Stream)
		case msg.Status != "":
			if msg.ID != "" {
				fmt.Fprintf(s.output.out(), "%s: %s\n", msg.ID, msg.Status)
			} else {
				fmt.Fprintln(s.output.out(), msg.Status)
			}
		case msg.Aux != nil:
			log.Debug().RawJSON("aux", *msg.Aux).Msg("Build aux message")
		}
	}

	if len(buildErrs) > 0 {
		return fmt.Errorf("build error: %s", strings.Join(buildErrs, "; "))
	}
	return nil
}

// createBuildContext tars contextDir, honouring its .dockerignore
func createBuildContext(contextDir string) (io.ReadCloser, error) {
	excludes, err := readDockerignore(contextDir)
	if err != nil {
		return nil, err
	}

	return archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
}

func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open .dockerignore: %w", err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .dockerignore: %w", err)
	}

	// The engine needs the Dockerfile even when the ignore file excludes it
	kept := patterns[:0]
	for _, p := range patterns {
		if p == definitions.DefaultBuildFile || p == ".dockerignore" {
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}
