package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/base-images/internal/builder/registry"
	"github.com/alvesdmateus/base-images/internal/builder/strategies"
	"github.com/alvesdmateus/base-images/internal/definitions"
	"github.com/alvesdmateus/base-images/internal/revision"
)

// localEngine stands in for the docker engine. Built images are kept in
// memory unless the definition label is listed in lost.
type localEngine struct {
	lost   map[string]bool
	images map[string]bool
	pushed []string
}

func newLocalEngine() *localEngine {
	return &localEngine{lost: map[string]bool{}, images: map[string]bool{}}
}

func (e *localEngine) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}
	if !e.lost[options.Labels["base-images.definition"]] {
		for _, tag := range options.Tags {
			e.images[tag] = true
		}
	}
	stream := `{"stream":"Step 1/1 : FROM ubuntu:22.04\n"}` + "\n" + `{"stream":"Successfully built\n"}` + "\n"
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(stream))}, nil
}

func (e *localEngine) ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error) {
	if !e.images[imageID] {
		return image.InspectResponse{}, nil, errors.New("No such image: " + imageID)
	}
	return image.InspectResponse{ID: "sha256:" + imageID}, nil, nil
}

func (e *localEngine) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	e.pushed = append(e.pushed, ref)
	stream := strings.Repeat(`{"status":"Pushing"}`+"\n", 5)
	return io.NopCloser(strings.NewReader(stream)), nil
}

type fixedCommit string

func (c fixedCommit) HeadCommit() (string, error) {
	return string(c), nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func baseRecord(repository, rev, tag string) string {
	return "revision: " + rev + "\nimage:\n  namespace: gigantum\n  repository: " + repository + "\n  tag: " + tag + "\n"
}

func TestRun_PipelineSecondImageMissing(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/Dockerfile":                       "FROM ubuntu:22.04\n",
		"a/a_r1.yaml":                        baseRecord("a", "1", "old"),
		"b/Dockerfile":                       "FROM ubuntu:22.04\n",
		"b/b_r1.yaml":                        baseRecord("b", "1", "old"),
		"c/dockerfile_template.json":         `{"template": "python3-base", "args": {"PYTHON_VERSION": "3.11"}}`,
		"c/c_r1.yaml":                        baseRecord("c", "1", "old"),
		"c/c_r2.yaml":                        baseRecord("c", "2", "old"),
		"c/c_r4.yaml":                        baseRecord("c", "4", "old"),
		"_templates/python3-base/Dockerfile": "FROM python:3\n",
	})

	engine := newLocalEngine()
	engine.lost["b"] = true

	var out bytes.Buffer
	publisher, err := registry.NewPublisher(engine, registry.Config{}, &out, &out)
	require.NoError(t, err)

	specs := definitions.NewTemplateResolver(definitions.TemplateResolverConfig{Root: root}, fixedCommit("3f9a1c0be2d4e5f60718293a4b5c6d7e8f901234")).
		WithClock(func() time.Time { return time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC) })

	var failures []failure
	o := New(Deps{
		Resolver:  definitions.NewResolver(root, definitions.DefaultTemplatesDir),
		Specs:     specs,
		Builder:   strategies.NewDockerStrategy(engine, strategies.Output{Out: &out}),
		Publisher: publisher,
		Revisions: revision.NewTracker(),
		Reporter: ReporterFunc(func(definition string, stage Stage, err error) {
			failures = append(failures, failure{definition, stage, err})
		}),
		Out:    &out,
		Logger: zerolog.Nop(),
	})

	results, err := o.Run(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Definition)
	assert.Equal(t, "c", results[1].Definition)
	for _, r := range results {
		assert.True(t, r.Published)
		assert.Equal(t, "3f9a1c0be2-2024-03-07", r.Tag)
	}

	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].definition)
	assert.Equal(t, StageBuild, failures[0].stage)
	var verr strategies.BuildVerificationError
	assert.True(t, errors.As(failures[0].err, &verr))

	assert.Equal(t, []string{
		"gigantum/a:3f9a1c0be2-2024-03-07",
		"gigantum/c:3f9a1c0be2-2024-03-07",
	}, engine.pushed)

	assert.Equal(t, filepath.Join(root, "a", "a_r2.yaml"), results[0].RecordPath)
	assert.Equal(t, filepath.Join(root, "c", "c_r5.yaml"), results[1].RecordPath)
	record, err := revision.LoadRecord(results[1].RecordPath)
	require.NoError(t, err)
	assert.Equal(t, 5, record.Revision)
	assert.Equal(t, "gigantum/c:3f9a1c0be2-2024-03-07", record.Image.Reference())

	assert.NoFileExists(t, filepath.Join(root, "b", "b_r2.yaml"))
	assert.Contains(t, out.String(), "Pushing....")
}
