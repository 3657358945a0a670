package definitions

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	commit string
	err    error
}

func (s fixedSource) HeadCommit() (string, error) {
	return s.commit, s.err
}

const testCommit = "3f9a1c0be27d44e1a0b7e4f1c2d3e4f5a6b7c8d9"

var fixedNow = func() time.Time {
	return time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC)
}

func newTestResolver(root string) *TemplateResolver {
	return NewTemplateResolver(TemplateResolverConfig{Root: root}, fixedSource{commit: testCommit}).WithClock(fixedNow)
}

func TestTemplateResolver_DirectDockerfile(t *testing.T) {
	root := makeTree(t, nil, map[string]string{
		"python3-minimal/Dockerfile": "FROM ubuntu:22.04\n",
	})
	def := Definition{Name: "python3-minimal", Dir: filepath.Join(root, "python3-minimal")}

	spec, err := newTestResolver(root).Resolve(def)
	require.NoError(t, err)

	assert.Equal(t, def, spec.Definition)
	assert.Equal(t, def.Dir, spec.ContextDir)
	assert.Empty(t, spec.Template)
	assert.Nil(t, spec.BuildArgs)
	assert.Nil(t, spec.EngineBuildArgs())
	assert.Equal(t, "3f9a1c0be2-2024-03-07", spec.TagSuffix)
}

func TestTemplateResolver_TemplateReference(t *testing.T) {
	root := makeTree(t, nil, map[string]string{
		"_templates/python3-base/Dockerfile":  "ARG PYTHON_VERSION\nFROM python:${PYTHON_VERSION}\n",
		"python3.11/dockerfile_template.json": `{"template": "python3-base", "args": {"PYTHON_VERSION": "3.11", "CONDA": "no"}}`,
	})
	def := Definition{Name: "python3.11", Dir: filepath.Join(root, "python3.11")}

	spec, err := newTestResolver(root).Resolve(def)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "_templates", "python3-base"), spec.ContextDir)
	assert.Equal(t, "python3-base", spec.Template)
	assert.Equal(t, map[string]string{"PYTHON_VERSION": "3.11", "CONDA": "no"}, spec.BuildArgs)
	assert.Equal(t, []string{"CONDA", "PYTHON_VERSION"}, spec.BuildArgNames())

	engineArgs := spec.EngineBuildArgs()
	require.Contains(t, engineArgs, "PYTHON_VERSION")
	assert.Equal(t, "3.11", *engineArgs["PYTHON_VERSION"])
}

func TestTemplateResolver_MissingDockerfile(t *testing.T) {
	root := makeTree(t, []string{"empty-base"}, nil)
	def := Definition{Name: "empty-base", Dir: filepath.Join(root, "empty-base")}

	_, err := newTestResolver(root).Resolve(def)
	require.Error(t, err)

	var missing MissingBuildFileError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, def.Dir, missing.Dir)
	assert.Contains(t, err.Error(), "could not find Dockerfile")
}

func TestTemplateResolver_TemplateWithoutDockerfile(t *testing.T) {
	root := makeTree(t, []string{"_templates/broken"}, map[string]string{
		"base/dockerfile_template.json": `{"template": "broken"}`,
	})
	def := Definition{Name: "base", Dir: filepath.Join(root, "base")}

	_, err := newTestResolver(root).Resolve(def)

	var missing MissingBuildFileError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, filepath.Join(root, "_templates", "broken"), missing.Dir)
}

func TestTemplateResolver_InvalidDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
	}{
		{name: "not json", descriptor: "template: python3-base"},
		{name: "missing template", descriptor: `{"args": {"A": "1"}}`},
		{name: "empty template", descriptor: `{"template": ""}`},
		{name: "template with path", descriptor: `{"template": "../outside"}`},
		{name: "current directory template", descriptor: `{"template": "."}`},
		{name: "parent directory template", descriptor: `{"template": ".."}`},
		{name: "non-string arg", descriptor: `{"template": "python3-base", "args": {"A": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeTree(t, nil, map[string]string{
				"_templates/python3-base/Dockerfile": "FROM python\n",
				"base/Dockerfile":                    "FROM ubuntu\n",
				"base/dockerfile_template.json":      tt.descriptor,
			})
			def := Definition{Name: "base", Dir: filepath.Join(root, "base")}

			_, err := newTestResolver(root).Resolve(def)

			var missing MissingBuildFileError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, def.Dir, missing.Dir)
			assert.Error(t, missing.Err)
		})
	}
}

func TestTemplateResolver_SourceVersionError(t *testing.T) {
	root := makeTree(t, nil, map[string]string{"base/Dockerfile": "FROM ubuntu\n"})
	resolver := NewTemplateResolver(TemplateResolverConfig{Root: root}, fixedSource{err: errors.New("not a git repository")})

	_, err := resolver.Resolve(Definition{Name: "base", Dir: filepath.Join(root, "base")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit hash")
}

func TestTagSuffix_Deterministic(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{10}-\d{4}-\d{2}-\d{2}$`)
	now := time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)

	first, err := TagSuffix(testCommit, now)
	require.NoError(t, err)
	second, err := TagSuffix(testCommit, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "3f9a1c0be2-2023-12-31", first)
	assert.Regexp(t, pattern, first)
}

func TestTagSuffix_UsesUTCDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2024-01-01 08:00 in Tokyo is still 2023-12-31 in UTC
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, tokyo)

	tag, err := TagSuffix(testCommit, now)
	require.NoError(t, err)
	assert.Equal(t, "3f9a1c0be2-2023-12-31", tag)
}

func TestTagSuffix_InvalidCommit(t *testing.T) {
	tests := []string{"", "abc123", "zzzzzzzzzzzzzzzz", "3f9a1c0b"}

	for _, commit := range tests {
		_, err := TagSuffix(commit, fixedNow())
		assert.Error(t, err, "commit %q", commit)
	}
}

func TestTagSuffix_NormalizesCase(t *testing.T) {
	tag, err := TagSuffix("  3F9A1C0BE27D44E1  ", fixedNow())
	require.NoError(t, err)
	assert.Equal(t, "3f9a1c0be2-2024-03-07", tag)
}

func TestPublishTarget_Reference(t *testing.T) {
	target := PublishTarget{Namespace: "gigantum", Repository: "python3-minimal", Tag: "3f9a1c0be2-2024-03-07"}

	assert.Equal(t, "gigantum/python3-minimal", target.Image())
	assert.Equal(t, "gigantum/python3-minimal:3f9a1c0be2-2024-03-07", target.Reference())
}
