package definitions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates the given directories and files under a temp root
func makeTree(t *testing.T, dirs []string, files map[string]string) string {
	t.Helper()
	root := t.TempDir()

	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	return root
}

func TestResolver_AllSkipsReservedDirs(t *testing.T) {
	root := makeTree(t,
		[]string{"python3-minimal", ".git", ".github", "_templates", "r-tidyverse", "jupyterlab"},
		map[string]string{"README.md": "# bases"},
	)

	defs, err := NewResolver(root, "").Resolve(Wildcard)
	require.NoError(t, err)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		assert.Equal(t, filepath.Join(root, d.Name), d.Dir)
	}
	assert.Equal(t, []string{"jupyterlab", "python3-minimal", "r-tidyverse"}, names)
}

func TestResolver_AllIsDeterministic(t *testing.T) {
	root := makeTree(t, []string{"c", "a", "b"}, nil)
	resolver := NewResolver(root, "")

	first, err := resolver.Resolve(Wildcard)
	require.NoError(t, err)
	second, err := resolver.Resolve(Wildcard)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolver_CustomTemplatesDirIsReserved(t *testing.T) {
	root := makeTree(t, []string{"shared", "base"}, nil)

	defs, err := NewResolver(root, "shared").Resolve(Wildcard)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "base", defs[0].Name)
}

func TestResolver_SpecificName(t *testing.T) {
	root := makeTree(t, []string{"python3-minimal", "r-tidyverse"}, nil)

	defs, err := NewResolver(root, "").Resolve("r-tidyverse")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, Definition{Name: "r-tidyverse", Dir: filepath.Join(root, "r-tidyverse")}, defs[0])
}

func TestResolver_NotFound(t *testing.T) {
	root := makeTree(t, []string{"python3-minimal", "_templates"}, map[string]string{"notes.txt": "x"})
	resolver := NewResolver(root, "")

	tests := []struct {
		name     string
		selector string
	}{
		{name: "missing directory", selector: "does-not-exist"},
		{name: "regular file", selector: "notes.txt"},
		{name: "reserved directory", selector: "_templates"},
		{name: "path traversal", selector: "../etc"},
		{name: "empty selector", selector: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(tt.selector)
			require.Error(t, err)

			var nf NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.selector, nf.Name)
		})
	}
}

func TestResolver_MissingRoot(t *testing.T) {
	_, err := NewResolver(filepath.Join(t.TempDir(), "nope"), "").Resolve(Wildcard)
	assert.Error(t, err)
}
