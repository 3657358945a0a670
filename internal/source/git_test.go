package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitSource_HeadCommit(t *testing.T) {
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "python3-minimal"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python3-minimal", "Dockerfile"), []byte("FROM ubuntu\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("python3-minimal/Dockerfile")
	require.NoError(t, err)

	hash, err := wt.Commit("add python3-minimal", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Base Builder",
			Email: "builder@example.com",
			When:  time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	// Opening from a subdirectory finds the enclosing repository
	commit, err := NewGitSource(filepath.Join(dir, "python3-minimal")).HeadCommit()
	require.NoError(t, err)
	assert.Equal(t, hash.String(), commit)
	assert.Len(t, commit, 40)
}

func TestGitSource_NotARepository(t *testing.T) {
	_, err := NewGitSource(t.TempDir()).HeadCommit()
	assert.Error(t, err)
}

func TestGitSource_NoCommits(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = NewGitSource(dir).HeadCommit()
	assert.Error(t, err)
}
