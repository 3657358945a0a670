package source

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// GitSource reads the checked-out commit of the repository containing a path
type GitSource struct {
	path string
}

// NewGitSource creates a version source for the repository containing path.
// Parent directories are searched for the .git directory.
func NewGitSource(path string) *GitSource {
	return &GitSource{path: path}
}

// HeadCommit returns the full hash of HEAD
func (s *GitSource) HeadCommit() (string, error) {
	repo, err := git.PlainOpenWithOptions(s.path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open git repository at %s: %w", s.path, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	return ref.Hash().String(), nil
}
