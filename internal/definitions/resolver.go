package definitions

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Wildcard selects every definition under the root
const Wildcard = "all"

// DefaultTemplatesDir holds the shared build contexts referenced by descriptors
const DefaultTemplatesDir = "_templates"

// Resolver enumerates the definitions to process for a selector
type Resolver struct {
	root     string
	reserved map[string]bool
}

// NewResolver creates a resolver rooted at root. The templates directory is
// always reserved, alongside version control and CI metadata.
func NewResolver(root, templatesDir string) *Resolver {
	if templatesDir == "" {
		templatesDir = DefaultTemplatesDir
	}

	return &Resolver{
		root: root,
		reserved: map[string]bool{
			".git":       true,
			".github":    true,
			templatesDir: true,
		},
	}
}

// Root returns the definitions root directory
func (r *Resolver) Root() string {
	return r.root
}

// IsReserved reports whether name is an internal directory that never holds a definition
func (r *Resolver) IsReserved(name string) bool {
	return r.reserved[name]
}

// Resolve returns the definitions named by selector in lexical order
func (r *Resolver) Resolve(selector string) ([]Definition, error) {
	if selector == Wildcard {
		return r.all()
	}

	def, err := r.one(selector)
	if err != nil {
		return nil, err
	}
	return []Definition{def}, nil
}

func (r *Resolver) one(name string) (Definition, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || r.IsReserved(name) {
		return Definition{}, NotFoundError{Name: name, Root: r.root}
	}

	dir := filepath.Join(r.root, name)
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return Definition{}, NotFoundError{Name: name, Root: r.root}
	}

	return Definition{Name: name, Dir: dir}, nil
}

func (r *Resolver) all() ([]Definition, error) {
	// ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions root %s: %w", r.root, err)
	}

	var defs []Definition
	for _, entry := range entries {
		if !entry.IsDir() || r.IsReserved(entry.Name()) {
			continue
		}
		defs = append(defs, Definition{
			Name: entry.Name(),
			Dir:  filepath.Join(r.root, entry.Name()),
		})
	}

	log.Debug().
		Str("root", r.root).
		Int("count", len(defs)).
		Msg("Resolved all base definitions")

	return defs, nil
}
