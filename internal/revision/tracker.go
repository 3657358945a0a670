package revision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/alvesdmateus/base-images/internal/definitions"
)

// Tracker maintains the revision records of every definition touched in a run.
// Each definition directory is indexed once and then served from memory.
type Tracker struct {
	mu      sync.Mutex
	indexes map[string]*Index
}

// NewTracker creates a new revision tracker
func NewTracker() *Tracker {
	return &Tracker{
		indexes: make(map[string]*Index),
	}
}

// Index returns the cached index for def, loading it on first use
func (t *Tracker) Index(def definitions.Definition) (*Index, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index(def)
}

func (t *Tracker) index(def definitions.Definition) (*Index, error) {
	if idx, ok := t.indexes[def.Dir]; ok {
		return idx, nil
	}

	idx, err := LoadIndex(def.Dir)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("definition", def.Name).
		Ints("revisions", idx.Revisions()).
		Msg("Indexed revision records")

	t.indexes[def.Dir] = idx
	return idx, nil
}

// Latest returns the authoritative record of def
func (t *Tracker) Latest(def definitions.Definition) (Entry, error) {
	idx, err := t.Index(def)
	if err != nil {
		return Entry{}, err
	}

	latest, ok := idx.Latest()
	if !ok {
		return Entry{}, NoBaseRevisionError{Definition: def.Name, Dir: def.Dir}
	}
	return latest, nil
}

// RecordPublish writes <name>_r<N>.yaml for a confirmed publish, where N is one
// more than the highest existing revision. The new record starts from the
// latest one so unknown keys survive. An existing file is never replaced.
func (t *Tracker) RecordPublish(ctx context.Context, def definitions.Definition, namespace, repository, tag string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.index(def)
	if err != nil {
		return "", err
	}

	base, ok := idx.Latest()
	if !ok {
		return "", NoBaseRevisionError{Definition: def.Name, Dir: def.Dir}
	}

	next := base.Record.Next(base.Revision+1, namespace, repository, tag)
	path := filepath.Join(def.Dir, fmt.Sprintf("%s_r%d.yaml", def.Name, next.Revision))

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(next); err != nil {
		return "", fmt.Errorf("failed to encode revision record: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode revision record: %w", err)
	}

	if err := writeExclusive(def.Dir, path, buf.Bytes()); err != nil {
		return "", err
	}

	if err := idx.add(Entry{Revision: next.Revision, Path: path, Record: next}); err != nil {
		return "", err
	}

	log.Info().
		Str("definition", def.Name).
		Int("revision", next.Revision).
		Str("path", path).
		Msg("Revision record written")

	return path, nil
}

// writeExclusive stages data in a temp file and links it into place, so the
// final path either does not exist or holds the complete record.
func writeExclusive(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create revision record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write revision record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write revision record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write revision record: %w", err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("revision record %s already exists", path)
		}
		return fmt.Errorf("failed to write revision record: %w", err)
	}
	return nil
}
