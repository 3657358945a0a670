package revision

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Entry is one record file in an index
type Entry struct {
	Revision int
	Path     string
	Record   Record
}

// Index holds the revision records of one definition ordered by revision
type Index struct {
	dir     string
	entries []Entry
}

// LoadIndex reads every *.yaml file in dir. Revision numbers must be unique.
func LoadIndex(dir string) (*Index, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list revision records: %w", err)
	}

	idx := &Index{dir: dir}
	for _, path := range paths {
		record, err := LoadRecord(path)
		if err != nil {
			return nil, err
		}
		idx.entries = append(idx.entries, Entry{Revision: record.Revision, Path: path, Record: record})
	}

	sort.SliceStable(idx.entries, func(i, j int) bool {
		return idx.entries[i].Revision < idx.entries[j].Revision
	})

	for i := 1; i < len(idx.entries); i++ {
		prev, cur := idx.entries[i-1], idx.entries[i]
		if prev.Revision == cur.Revision {
			return nil, DuplicateRevisionError{Revision: cur.Revision, Paths: []string{prev.Path, cur.Path}}
		}
	}

	return idx, nil
}

// Dir returns the directory the index was loaded from
func (idx *Index) Dir() string {
	return idx.dir
}

// Len returns the number of records
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Latest returns the entry with the highest revision
func (idx *Index) Latest() (Entry, bool) {
	if len(idx.entries) == 0 {
		return Entry{}, false
	}
	return idx.entries[len(idx.entries)-1], true
}

// Revisions lists the known revision numbers in ascending order
func (idx *Index) Revisions() []int {
	revisions := make([]int, len(idx.entries))
	for i, e := range idx.entries {
		revisions[i] = e.Revision
	}
	return revisions
}

func (idx *Index) add(entry Entry) error {
	for _, e := range idx.entries {
		if e.Revision == entry.Revision {
			return DuplicateRevisionError{Revision: entry.Revision, Paths: []string{e.Path, entry.Path}}
		}
	}

	idx.entries = append(idx.entries, entry)
	sort.SliceStable(idx.entries, func(i, j int) bool {
		return idx.entries[i].Revision < idx.entries[j].Revision
	})
	return nil
}
