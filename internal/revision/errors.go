package revision

import (
	"fmt"
	"strings"
)

// NoBaseRevisionError is returned when a definition has no revision record to
// derive the next one from
type NoBaseRevisionError struct {
	Definition string
	Dir        string
}

func (e NoBaseRevisionError) Error() string {
	return fmt.Sprintf("no base revision record found for %s in %s", e.Definition, e.Dir)
}

// DuplicateRevisionError is returned when two record files claim the same revision
type DuplicateRevisionError struct {
	Revision int
	Paths    []string
}

func (e DuplicateRevisionError) Error() string {
	return fmt.Sprintf("revision %d is defined more than once: %s", e.Revision, strings.Join(e.Paths, ", "))
}
