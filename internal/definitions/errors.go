package definitions

import "fmt"

// NotFoundError is returned when a selector names a definition that does not exist
type NotFoundError struct {
	Name string
	Root string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("base not found: %s (root %s)", e.Name, e.Root)
}

// MissingBuildFileError is returned when a definition has neither a Dockerfile
// nor a valid template reference
type MissingBuildFileError struct {
	Dir string
	Err error
}

func (e MissingBuildFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not find a valid build file in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("could not find Dockerfile in %s", e.Dir)
}

func (e MissingBuildFileError) Unwrap() error {
	return e.Err
}
