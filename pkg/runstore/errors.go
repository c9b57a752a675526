package runstore

import "fmt"

// RunNotFoundError is returned when run state is read from a directory or
// step that does not exist.
type RunNotFoundError struct {
	Path string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run state not found at %s", e.Path)
}
