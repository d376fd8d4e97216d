package catalog

import (
	"errors"
	"fmt"
)

// ErrNoModelsFound is returned when a scan succeeds but yields no usable package.
var ErrNoModelsFound = errors.New("no models found")

// directoryNoAccessError reports that the models root itself could not be enumerated.
type directoryNoAccessError struct {
	dir string
	err error
}

func (e directoryNoAccessError) Error() string {
	return fmt.Sprintf("cannot access models directory %s: %v", e.dir, e.err)
}

func (e directoryNoAccessError) Unwrap() error { return e.err }

// IsDirectoryNoAccess reports whether err came from an unreadable models root.
func IsDirectoryNoAccess(err error) bool {
	var target directoryNoAccessError
	return errors.As(err, &target)
}

// IsNoModelsFound reports whether err means the scan produced an empty catalog.
func IsNoModelsFound(err error) bool { return errors.Is(err, ErrNoModelsFound) }
