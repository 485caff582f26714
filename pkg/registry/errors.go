package registry

import "errors"

var (
	// ErrProjectNotFound is returned when the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidProjectName is returned for an empty project name.
	ErrInvalidProjectName = errors.New("invalid project name")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
