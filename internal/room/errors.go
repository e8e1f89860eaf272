package room

import "errors"

var (
	// ErrValidation reports input rejected before it reached the registry.
	ErrValidation = errors.New("validation error")
	// ErrNotFound reports a room or participant that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is reserved for participant authorization.
	ErrPermissionDenied = errors.New("permission denied")
)
