package repo_errors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrContention means the per-auction lock could not be taken in time.
	// The caller may retry the whole operation.
	ErrContention = errors.New("auction is locked by a concurrent operation")
)
