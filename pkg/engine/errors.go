package engine

import "errors"

var (
	// ErrConfig means the store root is missing or not a recognized vault.
	ErrConfig = errors.New("configuration error")

	// ErrBusy means another run holds the guard.
	ErrBusy = errors.New("sync already in progress")

	// ErrAccess means the destination was never authorized.
	ErrAccess = errors.New("destination access not granted")
)
