package model

import "errors"

var (
	// ErrStale means the line at the recorded position no longer matches the
	// one captured at scan time. Nothing was written.
	ErrStale = errors.New("task line changed since scan")

	// ErrOperationDisabled is returned by operations that must never run, such
	// as rewriting a task line from parsed fields.
	ErrOperationDisabled = errors.New("operation disabled")
)
