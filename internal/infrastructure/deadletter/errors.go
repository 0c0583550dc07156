package deadletter

import "errors"

// Sentinel errors for dead-letter operations.
var (
	// ErrDisabled indicates dead-lettering is disabled in config.
	ErrDisabled = errors.New("deadletter: disabled in configuration")

	// ErrRecordFailed indicates a record could not be persisted.
	ErrRecordFailed = errors.New("deadletter: record failed")
)
