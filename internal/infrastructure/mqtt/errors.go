package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNoTopics is returned when no topic filters are configured.
	ErrNoTopics = errors.New("mqtt: at least one topic filter is required")
)
