package sink

import "errors"

// Sentinel errors for sink operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, sink.ErrValueType) {
//	    // Divert the record to the dead-letter store
//	}
var (
	// ErrInvalidPrecision indicates an unknown time precision code.
	// Valid codes are "ms", "ns", "us", and "s".
	ErrInvalidPrecision = errors.New("sink: invalid time precision")

	// ErrKeyOverlap indicates a key configured as both a field and a tag.
	// Checked once at construction when both key sets are static.
	ErrKeyOverlap = errors.New("sink: fields and tags keys overlap")

	// ErrNoMeasurement indicates the measurement setter was left unset.
	ErrNoMeasurement = errors.New("sink: measurement is required")

	// ErrNilClient indicates the sink was constructed without a client.
	ErrNilClient = errors.New("sink: client is required")

	// ErrValueType indicates a record value that is not a string-keyed mapping.
	ErrValueType = errors.New("sink: record value must be a string-keyed map")

	// ErrMissingTagKey indicates a resolved tag key absent from the record.
	// There is no missing-tag tolerance.
	ErrMissingTagKey = errors.New("sink: tag key not found in record")

	// ErrMissingFieldKey indicates a resolved field key absent from the record
	// under the strict missing-field policy.
	ErrMissingFieldKey = errors.New("sink: field key not found in record")

	// ErrMissingTimeKey indicates the configured time key is absent from the
	// record after tag extraction.
	ErrMissingTimeKey = errors.New("sink: time key not found in record")

	// ErrTimeValue indicates a time key value that cannot be read as an
	// integer timestamp.
	ErrTimeValue = errors.New("sink: time value is not an integer timestamp")

	// ErrEmptyQuery marks the destination's rejection of an empty query.
	// The setup auth probe treats this rejection as proof of valid
	// credentials; client adapters wrap the server response with it.
	ErrEmptyQuery = errors.New("sink: empty query")
)
