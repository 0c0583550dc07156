package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Default configuration values.
const (
	// defaultChunkSize is the maximum number of points per write request.
	// It bounds the size of one request, not the number of records flushed
	// per checkpoint.
	defaultChunkSize = 1000
)

// Precision is the destination time precision code. It is passed through to
// the destination client as metadata describing how the integer timestamps
// should be interpreted; the sink never converts units, so a mismatch between
// actual units and declared precision is a caller error.
type Precision string

// Supported time precisions.
const (
	PrecisionNS Precision = "ns"
	PrecisionUS Precision = "us"
	PrecisionMS Precision = "ms"
	PrecisionS  Precision = "s"
)

// ParsePrecision validates a precision code from configuration.
func ParsePrecision(s string) (Precision, error) {
	switch p := Precision(s); p {
	case PrecisionNS, PrecisionUS, PrecisionMS, PrecisionS:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: ns, us, ms, s)", ErrInvalidPrecision, s)
	}
}

// Client is the destination store client the sink writes through. The
// concrete implementation lives in internal/infrastructure/influxdb; tests
// substitute a mock.
type Client interface {
	// Connect establishes the destination connection. Called from Setup, not
	// from New.
	Connect(ctx context.Context) error

	// WritePoints writes an ordered list of points in one request, blocking
	// until the destination responds. precision describes how point
	// timestamps are to be interpreted.
	WritePoints(ctx context.Context, points []Point, precision Precision) error

	// Query runs a query against the destination. The sink only uses it for
	// the setup auth probe; an empty-query rejection must be wrapped with
	// ErrEmptyQuery.
	Query(ctx context.Context, query string) error

	// Close releases the connection.
	Close() error
}

// Logger is the logging surface the sink needs. Compatible with
// logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ConnectSuccessFunc is called after a successful Setup, primarily for
// additional logging.
type ConnectSuccessFunc func()

// ConnectFailureFunc is called with the Setup error when connection or the
// auth probe fails. Returning nil resolves the error and Setup proceeds as if
// it had succeeded; return the error (or a replacement) to propagate it.
// This is a sharp-edged contract: a callback that swallows an auth failure
// leaves the sink holding an unauthenticated client.
type ConnectFailureFunc func(err error) error

// Config describes the mapping and batching behaviour of a Sink. Connection
// settings (URL, token, org, database) belong to the client, not here.
type Config struct {
	// Measurement selects the measurement per record. Required.
	Measurement MeasurementSetter

	// FieldsKeys selects which record keys become fields. If it resolves to
	// an empty set for a record, the whole remaining value (after tag
	// extraction) becomes the field set. When both FieldsKeys and TagsKeys
	// are static, their key sets must be disjoint.
	FieldsKeys KeysSetter

	// TagsKeys selects which record keys become tags. Tag keys are removed
	// from the value before field selection; a requested tag key missing
	// from a record is a fatal error.
	TagsKeys KeysSetter

	// TimeKey names the record key holding the point timestamp. When empty,
	// the record's pipeline-native timestamp is used.
	TimeKey string

	// TimePrecision is one of ns, us, ms, s. Default: ms.
	TimePrecision Precision

	// AllowMissingFields skips field keys absent from a record instead of
	// failing the batch.
	AllowMissingFields bool

	// IncludeMetadataTags adds the record key, topic, and partition as the
	// reserved tags __key, __topic, and __partition.
	IncludeMetadataTags bool

	// WriteChunkSize caps the number of points per write request.
	// Default: 1000.
	WriteChunkSize int

	// OnConnectSuccess and OnConnectFailure fire around the Setup auth
	// probe. Both are optional.
	OnConnectSuccess ConnectSuccessFunc
	OnConnectFailure ConnectFailureFunc
}

// topicPartition keys the per-partition accumulation buffers.
type topicPartition struct {
	topic     string
	partition int32
}

// Sink buffers records per topic-partition and delivers them to the
// destination store at checkpoint time. See the package documentation for
// the concurrency contract.
type Sink struct {
	client Client

	measurement MeasurementFunc
	fieldsKeys  KeysFunc
	tagsKeys    KeysFunc

	timeKey             string
	precision           Precision
	allowMissingFields  bool
	includeMetadataTags bool
	chunkSize           int

	onConnectSuccess ConnectSuccessFunc
	onConnectFailure ConnectFailureFunc

	batches map[topicPartition]*Batch

	log Logger
}

// New validates the configuration and builds a Sink. It stores configuration
// only; the destination connection is established by Setup.
//
// Returns:
//   - *Sink: Ready for Setup
//   - error: ErrNilClient, ErrNoMeasurement, ErrInvalidPrecision, or
//     ErrKeyOverlap on invalid configuration
func New(client Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if cfg.Measurement.isZero() {
		return nil, ErrNoMeasurement
	}

	precision := cfg.TimePrecision
	if precision == "" {
		precision = PrecisionMS
	}
	if _, err := ParsePrecision(string(precision)); err != nil {
		return nil, err
	}

	chunkSize := cfg.WriteChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	// The overlap invariant can only be checked eagerly when both key sets
	// are static. Dynamic key sets are handled per record: tags win.
	if err := checkKeyOverlap(cfg.FieldsKeys, cfg.TagsKeys); err != nil {
		return nil, err
	}

	return &Sink{
		client:              client,
		measurement:         cfg.Measurement.resolve(),
		fieldsKeys:          cfg.FieldsKeys.resolve(),
		tagsKeys:            cfg.TagsKeys.resolve(),
		timeKey:             cfg.TimeKey,
		precision:           precision,
		allowMissingFields:  cfg.AllowMissingFields,
		includeMetadataTags: cfg.IncludeMetadataTags,
		chunkSize:           chunkSize,
		onConnectSuccess:    cfg.OnConnectSuccess,
		onConnectFailure:    cfg.OnConnectFailure,
		batches:             make(map[topicPartition]*Batch),
	}, nil
}

// checkKeyOverlap fails when a key appears in both static key sets.
func checkKeyOverlap(fields, tags KeysSetter) error {
	fieldKeys, fieldsStatic := fields.staticKeys()
	tagKeys, tagsStatic := tags.staticKeys()
	if !fieldsStatic || !tagsStatic {
		return nil
	}

	tagSet := make(map[string]struct{}, len(tagKeys))
	for _, k := range tagKeys {
		tagSet[k] = struct{}{}
	}

	var overlap []string
	for _, k := range fieldKeys {
		if _, ok := tagSet[k]; ok {
			overlap = append(overlap, k)
		}
	}
	if len(overlap) > 0 {
		return fmt.Errorf("%w: %s", ErrKeyOverlap, strings.Join(overlap, ","))
	}
	return nil
}

// SetLogger sets an optional logger for write diagnostics.
func (s *Sink) SetLogger(log Logger) {
	s.log = log
}

// Setup establishes the destination client and probes authentication.
//
// The probe issues an empty query; its only purpose is to force an
// authentication error early. The destination rejects the empty query
// itself, and exactly that rejection (ErrEmptyQuery) is tolerated; any
// other error is fatal. The connect callbacks fire around the probe; see
// ConnectFailureFunc for the absorption contract.
func (s *Sink) Setup(ctx context.Context) error {
	if err := s.setup(ctx); err != nil {
		if s.onConnectFailure != nil {
			return s.onConnectFailure(err)
		}
		return err
	}
	if s.onConnectSuccess != nil {
		s.onConnectSuccess()
	}
	return nil
}

func (s *Sink) setup(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting client: %w", err)
	}
	if err := s.client.Query(ctx, ""); err != nil && !errors.Is(err, ErrEmptyQuery) {
		return fmt.Errorf("auth probe: %w", err)
	}
	return nil
}

// Add buffers one record for the given topic-partition.
//
// The value must be a string-keyed mapping; anything else fails immediately
// with ErrValueType, before the record enters the buffer.
func (s *Sink) Add(value any, key []byte, timestamp int64, headers []Header, topic string, partition int32, offset int64) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("%w, got %T", ErrValueType, value)
	}

	tp := topicPartition{topic: topic, partition: partition}
	batch := s.batches[tp]
	if batch == nil {
		batch = NewBatch(topic, partition)
		s.batches[tp] = batch
	}
	batch.Append(Record{
		Value:     mapping,
		Key:       key,
		Timestamp: timestamp,
		Headers:   headers,
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
	})
	return nil
}

// Buffered returns the number of records currently buffered across all
// topic-partitions.
func (s *Sink) Buffered() int {
	total := 0
	for _, b := range s.batches {
		total += b.Len()
	}
	return total
}

// Flush writes every pending batch. A batch is discarded only after its
// write fully succeeds; on failure the batch (including chunks already
// written) is retained and rewritten on the next Flush, so delivery is
// at-least-once and no buffered record is lost. The first failure stops the
// flush; remaining batches stay buffered.
func (s *Sink) Flush(ctx context.Context) error {
	for tp, batch := range s.batches {
		if batch.Len() == 0 {
			delete(s.batches, tp)
			continue
		}
		if err := s.Write(ctx, batch); err != nil {
			return err
		}
		delete(s.batches, tp)
	}
	return nil
}

// Close releases the destination client.
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
