package sink

// Header is a single record header carried through from the pipeline.
type Header struct {
	Key   string
	Value []byte
}

// Record is one pipeline record buffered for delivery. The sink does not own
// the record; Value is treated as read-only and tag extraction works on a
// copy.
type Record struct {
	// Value is the record body. Must be a string-keyed mapping; Add enforces
	// this before a Record is ever created.
	Value map[string]any

	// Key is the record key from the source, used for the __key metadata tag.
	Key []byte

	// Timestamp is the pipeline-native record timestamp as an integer in the
	// configured time precision. Used when no time key is configured.
	Timestamp int64

	// Headers are the source record headers. Carried for dead-lettering and
	// diagnostics; not written to the destination.
	Headers []Header

	// Topic, Partition, and Offset identify where the record came from.
	Topic     string
	Partition int32
	Offset    int64
}

// Point is one (measurement, tags, fields, time) unit ready to be written to
// the destination store. Tag values are passed as-is; the destination client
// coerces them to strings. Field values are limited to strings, integers,
// floats, and booleans by the destination.
type Point struct {
	Measurement string
	Tags        map[string]any
	Fields      map[string]any

	// Time is an integer timestamp in record-native units. The configured
	// precision tells the destination client how to interpret it; no unit
	// conversion happens in the sink.
	Time int64
}

// Batch is the ordered set of records accumulated for one topic-partition
// since the last checkpoint. Chunk boundaries never cross batches.
type Batch struct {
	Topic     string
	Partition int32

	records []Record
}

// NewBatch creates an empty batch for one topic-partition.
func NewBatch(topic string, partition int32) *Batch {
	return &Batch{Topic: topic, Partition: partition}
}

// Append adds a record to the end of the batch.
func (b *Batch) Append(rec Record) {
	b.records = append(b.records, rec)
}

// Len returns the number of buffered records.
func (b *Batch) Len() int {
	return len(b.records)
}

// chunks splits the batch into consecutive sub-slices of at most size
// records, preserving order. The last chunk may be smaller; a batch smaller
// than size produces exactly one chunk. The sub-slices alias the batch's
// backing array.
func (b *Batch) chunks(size int) [][]Record {
	if len(b.records) == 0 {
		return nil
	}
	out := make([][]Record, 0, (len(b.records)+size-1)/size)
	for start := 0; start < len(b.records); start += size {
		end := start + size
		if end > len(b.records) {
			end = len(b.records)
		}
		out = append(out, b.records[start:end])
	}
	return out
}
