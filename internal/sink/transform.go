package sink

import (
	"fmt"
	"math"
)

// Reserved metadata tag names. Namespaced with a double underscore so they
// cannot collide with sensible user-declared tag keys; a user tag that does
// use a reserved name is overwritten.
const (
	metaTagKey       = "__key"
	metaTagTopic     = "__topic"
	metaTagPartition = "__partition"
)

// transformChunk converts one write chunk into an ordered list of points and
// reports the min/max resolved timestamp for diagnostics.
func (s *Sink) transformChunk(batch *Batch, records []Record) (points []Point, minTS, maxTS int64, err error) {
	points = make([]Point, 0, len(records))
	minTS = math.MaxInt64
	maxTS = math.MinInt64

	for i := range records {
		point, err := s.transformRecord(batch, &records[i])
		if err != nil {
			return nil, 0, 0, err
		}
		points = append(points, point)
		if point.Time < minTS {
			minTS = point.Time
		}
		if point.Time > maxTS {
			maxTS = point.Time
		}
	}
	return points, minTS, maxTS, nil
}

// transformRecord converts one record into a point, applying the key-overlap
// and missing-field policies.
func (s *Sink) transformRecord(batch *Batch, rec *Record) (Point, error) {
	value := rec.Value

	// Dynamic mappings must see the unmodified record, so all three are
	// evaluated before tag extraction.
	measurement := s.measurement(value)
	tagKeys := s.tagsKeys(value)
	fieldKeys := s.fieldsKeys(value)

	// Tag extraction removes keys, so it works on a copy. The caller's
	// record value is never mutated.
	working := make(map[string]any, len(value))
	for k, v := range value {
		working[k] = v
	}

	tags := make(map[string]any, len(tagKeys))
	tagSet := make(map[string]struct{}, len(tagKeys))
	for _, tagKey := range tagKeys {
		tagValue, ok := working[tagKey]
		if !ok {
			return Point{}, fmt.Errorf("%w: %q", ErrMissingTagKey, tagKey)
		}
		delete(working, tagKey)
		tags[tagKey] = tagValue
		tagSet[tagKey] = struct{}{}
	}

	if s.includeMetadataTags {
		tags[metaTagKey] = string(rec.Key)
		tags[metaTagTopic] = batch.Topic
		tags[metaTagPartition] = batch.Partition
	}

	var fields map[string]any
	if len(fieldKeys) > 0 {
		fields = make(map[string]any, len(fieldKeys))
		for _, fieldKey := range fieldKeys {
			// Tags take precedence when a dynamic field-key set selects a
			// key that is also a tag.
			if _, isTag := tagSet[fieldKey]; isTag {
				continue
			}
			fieldValue, ok := working[fieldKey]
			if !ok {
				if s.allowMissingFields {
					continue
				}
				return Point{}, fmt.Errorf("%w: %q", ErrMissingFieldKey, fieldKey)
			}
			fields[fieldKey] = fieldValue
		}
	} else {
		// No field keys resolved: the whole remaining value becomes the
		// field set.
		fields = working
	}

	ts, err := s.resolveTimestamp(working, rec)
	if err != nil {
		return Point{}, err
	}

	return Point{
		Measurement: measurement,
		Tags:        tags,
		Fields:      fields,
		Time:        ts,
	}, nil
}

// resolveTimestamp returns the point timestamp: the configured time key from
// the tag-extracted value, or the record's pipeline-native timestamp. No unit
// conversion happens here; the configured precision travels with the write as
// metadata.
func (s *Sink) resolveTimestamp(working map[string]any, rec *Record) (int64, error) {
	if s.timeKey == "" {
		return rec.Timestamp, nil
	}
	raw, ok := working[s.timeKey]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingTimeKey, s.timeKey)
	}
	ts, ok := asInt64(raw)
	if !ok {
		return 0, fmt.Errorf("%w: key %q holds %T", ErrTimeValue, s.timeKey, raw)
	}
	return ts, nil
}

// asInt64 reads an integer timestamp out of the numeric types a decoded
// record can carry. Floats are accepted when integral, since JSON decoding
// turns all numbers into float64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
