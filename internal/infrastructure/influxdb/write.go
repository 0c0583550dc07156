package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/streamflux/streamflux-core/internal/sink"
)

// WritePoints writes an ordered list of points in one blocking request.
//
// Point timestamps are integers in record-native units; precision says how to
// interpret them. The conversion to time.Time here and the precision set on
// the client options cancel out, so the integer the record carried is the
// integer that goes over the wire.
//
// Tag values arrive as-is from the sink and are coerced to strings here;
// the transformer leaves coercion to the client.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - points: Ordered points for one write chunk
//   - precision: One of sink.PrecisionNS/US/MS/S
//
// Returns:
//   - error: ErrNotConnected before Connect, or the server error (the
//     underlying *http.Error stays unwrappable for backpressure detection)
func (c *Client) WritePoints(ctx context.Context, points []sink.Point, precision sink.Precision) error {
	if c.writeAPI == nil {
		return ErrNotConnected
	}

	pts := make([]*write.Point, 0, len(points))
	for i := range points {
		p := &points[i]

		tags := make(map[string]string, len(p.Tags))
		for k, v := range p.Tags {
			tags[k] = coerceTagValue(v)
		}

		pts = append(pts, write.NewPoint(p.Measurement, tags, p.Fields, pointTime(p.Time, precision)))
	}

	if err := c.writeAPI.WritePoint(ctx, pts...); err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	return nil
}

// coerceTagValue renders a tag value as the string InfluxDB stores.
func coerceTagValue(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []byte:
		return string(tv)
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64)
	default:
		return fmt.Sprint(tv)
	}
}

// pointTime converts an integer timestamp in the given precision to the
// time.Time the client library serialises.
func pointTime(ts int64, precision sink.Precision) time.Time {
	switch precision {
	case sink.PrecisionNS:
		return time.Unix(0, ts)
	case sink.PrecisionUS:
		return time.UnixMicro(ts)
	case sink.PrecisionS:
		return time.Unix(ts, 0)
	default:
		return time.UnixMilli(ts)
	}
}

// precisionDuration maps a sink precision code to the client option value.
func precisionDuration(precision sink.Precision) time.Duration {
	switch precision {
	case sink.PrecisionNS:
		return time.Nanosecond
	case sink.PrecisionUS:
		return time.Microsecond
	case sink.PrecisionS:
		return time.Second
	default:
		return time.Millisecond
	}
}
