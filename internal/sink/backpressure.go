package sink

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

// BackpressureError is the destination's overload signal translated into a
// pause instruction. It is a recoverable condition, not data loss: the
// pipeline should suspend consumption of the named topic-partition for
// RetryAfter and then retry the same unflushed batch, which the sink has
// retained.
type BackpressureError struct {
	Topic      string
	Partition  int32
	RetryAfter time.Duration
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("sink: destination overloaded, pause %s/%d for %s",
		e.Topic, e.Partition, e.RetryAfter)
}

// translateWriteError inspects a destination write failure for an explicit
// throttle signal: HTTP 429 together with a server-supplied Retry-After
// duration becomes a *BackpressureError. Every other failure (malformed
// data, auth, network, timeout) propagates unchanged as fatal for this
// write attempt.
func translateWriteError(err error, topic string, partition int32) error {
	var srvErr *influxhttp.Error
	if errors.As(err, &srvErr) &&
		srvErr.StatusCode == http.StatusTooManyRequests &&
		srvErr.RetryAfter > 0 {
		return &BackpressureError{
			Topic:      topic,
			Partition:  partition,
			RetryAfter: time.Duration(srvErr.RetryAfter) * time.Second,
		}
	}
	return err
}
