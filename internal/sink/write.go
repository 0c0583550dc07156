package sink

import (
	"context"
	"time"
)

// Write delivers one batch to the destination in consecutive chunks of at
// most the configured chunk size, preserving record order end to end.
//
// Chunks are independent write units processed strictly sequentially: each is
// transformed, written, and timed on its own, and the first failure stops the
// batch; chunks after a failed one are not attempted. The caller treats the
// whole batch as failed and rewrites it from the start on retry, which is
// where the at-least-once semantics come from.
func (s *Sink) Write(ctx context.Context, batch *Batch) error {
	for _, chunk := range batch.chunks(s.chunkSize) {
		points, minTS, maxTS, err := s.transformChunk(batch, chunk)
		if err != nil {
			return err
		}

		start := time.Now()
		if err := s.client.WritePoints(ctx, points, s.precision); err != nil {
			return translateWriteError(err, batch.Topic, batch.Partition)
		}
		elapsed := time.Since(start)

		if s.log != nil {
			s.log.Info("wrote points to destination",
				"topic", batch.Topic,
				"partition", batch.Partition,
				"records", len(points),
				"min_timestamp", minTS,
				"max_timestamp", maxTS,
				"elapsed", elapsed.Round(10*time.Millisecond).String(),
			)
		}
	}
	return nil
}
