// Package pipeline connects a record source to the batching sink.
//
// It owns the checkpointing contract the sink is built against: records are
// fed to the sink as they arrive, the sink is flushed on a fixed interval,
// and the three failure classes are handled where the sink cannot:
//
//   - Backpressure: a sink.BackpressureError pauses only the implicated
//     topic-partition at the source for the server-given duration; the sink
//     keeps the unflushed batch and the next checkpoint retries it.
//   - Record-shape errors: records the sink rejects as non-mappings are
//     diverted to the dead-letter store when one is configured, otherwise
//     they stop the pipeline.
//   - Destination failures: propagate and stop the pipeline; the sink's
//     retained batches are flushed once more on shutdown, best effort.
//
// # Usage
//
//	p := pipeline.New(source, s, pipeline.Config{CheckpointInterval: 5 * time.Second})
//	p.SetLogger(log)
//	if err := p.Run(ctx); err != nil {
//	    log.Error("pipeline stopped", "error", err)
//	}
//
// # Concurrency
//
// Run is a single goroutine; it is the external serialisation the sink's
// concurrency contract requires. One Pipeline drives one Sink.
package pipeline
