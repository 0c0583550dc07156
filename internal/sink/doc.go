// Package sink implements the batching InfluxDB write sink for Streamflux.
//
// It buffers pipeline records per topic-partition, converts them to InfluxDB
// points under a configurable field/tag/measurement mapping, and flushes them
// to the destination in bounded-size write chunks at checkpoint time.
//
// # Purpose
//
// This package is the delivery core of the pipeline:
//   - Accumulates records between checkpoints (Add)
//   - Transforms records to points (measurement, tags, fields, time)
//   - Writes chunks of at most the configured size per request (Write, Flush)
//   - Translates destination overload into a typed backpressure instruction
//
// # Usage
//
//	client := influxdb.New(cfg.Influx)
//	s, err := sink.New(client, sink.Config{
//	    Measurement: sink.StaticMeasurement("sensors"),
//	    TagsKeys:    sink.StaticKeys("room"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Setup(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	s.Add(value, key, timestamp, nil, "readings", 0, offset)
//	err = s.Flush(ctx) // at checkpoint
//
// # Thread Safety
//
// A Sink serves one partition-ordered stream of batches and is NOT safe for
// concurrent use. The owning pipeline must serialise Add/Write/Flush calls;
// if partitions are processed in parallel, each partition needs its own
// externally serialised call sequence.
//
// # Error Handling
//
// Configuration errors fail New. Record-shape errors (non-mapping value,
// missing tag key, missing field key under the strict policy) are fatal for
// the batch and not retried here. A destination 429 with a retry-after
// duration surfaces as *BackpressureError; every other write failure
// propagates unchanged. The sink performs no internal retries; a failed
// batch is retained and rewritten on the next Flush, giving at-least-once
// delivery.
package sink
