package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamflux/streamflux-core/internal/infrastructure/deadletter"
	"github.com/streamflux/streamflux-core/internal/sink"
)

// Defaults for pipeline operation.
const (
	// defaultCheckpointInterval is used when no interval is configured.
	defaultCheckpointInterval = 5 * time.Second

	// shutdownFlushTimeout bounds the final best-effort flush.
	shutdownFlushTimeout = 10 * time.Second
)

// SourceRecord is one record delivered by a Source. Value is untyped on
// purpose: the sink validates the shape and anything that is not a
// string-keyed mapping is dead-lettered.
type SourceRecord struct {
	Value     any
	Key       []byte
	Timestamp int64
	Headers   []sink.Header
	Topic     string
	Partition int32
	Offset    int64
}

// Source is a partition-ordered record stream the pipeline consumes.
// internal/infrastructure/mqtt provides the MQTT implementation.
type Source interface {
	// Records returns the delivery channel. The source closes it when the
	// stream ends.
	Records() <-chan SourceRecord

	// Pause suspends delivery for one topic-partition for the given
	// duration. Used to honour destination backpressure.
	Pause(topic string, partition int32, d time.Duration)

	// Close stops the source and closes the records channel.
	Close() error
}

// DeadLetter receives records the sink cannot process. Satisfied by
// *deadletter.Store.
type DeadLetter interface {
	Record(ctx context.Context, entry deadletter.Entry) error
}

// Logger is the logging surface the pipeline needs. Compatible with
// logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config contains pipeline behaviour settings.
type Config struct {
	// CheckpointInterval is the time between sink flushes.
	CheckpointInterval time.Duration
}

// Pipeline drives records from a Source into a Sink with periodic
// checkpoints. Create with New, then Run.
type Pipeline struct {
	id       string
	source   Source
	sink     *sink.Sink
	interval time.Duration

	dlq DeadLetter
	log Logger
}

// New creates a pipeline over the given source and sink.
func New(source Source, s *sink.Sink, cfg Config) *Pipeline {
	interval := cfg.CheckpointInterval
	if interval <= 0 {
		interval = defaultCheckpointInterval
	}
	return &Pipeline{
		id:       uuid.NewString(),
		source:   source,
		sink:     s,
		interval: interval,
	}
}

// ID returns the unique identifier of this pipeline run.
func (p *Pipeline) ID() string {
	return p.id
}

// SetDeadLetter sets an optional store for unprocessable records.
func (p *Pipeline) SetDeadLetter(dlq DeadLetter) {
	p.dlq = dlq
}

// SetLogger sets an optional logger.
func (p *Pipeline) SetLogger(log Logger) {
	p.log = log
}

// Run consumes the source until the context is cancelled or the source
// channel closes, flushing the sink every checkpoint interval. A final
// best-effort flush runs on the way out so buffered records are not dropped
// by a graceful shutdown.
//
// Returns:
//   - error: nil on graceful shutdown, otherwise the first fatal ingest or
//     flush failure
func (p *Pipeline) Run(ctx context.Context) error {
	if p.log != nil {
		p.log.Info("pipeline started", "pipeline_id", p.id, "checkpoint_interval", p.interval.String())
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.shutdown()

		case rec, ok := <-p.source.Records():
			if !ok {
				return p.shutdown()
			}
			if err := p.ingest(ctx, rec); err != nil {
				return err
			}

		case <-ticker.C:
			if err := p.checkpoint(ctx); err != nil {
				return err
			}
		}
	}
}

// ingest feeds one record to the sink, dead-lettering shape rejects.
func (p *Pipeline) ingest(ctx context.Context, rec SourceRecord) error {
	err := p.sink.Add(rec.Value, rec.Key, rec.Timestamp, rec.Headers, rec.Topic, rec.Partition, rec.Offset)
	if err == nil {
		return nil
	}

	if errors.Is(err, sink.ErrValueType) && p.dlq != nil {
		if p.log != nil {
			p.log.Warn("record dead-lettered",
				"topic", rec.Topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
				"reason", err.Error(),
			)
		}
		if dlqErr := p.dlq.Record(ctx, deadletter.Entry{
			Topic:     rec.Topic,
			Partition: rec.Partition,
			Offset:    rec.Offset,
			Key:       rec.Key,
			Value:     rec.Value,
			Reason:    err.Error(),
		}); dlqErr != nil {
			return fmt.Errorf("dead-lettering record: %w", dlqErr)
		}
		return nil
	}

	return err
}

// checkpoint flushes the sink. Backpressure is not a failure: the implicated
// partition is paused at the source and the retained batch is retried on the
// next checkpoint. Everything else stops the pipeline.
func (p *Pipeline) checkpoint(ctx context.Context) error {
	err := p.sink.Flush(ctx)
	if err == nil {
		return nil
	}

	var bp *sink.BackpressureError
	if errors.As(err, &bp) {
		p.source.Pause(bp.Topic, bp.Partition, bp.RetryAfter)
		if p.log != nil {
			p.log.Warn("destination backpressure, partition paused",
				"topic", bp.Topic,
				"partition", bp.Partition,
				"retry_after", bp.RetryAfter.String(),
			)
		}
		return nil
	}

	return fmt.Errorf("checkpoint flush: %w", err)
}

// shutdown performs the final flush with its own timeout, since the run
// context is already cancelled by the time we get here.
func (p *Pipeline) shutdown() error {
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if err := p.sink.Flush(flushCtx); err != nil {
		if p.log != nil {
			p.log.Error("final flush failed, records remain buffered",
				"error", err,
				"buffered", p.sink.Buffered(),
			)
		}
		return nil
	}
	if p.log != nil {
		p.log.Info("pipeline stopped", "pipeline_id", p.id)
	}
	return nil
}
