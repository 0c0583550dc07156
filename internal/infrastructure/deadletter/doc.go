// Package deadletter persists records the sink cannot process.
//
// The sink rejects records whose value is not a string-keyed mapping; the
// pipeline diverts those here instead of stopping, keeping one malformed
// publisher from blocking a whole partition. Rows carry the record's
// topic/partition/offset, key, JSON-rendered value, and the rejection
// reason.
//
// # Storage
//
// A single SQLite table (dead_letters) in WAL mode, one writer. The store is
// optional: with dead-lettering disabled, the pipeline stops on the first
// unprocessable record instead.
//
// # Usage
//
//	store, err := deadletter.Open(ctx, cfg.Pipeline.DeadLetter)
//	if err != nil && !errors.Is(err, deadletter.ErrDisabled) {
//	    log.Fatal(err)
//	}
//
//	store.Record(ctx, deadletter.Entry{Topic: "readings", Reason: "..."})
package deadletter
