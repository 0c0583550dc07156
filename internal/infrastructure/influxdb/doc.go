// Package influxdb provides the destination store client for the Streamflux
// sink.
//
// It wraps the official influxdb-client-go v2 library behind the small
// surface the sink needs: two-phase connect, blocking chunk writes, and the
// auth-probe query.
//
// # Purpose
//
// This package owns everything destination-specific:
//   - Connection credentials, gzip, request timeout, debug logging
//   - Conversion of sink points to client points (tag string coercion,
//     integer timestamp reinterpretation under the configured precision)
//   - Mapping the server's empty-query rejection to sink.ErrEmptyQuery
//
// # Usage
//
//	client := influxdb.New(cfg.Influx)
//	s, _ := sink.New(client, sinkCfg)
//	if err := s.Setup(ctx); err != nil { // Connect + auth probe happen here
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Write errors are returned directly from WritePoints with the library's
// *http.Error left unwrappable, which is what lets the sink translate an
// HTTP 429 with Retry-After into a backpressure instruction.
package influxdb
