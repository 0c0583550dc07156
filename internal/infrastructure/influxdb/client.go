package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxlog "github.com/influxdata/influxdb-client-go/v2/log"

	"github.com/streamflux/streamflux-core/internal/infrastructure/config"
	"github.com/streamflux/streamflux-core/internal/sink"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second

	// millisecondsPerSecond converts the configured request timeout to the
	// whole seconds the client options expect.
	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client behind the opaque surface the sink
// needs: connect, blocking point writes, and the auth-probe query.
//
// New stores configuration only; Connect establishes the connection. This
// mirrors the sink's two-phase setup so credentials are not touched until
// Setup runs.
//
// Thread Safety:
//   - Safe for concurrent use after Connect; the sink itself serialises
//     writes per partition.
type Client struct {
	cfg config.InfluxConfig

	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// New creates an unconnected client holding the destination configuration.
func New(cfg config.InfluxConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication, gzip, and request timeout
//  2. Verifies connectivity with a ping
//  3. Creates the blocking write API and the query API
//
// The ping checks reachability only; authentication is probed separately by
// the sink via Query.
//
// Parameters:
//   - ctx: Context for the connectivity check
//
// Returns:
//   - error: If the server is unreachable or unhealthy
func (c *Client) Connect(ctx context.Context) error {
	timeoutSec := uint((c.cfg.RequestTimeoutMS + millisecondsPerSecond - 1) / millisecondsPerSecond)
	if timeoutSec == 0 {
		timeoutSec = 1
	}

	opts := influxdb2.DefaultOptions().
		SetUseGZip(c.cfg.EnableGzip).
		SetHTTPRequestTimeout(timeoutSec).
		SetPrecision(precisionDuration(sink.Precision(c.cfg.TimePrecision)))
	if c.cfg.Debug {
		opts = opts.SetLogLevel(influxlog.DebugLevel)
	}

	client := influxdb2.NewClientWithOptions(c.cfg.URL, c.cfg.Token, opts)

	// Verify connectivity
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c.client = client
	c.writeAPI = client.WriteAPIBlocking(c.cfg.Org, c.cfg.Database)
	c.queryAPI = client.QueryAPI(c.cfg.Org)
	return nil
}

// Query runs a Flux query against the destination. The sink uses it only for
// the setup auth probe (an empty query); the server's rejection of the empty
// query is wrapped with sink.ErrEmptyQuery so the probe can tell "credentials
// fine, query empty" apart from a real failure.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - query: Flux source, may be empty
//
// Returns:
//   - error: sink.ErrEmptyQuery for an empty-query rejection, ErrNotConnected
//     before Connect, or the server error otherwise
func (c *Client) Query(ctx context.Context, query string) error {
	if c.queryAPI == nil {
		return ErrNotConnected
	}

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		if isEmptyQueryRejection(err) {
			return fmt.Errorf("%w: %w", sink.ErrEmptyQuery, err)
		}
		return fmt.Errorf("influxdb query: %w", err)
	}
	return result.Close()
}

// isEmptyQueryRejection reports whether the server rejected the query for
// being empty rather than for bad credentials or a server fault. Matches the
// known server phrasings for an absent query body.
func isEmptyQueryRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "requires either query or ast") ||
		strings.Contains(msg, "no query provided") ||
		strings.Contains(msg, "no sql statements")
}

// Close releases the underlying client. Safe to call before Connect.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.Close()
	c.client = nil
	c.writeAPI = nil
	c.queryAPI = nil
	return nil
}
