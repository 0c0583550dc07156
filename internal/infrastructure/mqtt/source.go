package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/streamflux/streamflux-core/internal/infrastructure/config"
	"github.com/streamflux/streamflux-core/internal/pipeline"
	"github.com/streamflux/streamflux-core/internal/sink"
)

// recordBuffer is the delivery channel capacity. When the pipeline falls
// behind, handlers block on the full channel, which in turn throttles the
// broker's delivery to this client.
const recordBuffer = 256

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Source consumes MQTT topics and delivers them as pipeline records.
//
// Each configured topic filter is one topic-partition stream: partition is
// always 0 and the offset is a per-filter counter. JSON object payloads
// decode into the string-keyed mappings the sink accepts; any other payload
// is passed through raw so the pipeline can dead-letter it.
//
// Thread Safety:
//   - Pause and Records are safe to call concurrently with delivery.
//   - Close must only be called after the consuming pipeline has stopped.
type Source struct {
	cfg     config.MQTTConfig
	client  pahomqtt.Client
	records chan pipeline.SourceRecord
	done    chan struct{}

	// offsets assigns a monotonically increasing offset per topic filter.
	offsets map[string]int64
	offMu   sync.Mutex

	// pauses holds resume deadlines per topic filter. Delivery handlers
	// sleep until the deadline, which blocks the broker's inflight window
	// without dropping messages.
	pauses  map[string]time.Time
	pauseMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect establishes a connection to the MQTT broker and subscribes to the
// configured topics.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Sets up auto-reconnect with exponential backoff
//  3. Attempts initial connection with timeout
//  4. Subscribes to every configured topic filter (re-subscribed on reconnect)
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Source: Connected source ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig) (*Source, error) {
	if len(cfg.Topics) == 0 {
		return nil, ErrNoTopics
	}

	s := &Source{
		cfg:     cfg,
		records: make(chan pipeline.SourceRecord, recordBuffer),
		done:    make(chan struct{}),
		offsets: make(map[string]int64, len(cfg.Topics)),
		pauses:  make(map[string]time.Time),
	}

	opts := buildClientOptions(cfg)

	// Subscriptions are (re-)established from the connect handler so they
	// survive broker reconnects.
	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		s.subscribeAll(client)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if logger := s.getLogger(); logger != nil {
			logger.Warn("MQTT connection lost", "error", err)
		}
	})

	s.client = pahomqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return s, nil
}

// subscribeAll subscribes every configured filter on the given connection.
func (s *Source) subscribeAll(client pahomqtt.Client) {
	qos := byte(s.cfg.QoS)
	for _, filter := range s.cfg.Topics {
		token := client.Subscribe(filter, qos, s.handler(filter))
		if !token.WaitTimeout(defaultSubscribeTimeout) || token.Error() != nil {
			if logger := s.getLogger(); logger != nil {
				logger.Error("MQTT subscribe failed",
					"topic", filter,
					"error", token.Error(),
				)
			}
		}
	}
}

// handler builds the delivery callback for one topic filter.
func (s *Source) handler(filter string) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.waitIfPaused(filter)
		s.deliver(filter, msg.Topic(), msg.Payload())
	}
}

// deliver decodes one message and hands it to the pipeline.
func (s *Source) deliver(filter, msgTopic string, payload []byte) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		// Not JSON: pass the raw payload through as a string. The sink
		// rejects it and the pipeline dead-letters it with the reason.
		value = string(payload)
	}

	rec := pipeline.SourceRecord{
		Value:     value,
		Key:       []byte(msgTopic),
		Timestamp: time.Now().UnixMilli(),
		Headers: []sink.Header{
			{Key: "mqtt_topic", Value: []byte(msgTopic)},
		},
		Topic:     filter,
		Partition: 0,
		Offset:    s.nextOffset(filter),
	}

	select {
	case s.records <- rec:
	case <-s.done:
	}
}

// nextOffset returns the next offset for a filter's stream.
func (s *Source) nextOffset(filter string) int64 {
	s.offMu.Lock()
	defer s.offMu.Unlock()
	offset := s.offsets[filter]
	s.offsets[filter]++
	return offset
}

// Records returns the delivery channel. Closed by Close.
func (s *Source) Records() <-chan pipeline.SourceRecord {
	return s.records
}

// Pause suspends delivery for one topic filter until the given duration
// elapses. Messages are not dropped: the delivery handler sleeps, the
// client's inflight window fills, and the broker holds further messages.
// Overlapping pauses extend to the latest deadline.
//
// The partition argument exists for the pipeline's Source contract; each
// filter carries a single partition here.
func (s *Source) Pause(topic string, _ int32, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)

	s.pauseMu.Lock()
	if current, ok := s.pauses[topic]; !ok || deadline.After(current) {
		s.pauses[topic] = deadline
	}
	s.pauseMu.Unlock()
}

// waitIfPaused blocks until the filter's pause deadline has passed.
func (s *Source) waitIfPaused(filter string) {
	for {
		s.pauseMu.RLock()
		deadline, ok := s.pauses[filter]
		s.pauseMu.RUnlock()
		if !ok {
			return
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			s.pauseMu.Lock()
			// Only clear if no newer pause arrived while we slept.
			if current, ok := s.pauses[filter]; ok && !current.After(deadline) {
				delete(s.pauses, filter)
			}
			s.pauseMu.Unlock()
			return
		}

		select {
		case <-time.After(wait):
		case <-s.done:
			return
		}
	}
}

// SetLogger sets a logger for subscribe and connection diagnostics.
func (s *Source) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (s *Source) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// IsConnected returns the current connection state.
func (s *Source) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

// Close disconnects from the broker and closes the records channel.
//
// Must be called only after the consuming pipeline has returned; in-flight
// handlers are released via the done channel and the broker disconnect
// waits for pending operations.
func (s *Source) Close() error {
	if s.client == nil {
		return nil
	}

	close(s.done)

	// Disconnect with quiesce period for pending operations
	s.client.Disconnect(defaultDisconnectQuiesce)

	close(s.records)
	return nil
}
