// Package mqtt provides the MQTT record source for the Streamflux pipeline.
//
// It wraps paho.mqtt.golang and turns subscribed topics into the
// partition-ordered record stream the pipeline consumes.
//
// # Stream model
//
// Each configured topic filter is one topic-partition stream: partition 0,
// with a per-filter monotonically increasing offset. The concrete message
// topic (wildcards expanded) travels as the record key and as the
// "mqtt_topic" header.
//
// # Backpressure
//
// Pause does not drop messages. The delivery handler for a paused filter
// sleeps until the deadline; because paho delivers in order per topic, that
// blocks the inflight window and the broker holds further messages.
//
// # Payloads
//
// JSON object payloads decode into string-keyed maps. Anything else (arrays,
// scalars, invalid JSON) passes through raw so the sink can reject it and
// the pipeline can dead-letter it.
//
// # Thread Safety
//
// Safe for concurrent use, except Close, which must only run after the
// consuming pipeline has stopped.
package mqtt
