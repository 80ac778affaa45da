package kafka

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-bakery-orders/internal/orders"
)

// ErrUnsupportedEnvelope marks messages this consumer can never process.
var ErrUnsupportedEnvelope = errors.New("unsupported envelope")

// DecodeEnvelope parses a message value into an envelope of the version this
// build understands.
func DecodeEnvelope(m kafka.Message) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrUnsupportedEnvelope, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return env, fmt.Errorf("%w: missing event id or type", ErrUnsupportedEnvelope)
	}
	if env.EventVersion != orders.EnvelopeVersion {
		return env, fmt.Errorf("%w: version %d", ErrUnsupportedEnvelope, env.EventVersion)
	}
	return env, nil
}

// EventType reads the x-event-type header without decoding the value.
func EventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	return ""
}

// UnwrapPayload decodes an envelope payload into its concrete type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode %T payload: %w", t, err)
	}
	return t, nil
}
