package orders

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnvelopeVersion is the envelope layout written by this build.
const EnvelopeVersion = 1

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventCredentialIssued   = "PickupCredentialIssued"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID      string          `json:"order_id"`
	ClientID     string          `json:"client_id"`
	VendorID     string          `json:"vendor_id"`
	PickupOption PickupOption    `json:"pickup_option"`
	DeliveryDate time.Time       `json:"delivery_date"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Lines        int             `json:"lines"`
}

type OrderStatusChangedPayload struct {
	OrderID      string       `json:"order_id"`
	ClientID     string       `json:"client_id"`
	VendorID     string       `json:"vendor_id"`
	PickupOption PickupOption `json:"pickup_option"`
	From         Status       `json:"from"`
	To           Status       `json:"to"`
	ChangedBy    string       `json:"changed_by"`
	ChangedAt    time.Time    `json:"changed_at"`
}

type CredentialIssuedPayload struct {
	OrderID      string `json:"order_id"`
	CredentialID string `json:"credential_id"`
	ClientID     string `json:"client_id"`
}

// Publisher hands serialized envelopes to the event stream. Publishing is
// best-effort and happens after the unit of work has committed.
type Publisher interface {
	Publish(topic string, key, value []byte, eventType string)
}

// NewEnvelope wraps payload in a v1 envelope.
func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       raw,
	}, nil
}

func envelopeBytes(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
