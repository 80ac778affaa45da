package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
)

const (
	headerEventType    = "x-event-type"
	headerEventVersion = "x-event-version"
)

var _ orders.Publisher = (*Producer)(nil)

// Producer is an asynchronous publisher: Publish enqueues, one goroutine
// writes. Every message carries its own topic.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.WithoutCancel(ctx), m); err != nil {
				logging.Error().Err(err).Str("topic", m.Topic).Str("key", string(m.Key)).Msg("kafka publish failed")
			}
		}
		if err := p.w.Close(); err != nil {
			logging.Error().Err(err).Msg("kafka writer close")
		}
	}()
}

// Publish implements orders.Publisher. Messages published after Close are
// dropped.
func (p *Producer) Publish(topic string, key, value []byte, eventType string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		logging.Warn().Str("topic", topic).Str("event", eventType).Msg("producer closed, event dropped")
		return
	}
	p.inbox <- kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(eventType)},
			{Key: headerEventVersion, Value: []byte(strconv.Itoa(orders.EnvelopeVersion))},
		},
	}
}

// Close stops accepting messages; the writer goroutine flushes what is queued
// and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the queue has been flushed.
func (p *Producer) WaitClosed() { <-p.closeCh }
