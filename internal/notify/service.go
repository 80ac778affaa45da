// Package notify consumes order events: it keeps the order status cache
// fresh and tells clients and bakeries what happened to their orders.
package notify

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-bakery-orders/internal/kafka"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	Set(ctx context.Context, s redisx.OrderStatus) error
}

type Notification struct {
	Recipient string
	OrderID   string
	Message   string
}

// Sender delivers a notification to a user.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log; used until a mail or push
// gateway is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	logging.Ctx(ctx).Info().Str("recipient", n.Recipient).Str("order_id", n.OrderID).
		Str("message", n.Message).Msg("notification")
	return nil
}

type Service struct {
	Dedup  Deduper
	Cache  StatusCache
	Sender Sender
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// a poison message is skipped, not retried
		logging.Ctx(ctx).Error().Err(err).Str("topic", m.Topic).
			Str("event", kafkax.EventType(m)).Msg("undecodable event")
		return nil
	}
	ctx = logging.ContextWithRequestID(ctx, env.TraceID)

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if err := s.handle(ctx, env); err != nil {
		return err
	}
	if s.Dedup != nil {
		return s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

func (s *Service) handle(ctx context.Context, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cache(ctx, env, redisx.OrderStatus{
			OrderID: p.OrderID, ClientID: p.ClientID, VendorID: p.VendorID, Status: string(orders.StatusPending),
		}); err != nil {
			return err
		}
		return s.send(ctx, Notification{
			Recipient: p.VendorID,
			OrderID:   p.OrderID,
			Message:   fmt.Sprintf("New %s order for %s", p.PickupOption, p.DeliveryDate.Format("2006-01-02 15:04")),
		})

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.cache(ctx, env, redisx.OrderStatus{
			OrderID: p.OrderID, ClientID: p.ClientID, VendorID: p.VendorID, Status: string(p.To),
		}); err != nil {
			return err
		}
		// whoever made the change already knows about it
		recipient := p.ClientID
		if p.ChangedBy == p.ClientID {
			recipient = p.VendorID
		}
		return s.send(ctx, Notification{
			Recipient: recipient,
			OrderID:   p.OrderID,
			Message:   statusMessage(p.To, p.PickupOption),
		})

	case orders.EventCredentialIssued:
		p, err := kafkax.UnwrapPayload[orders.CredentialIssuedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.send(ctx, Notification{
			Recipient: p.ClientID,
			OrderID:   p.OrderID,
			Message:   "Your pickup code is ready. Scan it at the locker to collect your order.",
		})
	}
	return nil
}

func (s *Service) cache(ctx context.Context, env orders.Envelope, st redisx.OrderStatus) error {
	if s.Cache == nil {
		return nil
	}
	// events of one order travel on different topics and may arrive out of
	// order; an older event never overwrites a newer status
	cur, ok, err := s.Cache.Get(ctx, st.OrderID)
	if err != nil {
		return err
	}
	if ok && cur.UpdatedAt.After(env.OccurredAt) {
		return nil
	}
	st.UpdatedAt = env.OccurredAt
	return s.Cache.Set(ctx, st)
}

func (s *Service) send(ctx context.Context, n Notification) error {
	if s.Sender == nil {
		return LogSender{}.Send(ctx, n)
	}
	return s.Sender.Send(ctx, n)
}

func statusMessage(to orders.Status, option orders.PickupOption) string {
	switch to {
	case orders.StatusAccepted:
		return "Your order was accepted by the bakery."
	case orders.StatusDeclined:
		return "The order was declined."
	case orders.StatusWaitingForDelivery:
		if option == orders.PickupDelivery {
			return "Your order is on its way."
		}
		return "Your order is being prepared for pickup."
	case orders.StatusWaitingForPickup:
		if option == orders.PickupLocker {
			return "Your order is in the locker."
		}
		return "Your order is ready for pickup."
	case orders.StatusCompleted:
		return "The order is completed. Enjoy!"
	}
	return fmt.Sprintf("Order status is now %s.", to)
}
