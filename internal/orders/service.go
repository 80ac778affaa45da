package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/metrics"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

const defaultTimeout = 5 * time.Second

// Service is the order lifecycle manager. It owns checkout, the status
// machine and keeps locker reservations and pickup credentials in step with
// order status.
type Service struct {
	Store     Store
	Locker    *locker.Manager
	Issuer    *pickup.Issuer
	Publisher Publisher
	Fees      Fees
	Location  *time.Location
	// Timeout bounds every unit of work; expiry surfaces as a retryable
	// TIMEOUT error.
	Timeout     time.Duration
	ServiceName string
	Now         func() time.Time

	credentials singleflight.Group
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.Timeout
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

type CheckoutRequest struct {
	Cart            cart.Cart
	PickupOption    PickupOption
	DeliveryAddress string
	DeliveryDate    time.Time
	Notes           string
}

// Checkout turns every vendor bucket of the cart into one pending order.
// Buckets are independent units of work: when a later bucket fails, orders
// already placed for earlier buckets are returned together with the error.
func (s *Service) Checkout(ctx context.Context, p auth.Principal, req CheckoutRequest) ([]Order, error) {
	placed, err := s.checkout(ctx, p, req)
	metrics.CheckoutsTotal.WithLabelValues(string(req.PickupOption), metrics.Result(kindLabel(err))).Inc()
	return placed, err
}

func (s *Service) checkout(ctx context.Context, p auth.Principal, req CheckoutRequest) ([]Order, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return nil, err
	}
	if req.Cart.IsEmpty() {
		return nil, apperr.New(apperr.KindEmptyCart, "your cart is empty")
	}
	if !req.PickupOption.Valid() {
		return nil, apperr.Validation("pickup option must be one of in-store, locker, delivery")
	}
	now := s.now()
	if err := ValidateDeliveryDate(req.DeliveryDate, now, s.location()); err != nil {
		return nil, err
	}
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	if req.PickupOption == PickupDelivery && req.DeliveryAddress == "" {
		return nil, apperr.Validation("please provide a delivery address")
	}
	if len([]rune(req.Notes)) > MaxNotesLength {
		return nil, apperr.Validation("notes must be at most %d characters", MaxNotesLength)
	}
	buckets := nonEmpty(req.Cart.Buckets)
	if req.PickupOption == PickupLocker && len(buckets) > 1 {
		return nil, apperr.New(apperr.KindMultiVendorLocker,
			"the locker option is only available for orders from a single bakery")
	}
	for _, b := range buckets {
		if err := b.CheckExclusive(); err != nil {
			return nil, err
		}
	}

	placed := make([]Order, 0, len(buckets))
	for _, b := range buckets {
		o, err := s.placeBucket(ctx, p, b, req, now)
		if err != nil {
			if len(placed) > 0 {
				logging.Ctx(ctx).Warn().Err(err).Int("placed", len(placed)).
					Str("vendor_id", b.VendorID).Msg("checkout stopped after partial success")
			}
			return placed, err
		}
		placed = append(placed, o)
	}
	return placed, nil
}

func nonEmpty(buckets []cart.Bucket) []cart.Bucket {
	out := make([]cart.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if len(b.Lines) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// placeBucket decrements stock, inserts the order and, for the locker, the
// reservation, all in one unit of work.
func (s *Service) placeBucket(ctx context.Context, p auth.Principal, b cart.Bucket, req CheckoutRequest, now time.Time) (Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.PickupOption == PickupLocker {
		release, err := s.Locker.Hold(ctx, req.DeliveryDate)
		if err != nil {
			return Order{}, err
		}
		defer release()
	}

	var order Order
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, stock, err := s.snapshot(ctx, tx, p, b, req, now)
		if err != nil {
			return err
		}
		if err := inventory.Reserve(ctx, tx, stock); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if o.PickupOption == PickupLocker {
			if _, err := s.Locker.Reserve(ctx, tx, o.ID, o.DeliveryDate, locker.State(o.Status), now); err != nil {
				return err
			}
		}
		if err := tx.AppendStatusChange(ctx, StatusChange{
			OrderID: o.ID, To: o.Status, ActorID: p.ID, ActorRole: string(p.Role), At: now.UTC(),
		}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return Order{}, apperr.FromContext(ctx, err)
	}

	metrics.OrdersCreated.WithLabelValues(string(order.PickupOption)).Inc()
	logging.Ctx(ctx).Info().Str("order_id", order.ID).Str("vendor_id", order.VendorID).
		Str("pickup_option", string(order.PickupOption)).Str("total", order.TotalPrice.StringFixed(2)).
		Msg("order placed")
	s.emit(ctx, TopicOrderPlaced, EventOrderPlaced, order.ID, OrderPlacedPayload{
		OrderID:      order.ID,
		ClientID:     order.ClientID,
		VendorID:     order.VendorID,
		PickupOption: order.PickupOption,
		DeliveryDate: order.DeliveryDate,
		TotalPrice:   order.TotalPrice,
		Lines:        len(order.Lines),
	})
	return order, nil
}

// snapshot freezes names and prices from the catalog; client supplied prices
// are ignored for catalog products.
func (s *Service) snapshot(ctx context.Context, tx Tx, p auth.Principal, b cart.Bucket, req CheckoutRequest, now time.Time) (Order, []inventory.Line, error) {
	if _, err := tx.Vendor(ctx, b.VendorID); err != nil {
		return Order{}, nil, err
	}
	ids := make([]string, 0, len(b.Lines))
	for _, l := range b.Lines {
		if !l.Ref.IsCustom() {
			ids = append(ids, l.Ref.ProductID())
		}
	}
	products, err := tx.ProductsByIDs(ctx, ids)
	if err != nil {
		return Order{}, nil, err
	}

	transport := s.Fees.For(req.PickupOption)
	o := Order{
		ID:            uuid.NewString(),
		ClientID:      p.ID,
		VendorID:      b.VendorID,
		Status:        StatusPending,
		TransportCost: transport,
		PickupOption:  req.PickupOption,
		DeliveryDate:  req.DeliveryDate.UTC(),
		Notes:         req.Notes,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if req.PickupOption == PickupDelivery {
		o.DeliveryAddress = req.DeliveryAddress
	}

	total := decimal.Zero
	stock := make([]inventory.Line, 0, len(b.Lines))
	for _, l := range b.Lines {
		if l.Quantity < 1 {
			return Order{}, nil, apperr.Validation("quantity must be at least 1")
		}
		line := OrderLine{ID: uuid.NewString(), Quantity: l.Quantity}
		if d, ok := l.Ref.Details(); ok {
			if err := d.Validate(); err != nil {
				return Order{}, nil, err
			}
			line.Custom = &d
			line.Name = "Custom Order: " + d.ProductType
			line.Price = decimal.Zero
		} else {
			prod, ok := products[l.Ref.ProductID()]
			if !ok {
				return Order{}, nil, apperr.NotFound("product", l.Ref.ProductID())
			}
			if prod.VendorID != b.VendorID {
				return Order{}, nil, apperr.Validation("product %s is not sold by this bakery", prod.ID)
			}
			line.ProductID = prod.ID
			line.Name = prod.Name
			line.Price = prod.Price
			stock = append(stock, inventory.Line{ProductID: prod.ID, Quantity: l.Quantity})
		}
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		o.Lines = append(o.Lines, line)
	}
	o.TotalPrice = total.Add(transport)
	return o, stock, nil
}

func (s *Service) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Publisher == nil {
		return
	}
	env, err := NewEnvelope(eventType, s.ServiceName, logging.RequestIDFromContext(ctx), orderID, payload)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event", eventType).Msg("encode event")
		return
	}
	value, err := envelopeBytes(env)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event", eventType).Msg("encode event")
		return
	}
	s.Publisher.Publish(topic, PartitionKey(orderID), value, eventType)
	metrics.EventsPublished.WithLabelValues(topic).Inc()
}

func kindLabel(err error) string {
	if err == nil {
		return ""
	}
	return string(apperr.KindOf(err))
}
