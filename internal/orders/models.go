package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/cart"
)

type PickupOption string

const (
	PickupInStore  PickupOption = "in-store"
	PickupLocker   PickupOption = "locker"
	PickupDelivery PickupOption = "delivery"
)

func (p PickupOption) Valid() bool {
	switch p {
	case PickupInStore, PickupLocker, PickupDelivery:
		return true
	}
	return false
}

// MaxNotesLength bounds the free-text order notes.
const MaxNotesLength = 500

// OrderLine is a frozen copy of what was bought. It is never re-read from the
// live product.
type OrderLine struct {
	ID        string                   `json:"id"`
	ProductID string                   `json:"product_id,omitempty"`
	Custom    *cart.CustomOrderDetails `json:"custom,omitempty"`
	Name      string                   `json:"name"`
	Price     decimal.Decimal          `json:"price"`
	Quantity  int                      `json:"quantity"`
}

func (l OrderLine) IsCustom() bool { return l.Custom != nil }

type Order struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	VendorID        string          `json:"vendor_id"`
	Lines           []OrderLine     `json:"lines"`
	Status          Status          `json:"status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	TransportCost   decimal.Decimal `json:"transport_cost"`
	PickupOption    PickupOption    `json:"pickup_option"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	DeliveryDate    time.Time       `json:"delivery_date"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	At        time.Time `json:"at"`
}

// Fees are the fixed transport costs per pickup option.
type Fees struct {
	Delivery decimal.Decimal
	Locker   decimal.Decimal
}

func DefaultFees() Fees {
	return Fees{Delivery: decimal.NewFromInt(15), Locker: decimal.NewFromInt(10)}
}

func (f Fees) For(p PickupOption) decimal.Decimal {
	switch p {
	case PickupDelivery:
		return f.Delivery
	case PickupLocker:
		return f.Locker
	default:
		return decimal.Zero
	}
}
