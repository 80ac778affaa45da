package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

// Tx is the set of operations available inside one unit of work.
type Tx interface {
	catalog.Reader
	inventory.Ledger
	locker.Repo
	pickup.Repo

	InsertOrder(ctx context.Context, o Order) error
	// OrderForUpdate loads the order and locks it until the unit of work ends.
	OrderForUpdate(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status, at time.Time) error
	AppendStatusChange(ctx context.Context, c StatusChange) error
}

// Store is the backing store of the ordering core. Store methods outside
// WithinTx run in their own implicit unit of work.
type Store interface {
	Tx

	// WithinTx runs fn in one unit of work. Any error returned by fn, and any
	// cancellation of ctx before commit, rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Order(ctx context.Context, id string) (Order, error)
	OrdersByClient(ctx context.Context, clientID string) ([]Order, error)
	OrdersByVendor(ctx context.Context, vendorID string) ([]Order, error)
	// AllOrders lists every order, newest first.
	AllOrders(ctx context.Context) ([]Order, error)
	StatusHistory(ctx context.Context, orderID string) ([]StatusChange, error)
}
