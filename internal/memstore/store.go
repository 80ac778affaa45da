// Package memstore is an in-memory orders.Store used by tests and by the
// API when STORE_DRIVER=memory. Units of work are serialized by one mutex and
// rolled back through an undo journal.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

type data struct {
	vendors  map[string]catalog.Vendor
	products map[string]catalog.Product
	orders   map[string]orders.Order
	history  map[string][]orders.StatusChange
	// reservations and credentials are keyed by order id
	reservations map[string]locker.Reservation
	credentials  map[string]pickup.Credential
}

type Store struct {
	mu sync.Mutex
	d  data
}

func New() *Store {
	return &Store{d: data{
		vendors:      map[string]catalog.Vendor{},
		products:     map[string]catalog.Product{},
		orders:       map[string]orders.Order{},
		history:      map[string][]orders.StatusChange{},
		reservations: map[string]locker.Reservation{},
		credentials:  map[string]pickup.Credential{},
	}}
}

var _ orders.Store = (*Store)(nil)
var _ catalog.Repo = (*Store)(nil)

// WithinTx runs fn with exclusive access to the store. Writes are undone
// when fn fails or ctx ends before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{d: &s.d}
	err := fn(ctx, t)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		t.rollback()
		return err
	}
	return nil
}

// do runs a single operation as its own unit of work.
func do[T any](ctx context.Context, s *Store, fn func(t *txn) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &txn{d: &s.d}
	v, err := fn(t)
	if err != nil {
		t.rollback()
		return zero, err
	}
	return v, nil
}

func (s *Store) Product(ctx context.Context, id string) (catalog.Product, error) {
	return do(ctx, s, func(t *txn) (catalog.Product, error) { return t.Product(ctx, id) })
}

func (s *Store) ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	return do(ctx, s, func(t *txn) (map[string]catalog.Product, error) { return t.ProductsByIDs(ctx, ids) })
}

func (s *Store) Vendor(ctx context.Context, id string) (catalog.Vendor, error) {
	return do(ctx, s, func(t *txn) (catalog.Vendor, error) { return t.Vendor(ctx, id) })
}

func (s *Store) ListProducts(ctx context.Context, vendorID string) ([]catalog.Product, error) {
	return do(ctx, s, func(t *txn) ([]catalog.Product, error) {
		out := make([]catalog.Product, 0, len(t.d.products))
		for _, p := range t.d.products {
			if vendorID == "" || p.VendorID == vendorID {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].ID < out[j].ID
		})
		return out, nil
	})
}

func (s *Store) InsertProduct(ctx context.Context, p catalog.Product) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) {
		if _, ok := t.d.products[p.ID]; ok {
			return struct{}{}, fmt.Errorf("product %s already exists", p.ID)
		}
		t.d.products[p.ID] = p
		return struct{}{}, nil
	})
	return err
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) {
		if _, ok := t.d.products[id]; !ok {
			return struct{}{}, apperr.NotFound("product", id)
		}
		delete(t.d.products, id)
		return struct{}{}, nil
	})
	return err
}

func (s *Store) UpsertVendor(ctx context.Context, v catalog.Vendor) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) {
		t.d.vendors[v.ID] = v
		return struct{}{}, nil
	})
	return err
}

func (s *Store) DecrementStock(ctx context.Context, lines []inventory.Line) ([]apperr.Shortage, error) {
	return do(ctx, s, func(t *txn) ([]apperr.Shortage, error) { return t.DecrementStock(ctx, lines) })
}

func (s *Store) SetStock(ctx context.Context, productID string, stock int) (catalog.Product, error) {
	return do(ctx, s, func(t *txn) (catalog.Product, error) { return t.SetStock(ctx, productID, stock) })
}

func (s *Store) ActiveReservationOnDay(ctx context.Context, day string) (locker.Reservation, bool, error) {
	var found bool
	r, err := do(ctx, s, func(t *txn) (locker.Reservation, error) {
		r, ok, err := t.ActiveReservationOnDay(ctx, day)
		found = ok
		return r, err
	})
	return r, found, err
}

func (s *Store) InsertReservation(ctx context.Context, r locker.Reservation) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) { return struct{}{}, t.InsertReservation(ctx, r) })
	return err
}

func (s *Store) ReservationByOrder(ctx context.Context, orderID string) (locker.Reservation, error) {
	return do(ctx, s, func(t *txn) (locker.Reservation, error) { return t.ReservationByOrder(ctx, orderID) })
}

func (s *Store) UpdateReservationState(ctx context.Context, orderID string, state locker.State, at time.Time) (locker.Reservation, error) {
	return do(ctx, s, func(t *txn) (locker.Reservation, error) {
		return t.UpdateReservationState(ctx, orderID, state, at)
	})
}

func (s *Store) ActiveReservations(ctx context.Context) ([]locker.Reservation, error) {
	return do(ctx, s, func(t *txn) ([]locker.Reservation, error) { return t.ActiveReservations(ctx) })
}

func (s *Store) CredentialByOrder(ctx context.Context, orderID string) (pickup.Credential, bool, error) {
	var found bool
	c, err := do(ctx, s, func(t *txn) (pickup.Credential, error) {
		c, ok, err := t.CredentialByOrder(ctx, orderID)
		found = ok
		return c, err
	})
	return c, found, err
}

func (s *Store) InsertCredentialIfAbsent(ctx context.Context, c pickup.Credential) (pickup.Credential, error) {
	return do(ctx, s, func(t *txn) (pickup.Credential, error) { return t.InsertCredentialIfAbsent(ctx, c) })
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) { return struct{}{}, t.InsertOrder(ctx, o) })
	return err
}

func (s *Store) OrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return s.Order(ctx, id)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, at time.Time) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) {
		return struct{}{}, t.UpdateOrderStatus(ctx, id, status, at)
	})
	return err
}

func (s *Store) AppendStatusChange(ctx context.Context, c orders.StatusChange) error {
	_, err := do(ctx, s, func(t *txn) (struct{}, error) { return struct{}{}, t.AppendStatusChange(ctx, c) })
	return err
}

func (s *Store) Order(ctx context.Context, id string) (orders.Order, error) {
	return do(ctx, s, func(t *txn) (orders.Order, error) { return t.OrderForUpdate(ctx, id) })
}

func (s *Store) OrdersByClient(ctx context.Context, clientID string) ([]orders.Order, error) {
	return do(ctx, s, func(t *txn) ([]orders.Order, error) {
		return t.filterOrders(func(o orders.Order) bool { return o.ClientID == clientID }), nil
	})
}

func (s *Store) OrdersByVendor(ctx context.Context, vendorID string) ([]orders.Order, error) {
	return do(ctx, s, func(t *txn) ([]orders.Order, error) {
		return t.filterOrders(func(o orders.Order) bool { return o.VendorID == vendorID }), nil
	})
}

func (s *Store) AllOrders(ctx context.Context) ([]orders.Order, error) {
	return do(ctx, s, func(t *txn) ([]orders.Order, error) {
		return t.filterOrders(func(orders.Order) bool { return true }), nil
	})
}

func (s *Store) StatusHistory(ctx context.Context, orderID string) ([]orders.StatusChange, error) {
	return do(ctx, s, func(t *txn) ([]orders.StatusChange, error) {
		return append([]orders.StatusChange(nil), t.d.history[orderID]...), nil
	})
}
