package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

// txn is the orders.Tx handed out by WithinTx. The store mutex is held for
// its whole lifetime.
type txn struct {
	d    *data
	undo []func()
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// remember journals the current value of m[k] so rollback can restore it.
func remember[K comparable, V any](t *txn, m map[K]V, k K) {
	old, ok := m[k]
	t.undo = append(t.undo, func() {
		if ok {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func (t *txn) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := t.d.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product", id)
	}
	return p, nil
}

func (t *txn) ProductsByIDs(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.d.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *txn) Vendor(_ context.Context, id string) (catalog.Vendor, error) {
	v, ok := t.d.vendors[id]
	if !ok {
		return catalog.Vendor{}, apperr.NotFound("vendor", id)
	}
	return v, nil
}

// DecrementStock checks every line before touching any count.
func (t *txn) DecrementStock(_ context.Context, lines []inventory.Line) ([]apperr.Shortage, error) {
	var shortages []apperr.Shortage
	for _, ln := range lines {
		p, ok := t.d.products[ln.ProductID]
		if !ok {
			return nil, apperr.NotFound("product", ln.ProductID)
		}
		if p.Stock < ln.Quantity {
			shortages = append(shortages, apperr.Shortage{
				ProductID: p.ID, Name: p.Name, Requested: ln.Quantity, Available: p.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return shortages, nil
	}
	for _, ln := range lines {
		remember(t, t.d.products, ln.ProductID)
		p := t.d.products[ln.ProductID]
		p.Stock -= ln.Quantity
		t.d.products[ln.ProductID] = p
	}
	return nil, nil
}

func (t *txn) SetStock(_ context.Context, productID string, stock int) (catalog.Product, error) {
	p, ok := t.d.products[productID]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product", productID)
	}
	remember(t, t.d.products, productID)
	p.Stock = stock
	t.d.products[productID] = p
	return p, nil
}

func (t *txn) ActiveReservationOnDay(_ context.Context, day string) (locker.Reservation, bool, error) {
	for _, r := range t.d.reservations {
		if r.Day == day && !r.State.Terminal() {
			return r, true, nil
		}
	}
	return locker.Reservation{}, false, nil
}

func (t *txn) InsertReservation(ctx context.Context, r locker.Reservation) error {
	if _, ok := t.d.reservations[r.OrderID]; ok {
		return apperr.New(apperr.KindReservationConflict, "order %s already holds a locker reservation", r.OrderID)
	}
	if !r.State.Terminal() {
		if _, taken, _ := t.ActiveReservationOnDay(ctx, r.Day); taken {
			return apperr.New(apperr.KindReservationConflict, "the locker is not available on %s", r.Day)
		}
	}
	remember(t, t.d.reservations, r.OrderID)
	t.d.reservations[r.OrderID] = r
	return nil
}

func (t *txn) ReservationByOrder(_ context.Context, orderID string) (locker.Reservation, error) {
	r, ok := t.d.reservations[orderID]
	if !ok {
		return locker.Reservation{}, apperr.New(apperr.KindReservationNotFound, "no locker reservation for order %s", orderID)
	}
	return r, nil
}

func (t *txn) UpdateReservationState(ctx context.Context, orderID string, state locker.State, at time.Time) (locker.Reservation, error) {
	r, err := t.ReservationByOrder(ctx, orderID)
	if err != nil {
		return locker.Reservation{}, err
	}
	remember(t, t.d.reservations, orderID)
	r.State = state
	r.UpdatedAt = at
	t.d.reservations[orderID] = r
	return r, nil
}

func (t *txn) ActiveReservations(_ context.Context) ([]locker.Reservation, error) {
	var out []locker.Reservation
	for _, r := range t.d.reservations {
		if !r.State.Terminal() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (t *txn) CredentialByOrder(_ context.Context, orderID string) (pickup.Credential, bool, error) {
	c, ok := t.d.credentials[orderID]
	return c, ok, nil
}

func (t *txn) InsertCredentialIfAbsent(_ context.Context, c pickup.Credential) (pickup.Credential, error) {
	if existing, ok := t.d.credentials[c.OrderID]; ok {
		return existing, nil
	}
	remember(t, t.d.credentials, c.OrderID)
	t.d.credentials[c.OrderID] = c
	return c, nil
}

func (t *txn) InsertOrder(_ context.Context, o orders.Order) error {
	if _, ok := t.d.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	remember(t, t.d.orders, o.ID)
	t.d.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *txn) OrderForUpdate(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (t *txn) UpdateOrderStatus(_ context.Context, id string, status orders.Status, at time.Time) error {
	o, ok := t.d.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	remember(t, t.d.orders, id)
	o.Status = status
	o.UpdatedAt = at
	t.d.orders[id] = o
	return nil
}

func (t *txn) AppendStatusChange(_ context.Context, c orders.StatusChange) error {
	remember(t, t.d.history, c.OrderID)
	prev := t.d.history[c.OrderID]
	t.d.history[c.OrderID] = append(append([]orders.StatusChange(nil), prev...), c)
	return nil
}

// filterOrders returns matching orders, newest first.
func (t *txn) filterOrders(keep func(orders.Order) bool) []orders.Order {
	out := []orders.Order{}
	for _, o := range t.d.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneOrder(o orders.Order) orders.Order {
	o.Lines = append([]orders.OrderLine(nil), o.Lines...)
	return o
}
