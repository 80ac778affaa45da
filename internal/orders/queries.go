package orders

import (
	"context"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
)

// GetOrder returns an order visible to its client, its vendor or an admin.
// Orders of others are reported as not found.
func (s *Service) GetOrder(ctx context.Context, p auth.Principal, id string) (Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	o, err := s.Store.Order(ctx, id)
	if err != nil {
		return Order{}, apperr.FromContext(ctx, err)
	}
	if !canView(p, o) {
		return Order{}, apperr.NotFound("order", id)
	}
	return o, nil
}

// ListOrders returns the caller's orders, newest first: placed orders for a
// client, received orders for a bakery and every order for an admin.
func (s *Service) ListOrders(ctx context.Context, p auth.Principal) ([]Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var (
		out []Order
		err error
	)
	switch p.Role {
	case auth.RoleClient:
		out, err = s.Store.OrdersByClient(ctx, p.ID)
	case auth.RoleBakery:
		out, err = s.Store.OrdersByVendor(ctx, p.ID)
	case auth.RoleAdmin:
		out, err = s.Store.AllOrders(ctx)
	default:
		return nil, apperr.Forbidden("role %q has no order list", p.Role)
	}
	return out, apperr.FromContext(ctx, err)
}

func (s *Service) History(ctx context.Context, p auth.Principal, id string) ([]StatusChange, error) {
	if _, err := s.GetOrder(ctx, p, id); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	h, err := s.Store.StatusHistory(ctx, id)
	return h, apperr.FromContext(ctx, err)
}
