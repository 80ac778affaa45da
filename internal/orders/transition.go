package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/metrics"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

// transitionResult collects what happened inside the unit of work so events
// can be published after commit.
type transitionResult struct {
	order      Order
	from       Status
	credential *pickup.Credential
}

// Transition moves an order along the status machine on behalf of its owning
// client or vendor.
func (s *Service) Transition(ctx context.Context, p auth.Principal, orderID string, to Status) (Order, error) {
	res, err := s.transition(ctx, p, orderID, to, func(_ context.Context, _ Tx, o Order) error {
		if err := checkOwner(p, o); err != nil {
			return err
		}
		return CheckTransition(o.Status, to, p.Role)
	})
	metrics.StatusTransitions.WithLabelValues(string(to), metrics.Result(kindLabel(err))).Inc()
	if err != nil {
		return Order{}, err
	}
	return res.order, nil
}

// Cancel is the client-initiated decline.
func (s *Service) Cancel(ctx context.Context, p auth.Principal, orderID string) (Order, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return Order{}, err
	}
	return s.Transition(ctx, p, orderID, StatusDeclined)
}

// RedeemPickup completes a locker order from the payload scanned at the
// locker. The caller is the locker device's service account.
func (s *Service) RedeemPickup(ctx context.Context, p auth.Principal, payload string) (Order, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return Order{}, err
	}
	payload = strings.TrimSpace(payload)
	orderID, err := s.Issuer.Resolve(payload)
	if err != nil {
		return Order{}, err
	}
	res, err := s.transition(ctx, p, orderID, StatusCompleted, func(ctx context.Context, tx Tx, o Order) error {
		if o.PickupOption != PickupLocker {
			return apperr.Validation("order %s is not a locker order", o.ID)
		}
		c, ok, err := tx.CredentialByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if !ok || c.Payload != payload {
			return apperr.Validation("pickup credential is not valid for order %s", o.ID)
		}
		if o.Status != StatusWaitingForPickup {
			return apperr.New(apperr.KindInvalidTransition, "order %s is %s, not waiting for pickup", o.ID, o.Status)
		}
		return nil
	})
	metrics.StatusTransitions.WithLabelValues(string(StatusCompleted), metrics.Result(kindLabel(err))).Inc()
	if err != nil {
		return Order{}, err
	}
	return res.order, nil
}

func (s *Service) transition(ctx context.Context, p auth.Principal, orderID string, to Status, check func(context.Context, Tx, Order) error) (transitionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res transitionResult
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := check(ctx, tx, o); err != nil {
			return err
		}
		res, err = s.apply(ctx, tx, p, o, to)
		return err
	})
	if err != nil {
		return transitionResult{}, apperr.FromContext(ctx, err)
	}

	o := res.order
	logging.Ctx(ctx).Info().Str("order_id", o.ID).Str("from", string(res.from)).
		Str("to", string(o.Status)).Str("actor", p.ID).Msg("order status changed")
	s.emit(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:      o.ID,
		ClientID:     o.ClientID,
		VendorID:     o.VendorID,
		PickupOption: o.PickupOption,
		From:         res.from,
		To:           o.Status,
		ChangedBy:    p.ID,
		ChangedAt:    o.UpdatedAt,
	})
	if res.credential != nil {
		s.emitCredential(ctx, o, *res.credential)
	}
	return res, nil
}

// apply writes the new status, the history entry and keeps the locker
// reservation aligned. Entering waiting-for-pickup on a locker order requires
// the reservation and mints the pickup credential.
func (s *Service) apply(ctx context.Context, tx Tx, p auth.Principal, o Order, to Status) (transitionResult, error) {
	now := s.now().UTC()
	res := transitionResult{from: o.Status}
	if err := tx.UpdateOrderStatus(ctx, o.ID, to, now); err != nil {
		return res, err
	}
	if err := tx.AppendStatusChange(ctx, StatusChange{
		OrderID: o.ID, From: o.Status, To: to, ActorID: p.ID, ActorRole: string(p.Role), At: now,
	}); err != nil {
		return res, err
	}

	if o.PickupOption == PickupLocker {
		_, err := s.Locker.Advance(ctx, tx, o.ID, locker.State(to), now)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrReservationNotFound) && to != StatusWaitingForPickup:
			// the vendor may still open the locker workflow later
		default:
			return res, err
		}
		if to == StatusWaitingForPickup {
			c, created, err := s.Issuer.IssueOrGet(ctx, tx, o.ID, now)
			if err != nil {
				return res, err
			}
			if created {
				res.credential = &c
			}
		}
	}

	o.Status = to
	o.UpdatedAt = now
	res.order = o
	return res, nil
}

func checkOwner(p auth.Principal, o Order) error {
	switch p.Role {
	case auth.RoleClient:
		if o.ClientID == p.ID {
			return nil
		}
	case auth.RoleBakery:
		if o.VendorID == p.ID {
			return nil
		}
	}
	return apperr.Forbidden("order %s does not belong to you", o.ID)
}

func canView(p auth.Principal, o Order) bool {
	return p.Role == auth.RoleAdmin || checkOwner(p, o) == nil
}

func (s *Service) emitCredential(ctx context.Context, o Order, c pickup.Credential) {
	metrics.CredentialsIssued.Inc()
	logging.Ctx(ctx).Info().Str("order_id", o.ID).Str("credential_id", c.ID).Msg("pickup credential issued")
	s.emit(ctx, TopicCredentialIssued, EventCredentialIssued, o.ID, CredentialIssuedPayload{
		OrderID:      o.ID,
		CredentialID: c.ID,
		ClientID:     o.ClientID,
	})
}
