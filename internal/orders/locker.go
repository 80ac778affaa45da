package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

// CheckLockerAvailability reports whether the locker is free on the day of
// date.
func (s *Service) CheckLockerAvailability(ctx context.Context, date time.Time) (bool, error) {
	if date.IsZero() {
		return false, apperr.Validation("reservation date is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.Locker.Available(ctx, s.Store, date)
	return ok, apperr.FromContext(ctx, err)
}

// ReserveLocker reserves the locker for an existing locker order, used when
// the vendor opens the locker workflow. A zero date means the order's
// delivery date. An order that already holds a reservation gets it back
// unchanged.
func (s *Service) ReserveLocker(ctx context.Context, p auth.Principal, orderID string, date time.Time) (locker.Reservation, error) {
	if err := p.Require(auth.RoleClient, auth.RoleBakery); err != nil {
		return locker.Reservation{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return locker.Reservation{}, apperr.FromContext(ctx, err)
	}
	if err := checkOwner(p, o); err != nil {
		return locker.Reservation{}, err
	}
	if o.PickupOption != PickupLocker {
		return locker.Reservation{}, apperr.Validation("order %s is not a locker order", o.ID)
	}
	if o.Status.Terminal() {
		return locker.Reservation{}, apperr.New(apperr.KindInvalidTransition, "order %s is already %s", o.ID, o.Status)
	}
	if date.IsZero() {
		date = o.DeliveryDate
	} else if err := ValidateDeliveryDate(date, s.now(), s.location()); err != nil {
		return locker.Reservation{}, err
	}

	release, err := s.Locker.Hold(ctx, date)
	if err != nil {
		return locker.Reservation{}, err
	}
	defer release()

	var res locker.Reservation
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return apperr.New(apperr.KindInvalidTransition, "order %s is already %s", o.ID, o.Status)
		}
		existing, err := tx.ReservationByOrder(ctx, o.ID)
		switch {
		case err == nil:
			res = existing
			return nil
		case !isReservationNotFound(err):
			return err
		}
		res, err = s.Locker.Reserve(ctx, tx, o.ID, date, locker.State(o.Status), s.now())
		return err
	})
	return res, apperr.FromContext(ctx, err)
}

// LockerStatus summarizes the locker occupancy for the device dashboard.
func (s *Service) LockerStatus(ctx context.Context) (locker.Status, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	st, err := s.Locker.Summary(ctx, s.Store)
	return st, apperr.FromContext(ctx, err)
}

// IssuePickupCredential returns the pickup credential of an order, minting it
// on first use. Every caller is authorized on its own; concurrent calls for
// the same order then share one unit of work.
func (s *Service) IssuePickupCredential(ctx context.Context, p auth.Principal, orderID string) (pickup.Credential, error) {
	if err := p.Require(auth.RoleBakery, auth.RoleAdmin); err != nil {
		return pickup.Credential{}, err
	}
	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return pickup.Credential{}, apperr.FromContext(ctx, err)
	}
	if p.Role != auth.RoleAdmin {
		if err := checkOwner(p, o); err != nil {
			return pickup.Credential{}, err
		}
	}

	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := s.credentials.DoChan(orderID, func() (any, error) {
		return s.issueCredential(shared, orderID)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return pickup.Credential{}, r.Err
		}
		return r.Val.(pickup.Credential), nil
	case <-ctx.Done():
		return pickup.Credential{}, apperr.FromContext(ctx, ctx.Err())
	}
}

func (s *Service) issueCredential(ctx context.Context, orderID string) (pickup.Credential, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		cred    pickup.Credential
		created bool
		order   Order
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		cred, created, err = s.Issuer.IssueOrGet(ctx, tx, o.ID, s.now())
		return err
	})
	if err != nil {
		return pickup.Credential{}, apperr.FromContext(ctx, err)
	}
	if created {
		s.emitCredential(ctx, order, cred)
	}
	return cred, nil
}

// GetPickupCredential returns the credential minted for an order.
func (s *Service) GetPickupCredential(ctx context.Context, p auth.Principal, orderID string) (pickup.Credential, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return pickup.Credential{}, apperr.FromContext(ctx, err)
	}
	if !canView(p, o) {
		return pickup.Credential{}, apperr.NotFound("order", orderID)
	}
	c, ok, err := s.Store.CredentialByOrder(ctx, orderID)
	if err != nil {
		return pickup.Credential{}, apperr.FromContext(ctx, err)
	}
	if !ok {
		return pickup.Credential{}, apperr.NotFound("pickup credential for order", orderID)
	}
	return c, nil
}

func isReservationNotFound(err error) bool {
	return apperr.KindOf(err) == apperr.KindReservationNotFound
}
