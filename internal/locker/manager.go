package locker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/metrics"
)

const dayLayout = "2006-01-02"

type Manager struct {
	Locks    DayLocker
	Location *time.Location
}

func NewManager(locks DayLocker, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{Locks: locks, Location: loc}
}

// Day returns the calendar day t falls on in the manager's location.
func (m *Manager) Day(t time.Time) string {
	return t.In(m.Location).Format(dayLayout)
}

// Hold takes the lease for the day of t. The caller keeps it until the unit
// of work that checks and inserts the reservation has committed.
func (m *Manager) Hold(ctx context.Context, t time.Time) (func(), error) {
	release, err := m.Locks.Acquire(ctx, m.Day(t))
	if err != nil {
		return nil, apperr.FromContext(ctx, err)
	}
	return release, nil
}

// Available reports whether no non-terminal reservation occupies the day of
// date.
func (m *Manager) Available(ctx context.Context, r Repo, date time.Time) (bool, error) {
	_, occupied, err := r.ActiveReservationOnDay(ctx, m.Day(date))
	if err != nil {
		return false, err
	}
	return !occupied, nil
}

// Reserve creates the reservation for orderID. Callers hold the day lease
// (see Hold) so the availability check and the insert form one unit.
func (m *Manager) Reserve(ctx context.Context, r Repo, orderID string, date time.Time, state State, now time.Time) (Reservation, error) {
	day := m.Day(date)
	if existing, occupied, err := r.ActiveReservationOnDay(ctx, day); err != nil {
		return Reservation{}, err
	} else if occupied {
		metrics.LockerReservations.WithLabelValues(string(apperr.KindReservationConflict)).Inc()
		logging.Ctx(ctx).Info().Str("day", day).Str("order_id", orderID).
			Str("held_by", existing.OrderID).Msg("locker day already reserved")
		return Reservation{}, apperr.New(apperr.KindReservationConflict,
			"the locker is not available on %s, choose another date or pickup method", day)
	}
	res := Reservation{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		ReservationDate: date.UTC(),
		Day:             day,
		State:           state,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := r.InsertReservation(ctx, res); err != nil {
		metrics.LockerReservations.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return Reservation{}, err
	}
	metrics.LockerReservations.WithLabelValues(metrics.Result("")).Inc()
	logging.Ctx(ctx).Info().Str("day", day).Str("order_id", orderID).Msg("locker reserved")
	return res, nil
}

// Advance moves the reservation of orderID to state.
func (m *Manager) Advance(ctx context.Context, r Repo, orderID string, state State, now time.Time) (Reservation, error) {
	return r.UpdateReservationState(ctx, orderID, state, now.UTC())
}

type Status struct {
	HasOrders bool   `json:"has_orders"`
	IsFull    bool   `json:"is_full"`
	Message   string `json:"message"`
}

// Summary reports whether the locker is empty, has space, or is full. Full
// means every occupying reservation is already waiting for pickup.
func (m *Manager) Summary(ctx context.Context, r Repo) (Status, error) {
	active, err := r.ActiveReservations(ctx)
	if err != nil {
		return Status{}, err
	}
	if len(active) == 0 {
		return Status{Message: "Easybox is empty"}, nil
	}
	full := true
	for _, res := range active {
		if res.State != StateWaitingForPickup {
			full = false
			break
		}
	}
	st := Status{HasOrders: true, IsFull: full, Message: "Easybox has space"}
	if full {
		st.Message = "Easybox is full"
	}
	return st, nil
}
