// Package locker manages the shared pickup locker. Capacity is one occupying
// reservation per calendar day in the configured location.
package locker

import (
	"context"
	"time"
)

// State mirrors the order status of the reserved order.
type State string

const (
	StatePending            State = "pending"
	StateAccepted           State = "accepted"
	StateWaitingForDelivery State = "waiting-for-delivery"
	StateWaitingForPickup   State = "waiting-for-pickup"
	StateCompleted          State = "completed"
	StateDeclined           State = "declined"
)

// Terminal states release the day they occupy.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateDeclined
}

// TerminalStates lists the states that do not occupy capacity.
var TerminalStates = []State{StateCompleted, StateDeclined}

type Reservation struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	ReservationDate time.Time `json:"reservation_date"`
	// Day is the occupied calendar day, formatted 2006-01-02.
	Day       string    `json:"day"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repo is implemented by the stores. InsertReservation must fail with a
// reservation conflict when another non-terminal reservation holds the same
// day or when the order already has a reservation.
type Repo interface {
	ActiveReservationOnDay(ctx context.Context, day string) (Reservation, bool, error)
	InsertReservation(ctx context.Context, r Reservation) error
	ReservationByOrder(ctx context.Context, orderID string) (Reservation, error)
	UpdateReservationState(ctx context.Context, orderID string, state State, at time.Time) (Reservation, error)
	ActiveReservations(ctx context.Context) ([]Reservation, error)
}

// DayLocker serializes check-and-insert for one day across request handlers.
type DayLocker interface {
	Acquire(ctx context.Context, day string) (release func(), err error)
}
