package orders

import (
	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
)

type Status string

const (
	StatusPending            Status = "pending"
	StatusAccepted           Status = "accepted"
	StatusWaitingForDelivery Status = "waiting-for-delivery"
	StatusWaitingForPickup   Status = "waiting-for-pickup"
	StatusCompleted          Status = "completed"
	StatusDeclined           Status = "declined"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:            {StatusAccepted: true, StatusDeclined: true},
	StatusAccepted:           {StatusWaitingForDelivery: true, StatusDeclined: true},
	StatusWaitingForDelivery: {StatusWaitingForPickup: true},
	StatusWaitingForPickup:   {StatusCompleted: true},
	StatusCompleted:          {},
	StatusDeclined:           {},
}

// allowedBy lists, per role, the edges the owning principal may take.
var allowedBy = map[auth.Role]map[Status]map[Status]bool{
	auth.RoleClient: {
		StatusPending:  {StatusDeclined: true},
		StatusAccepted: {StatusDeclined: true},
	},
	auth.RoleBakery: {
		StatusPending:            {StatusAccepted: true, StatusDeclined: true},
		StatusAccepted:           {StatusWaitingForDelivery: true, StatusDeclined: true},
		StatusWaitingForDelivery: {StatusWaitingForPickup: true},
		StatusWaitingForPickup:   {StatusCompleted: true},
	},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// CheckTransition validates the edge and that role may take it.
func CheckTransition(from, to Status, role auth.Role) error {
	if !to.Valid() {
		return apperr.Validation("invalid status %q", to)
	}
	if !CanTransition(from, to) {
		return apperr.New(apperr.KindInvalidTransition, "cannot move order from %s to %s", from, to)
	}
	if !allowedBy[role][from][to] {
		return apperr.Forbidden("%s may not move an order from %s to %s", role, from, to)
	}
	return nil
}
