package orders

import (
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

const (
	openingHour = 10
	closingHour = 17
)

// ValidateDeliveryDate checks that d is strictly after now, on a weekday, and
// between 10:00 and 17:00 inclusive in loc.
func ValidateDeliveryDate(d, now time.Time, loc *time.Location) error {
	if d.IsZero() {
		return apperr.New(apperr.KindInvalidSchedule, "delivery date is required")
	}
	if !d.After(now) {
		return apperr.New(apperr.KindInvalidSchedule, "delivery date must be in the future")
	}
	local := d.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return apperr.New(apperr.KindInvalidSchedule, "delivery must be Monday to Friday")
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), openingHour, 0, 0, 0, loc)
	closing := time.Date(local.Year(), local.Month(), local.Day(), closingHour, 0, 0, 0, loc)
	if local.Before(open) || local.After(closing) {
		return apperr.New(apperr.KindInvalidSchedule, "delivery must be between 10:00 and 17:00")
	}
	return nil
}
