package orders

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

func TestValidateDeliveryDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, loc) // Wednesday
	at := func(day, hour, min int) time.Time { return time.Date(2026, 10, day, hour, min, 0, 0, loc) }

	tests := []struct {
		name string
		d    time.Time
		ok   bool
	}{
		{"zero", time.Time{}, false},
		{"past", at(13, 12, 0), false},
		{"now", now, false},
		{"later today", at(14, 12, 0), true},
		{"opening", at(15, 10, 0), true},
		{"closing", at(15, 17, 0), true},
		{"before opening", at(15, 9, 59), false},
		{"after closing", at(15, 17, 1), false},
		{"saturday", at(17, 12, 0), false},
		{"sunday", at(18, 12, 0), false},
		{"monday", at(19, 12, 0), true},
		// 09:00 UTC is 12:00 in Bucharest
		{"utc input", time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeliveryDate(tt.d, now, loc)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && apperr.KindOf(err) != apperr.KindInvalidSchedule {
				t.Fatalf("err = %v, want INVALID_SCHEDULE", err)
			}
		})
	}
}
