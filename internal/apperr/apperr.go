// Package apperr defines the typed failures returned by the ordering core and
// their mapping onto HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error code.
type Kind string

const (
	KindUnknown                Kind = "UNKNOWN"
	KindValidation             Kind = "VALIDATION"
	KindEmptyCart              Kind = "EMPTY_CART"
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindInsufficientStock      Kind = "INSUFFICIENT_STOCK"
	KindMultiVendorLocker      Kind = "MULTI_VENDOR_LOCKER"
	KindCustomOrderExclusivity Kind = "CUSTOM_ORDER_EXCLUSIVITY"
	KindInvalidSchedule        Kind = "INVALID_SCHEDULE"
	KindReservationConflict    Kind = "RESERVATION_CONFLICT"
	KindReservationNotFound    Kind = "RESERVATION_NOT_FOUND"
	KindNotFound               Kind = "NOT_FOUND"
	KindAuthorization          Kind = "AUTHORIZATION"
	KindTimeout                Kind = "TIMEOUT"
	KindRequestInFlight        Kind = "REQUEST_IN_FLIGHT"
)

// HTTPStatus maps a kind to the status the HTTP boundary answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindEmptyCart, KindInvalidSchedule,
		KindMultiVendorLocker, KindCustomOrderExclusivity:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound, KindReservationNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindReservationConflict, KindRequestInFlight:
		return http.StatusConflict
	case KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the same request unchanged.
func (k Kind) Retryable() bool { return k == KindTimeout || k == KindRequestInFlight }

// Error is the single typed error of the core.
type Error struct {
	Kind    Kind
	Message string
	Details any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so sentinels like ErrNotFound work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrEmptyCart              = &Error{Kind: KindEmptyCart}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrInsufficientStock      = &Error{Kind: KindInsufficientStock}
	ErrMultiVendorLocker      = &Error{Kind: KindMultiVendorLocker}
	ErrCustomOrderExclusivity = &Error{Kind: KindCustomOrderExclusivity}
	ErrInvalidSchedule        = &Error{Kind: KindInvalidSchedule}
	ErrReservationConflict    = &Error{Kind: KindReservationConflict}
	ErrReservationNotFound    = &Error{Kind: KindReservationNotFound}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrAuthorization          = &Error{Kind: KindAuthorization}
	ErrTimeout                = &Error{Kind: KindTimeout}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func Forbidden(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

// Shortage describes one line that could not be covered by stock.
type Shortage struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func InsufficientStock(shortages []Shortage) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: "insufficient stock for some products",
		Details: shortages,
	}
}

// KindOf returns the kind carried by err, or KindUnknown for infrastructure
// failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}

// FromContext converts a context failure into a retryable timeout. Other
// errors pass through untouched.
func FromContext(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Message: "operation timed out, retry later"}
	}
	return err
}
