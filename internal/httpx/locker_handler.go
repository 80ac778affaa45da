package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

type reserveLockerRequest struct {
	// Date defaults to the order's delivery date.
	Date *time.Time `json:"date"`
}

type redeemRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type availabilityResponse struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

func (a *API) lockerAvailability(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, r, apperr.Validation("date is required"))
		return
	}
	date, err := a.parseDate(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := a.Orders.CheckLockerAvailability(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Date: a.Orders.Locker.Day(date), Available: ok})
}

func (a *API) reserveLocker(w http.ResponseWriter, r *http.Request) {
	var req reserveLockerRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	res, err := a.Orders.ReserveLocker(r.Context(), principal(r), chi.URLParam(r, "id"), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) lockerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.Orders.LockerStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) redeemPickup(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.Orders.RedeemPickup(r.Context(), principal(r), req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}

func (a *API) issueCredential(w http.ResponseWriter, r *http.Request) {
	c, err := a.Orders.IssuePickupCredential(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getCredential(w http.ResponseWriter, r *http.Request) {
	c, err := a.Orders.GetPickupCredential(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
