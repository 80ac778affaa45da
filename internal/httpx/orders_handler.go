package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

// checkoutRequest takes the cart from Lines, or from the client's cart
// session when lines is omitted.
type checkoutRequest struct {
	Lines           []lineRequest `json:"lines" validate:"omitempty,dive"`
	PickupOption    string        `json:"pickup_option" validate:"required,oneof=in-store locker delivery"`
	DeliveryAddress string        `json:"delivery_address" validate:"max=500"`
	DeliveryDate    time.Time     `json:"delivery_date"`
	Notes           string        `json:"notes"`
}

type checkoutResponse struct {
	Orders     []orders.Order `json:"orders"`
	Idempotent bool           `json:"idempotent"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(r)
	if err := p.Require(auth.RoleClient); err != nil {
		writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" && a.Idempotency != nil {
		ids, claimed, err := a.Idempotency.Claim(ctx, p.ID, idemKey)
		switch {
		case errors.Is(err, redisx.ErrCheckoutPending):
			writeError(w, r, apperr.New(apperr.KindRequestInFlight, "checkout with this Idempotency-Key is still in progress"))
			return
		case err != nil:
			logging.Ctx(ctx).Warn().Err(err).Msg("idempotency claim failed")
			idemKey = ""
		case !claimed:
			a.replayCheckout(w, r, p, ids)
			return
		default:
			defer a.releaseUnused(ctx, p, &idemKey)
		}
	}

	var (
		c           cart.Cart
		fromSession bool
	)
	if req.Lines != nil {
		for _, l := range req.Lines {
			in, err := a.lineInput(ctx, l)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if err := c.AddLine(in); err != nil {
				writeError(w, r, err)
				return
			}
		}
	} else if a.Carts != nil {
		var err error
		if c, err = a.Carts.Load(ctx, p.ID); err != nil {
			writeError(w, r, err)
			return
		}
		fromSession = true
	}

	placed, err := a.Orders.Checkout(ctx, p, orders.CheckoutRequest{
		Cart:            c,
		PickupOption:    orders.PickupOption(req.PickupOption),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryDate:    req.DeliveryDate,
		Notes:           req.Notes,
	})
	if len(placed) > 0 {
		a.rememberCheckout(r, p, idemKey, placed, fromSession)
		idemKey = ""
	}
	if err != nil {
		if len(placed) > 0 {
			writeErrorWith(w, r, err, placed)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{Orders: placed})
}

// rememberCheckout records the idempotency key and clears the checked out
// buckets from the session cart. Failures are logged only: the orders exist.
func (a *API) rememberCheckout(r *http.Request, p auth.Principal, idemKey string, placed []orders.Order, fromSession bool) {
	ctx := r.Context()
	if idemKey != "" && a.Idempotency != nil {
		ids := make([]string, 0, len(placed))
		for _, o := range placed {
			ids = append(ids, o.ID)
		}
		if err := a.Idempotency.Remember(ctx, p.ID, idemKey, ids); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("idempotency store failed")
		}
	}
	if a.Status != nil {
		for _, o := range placed {
			a.cacheStatus(r, o)
		}
	}
	if !fromSession {
		return
	}
	c, err := a.Carts.Load(ctx, p.ID)
	if err == nil {
		for _, o := range placed {
			c.Buckets = dropBucket(c.Buckets, o.VendorID)
		}
		err = a.Carts.Save(ctx, p.ID, c)
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("clear cart after checkout failed")
	}
}

// releaseUnused frees a claimed key when the request placed no orders. The
// handler clears *key once orders are recorded.
func (a *API) releaseUnused(ctx context.Context, p auth.Principal, key *string) {
	if *key == "" {
		return
	}
	if err := a.Idempotency.Release(context.WithoutCancel(ctx), p.ID, *key); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("idempotency release failed")
	}
}

func dropBucket(buckets []cart.Bucket, vendorID string) []cart.Bucket {
	out := buckets[:0]
	for _, b := range buckets {
		if b.VendorID != vendorID {
			out = append(out, b)
		}
	}
	return out
}

func (a *API) replayCheckout(w http.ResponseWriter, r *http.Request, p auth.Principal, ids []string) {
	out := make([]orders.Order, 0, len(ids))
	for _, id := range ids {
		o, err := a.Orders.GetOrder(r.Context(), p, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Orders: out, Idempotent: true})
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := a.Orders.ListOrders(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.GetOrder(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves the cached status when the caller may see it and
// falls back to the store.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := principal(r)
	if a.Status != nil {
		s, ok, err := a.Status.Get(r.Context(), id)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("order_id", id).Msg("status cache read failed")
		}
		if ok && (p.Role == auth.RoleAdmin || s.ClientID == p.ID || s.VendorID == p.ID) {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	o, err := a.Orders.GetOrder(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cacheStatus(r, o))
}

func (a *API) cacheStatus(r *http.Request, o orders.Order) redisx.OrderStatus {
	s := redisx.OrderStatus{
		OrderID:   o.ID,
		ClientID:  o.ClientID,
		VendorID:  o.VendorID,
		Status:    string(o.Status),
		UpdatedAt: o.UpdatedAt,
	}
	if a.Status != nil {
		if err := a.Status.Set(r.Context(), s); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("order_id", o.ID).Msg("status cache write failed")
		}
	}
	return s
}

func (a *API) orderHistory(w http.ResponseWriter, r *http.Request) {
	h, err := a.Orders.History(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.Orders.Transition(r.Context(), principal(r), chi.URLParam(r, "id"), orders.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Cancel(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}
