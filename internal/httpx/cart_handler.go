package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
)

// lineRequest is one cart line on the wire. product_id "custom" together
// with custom details selects a custom order.
type lineRequest struct {
	ProductID string                   `json:"product_id" validate:"required"`
	VendorID  string                   `json:"vendor_id"`
	Quantity  int                      `json:"quantity" validate:"gte=0"`
	Notes     string                   `json:"notes" validate:"max=500"`
	Custom    *cart.CustomOrderDetails `json:"custom"`
}

// lineInput resolves a wire line against the catalog. Names, prices and
// vendors of catalog products always come from the catalog.
func (a *API) lineInput(ctx context.Context, req lineRequest) (cart.LineInput, error) {
	ref, err := cart.RefFromWire(req.ProductID, req.Custom)
	if err != nil {
		return cart.LineInput{}, err
	}
	in := cart.LineInput{Ref: ref, Quantity: req.Quantity, Notes: req.Notes}
	if ref.IsCustom() {
		if req.VendorID == "" {
			return cart.LineInput{}, apperr.Validation("vendor_id is required for custom orders")
		}
		in.VendorID = req.VendorID
	} else {
		p, err := a.Catalog.Get(ctx, ref.ProductID())
		if err != nil {
			return cart.LineInput{}, err
		}
		in.VendorID, in.Name, in.UnitPrice = p.VendorID, p.Name, p.Price
	}
	v, err := a.Catalog.Repo.Vendor(ctx, in.VendorID)
	if err != nil {
		return cart.LineInput{}, err
	}
	in.VendorName = v.Name
	return in, nil
}

func (a *API) cartOwner(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p := principal(r)
	if a.Carts == nil {
		writeError(w, r, apperr.New(apperr.KindNotFound, "cart sessions are not enabled"))
		return p, false
	}
	if err := p.Require(auth.RoleClient); err != nil {
		writeError(w, r, err)
		return p, false
	}
	return p, true
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	p, ok := a.cartOwner(w, r)
	if !ok {
		return
	}
	c, err := a.Carts.Load(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// cartSummary prices the session cart for the pickup option in the query.
func (a *API) cartSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := a.cartOwner(w, r)
	if !ok {
		return
	}
	opt := orders.PickupOption(r.URL.Query().Get("pickup_option"))
	if opt == "" {
		opt = orders.PickupInStore
	}
	if !opt.Valid() {
		writeError(w, r, apperr.Validation("pickup option must be one of in-store, locker, delivery"))
		return
	}
	c, err := a.Carts.Load(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Summarize(a.Orders.Fees.For(opt)))
}

func (a *API) addCartLine(w http.ResponseWriter, r *http.Request) {
	p, ok := a.cartOwner(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := a.lineInput(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.Carts.Load(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.AddLine(in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Carts.Save(r.Context(), p.ID, c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) removeCartLine(w http.ResponseWriter, r *http.Request) {
	p, ok := a.cartOwner(w, r)
	if !ok {
		return
	}
	c, err := a.Carts.Load(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.RemoveLine(chi.URLParam(r, "key"), chi.URLParam(r, "vendorID"))
	if err := a.Carts.Save(r.Context(), p.ID, c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	p, ok := a.cartOwner(w, r)
	if !ok {
		return
	}
	if err := a.Carts.Clear(r.Context(), p.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
