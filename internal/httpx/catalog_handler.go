package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
)

type createProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Ingredients string          `json:"ingredients" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	WeightGrams int             `json:"weight_grams" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Image       string          `json:"image" validate:"required"`
}

type setStockRequest struct {
	Stock *int `json:"stock" validate:"required"`
}

type registerVendorRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Catalog.List(r.Context(), r.URL.Query().Get("vendor_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Catalog.Create(r.Context(), principal(r), catalog.NewProduct{
		Name:        req.Name,
		Description: req.Description,
		Ingredients: req.Ingredients,
		Price:       req.Price,
		WeightGrams: req.WeightGrams,
		Stock:       req.Stock,
		Image:       req.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.Inventory.SetStock(r.Context(), principal(r), chi.URLParam(r, "id"), *req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) registerVendor(w http.ResponseWriter, r *http.Request) {
	var req registerVendorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := a.Catalog.RegisterVendor(r.Context(), principal(r), catalog.Vendor{
		ID:   chi.URLParam(r, "id"),
		Name: req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
