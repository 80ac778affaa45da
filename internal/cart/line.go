package cart

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

// CustomKey is the wire marker for a bespoke line without a catalog product.
const CustomKey = "custom"

// CustomOrderDetails describes a bespoke product the vendor prices later.
type CustomOrderDetails struct {
	ProductType        string `json:"product_type"`
	Ingredients        string `json:"ingredients"`
	Description        string `json:"description"`
	CoatingPreferences string `json:"coating_preferences,omitempty"`
	WeightGrams        int    `json:"weight_grams"`
}

func (d CustomOrderDetails) Validate() error {
	switch {
	case strings.TrimSpace(d.ProductType) == "":
		return apperr.Validation("custom order product type is required")
	case strings.TrimSpace(d.Ingredients) == "":
		return apperr.Validation("custom order ingredients are required")
	case strings.TrimSpace(d.Description) == "":
		return apperr.Validation("custom order description is required")
	case d.WeightGrams <= 0:
		return apperr.Validation("custom order weight must be positive")
	}
	return nil
}

// LineRef points either at a catalog product or at custom order details.
// The zero value is invalid.
type LineRef struct {
	productID string
	custom    *CustomOrderDetails
}

func Regular(productID string) LineRef { return LineRef{productID: strings.TrimSpace(productID)} }

func Custom(d CustomOrderDetails) LineRef { return LineRef{custom: &d} }

func (r LineRef) IsCustom() bool { return r.custom != nil }

func (r LineRef) ProductID() string { return r.productID }

// Details returns the custom order details, ok is false for regular lines.
func (r LineRef) Details() (CustomOrderDetails, bool) {
	if r.custom == nil {
		return CustomOrderDetails{}, false
	}
	return *r.custom, true
}

// Key identifies the line inside its vendor bucket.
func (r LineRef) Key() string {
	if r.custom != nil {
		return CustomKey
	}
	return r.productID
}

func (r LineRef) valid() bool {
	if r.custom != nil {
		return true
	}
	return r.productID != "" && r.productID != CustomKey
}

type Line struct {
	Ref       LineRef
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	// Notes is free text only; custom details travel in Ref.
	Notes string
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type lineJSON struct {
	ProductID string              `json:"product_id"`
	Custom    *CustomOrderDetails `json:"custom,omitempty"`
	Name      string              `json:"name,omitempty"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	Notes     string              `json:"notes,omitempty"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineJSON{
		ProductID: l.Ref.Key(),
		Custom:    l.Ref.custom,
		Name:      l.Name,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		Notes:     l.Notes,
	})
}

func (l *Line) UnmarshalJSON(b []byte) error {
	var w lineJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ref, err := RefFromWire(w.ProductID, w.Custom)
	if err != nil {
		return err
	}
	*l = Line{Ref: ref, Name: w.Name, Quantity: w.Quantity, UnitPrice: w.UnitPrice, Notes: w.Notes}
	return nil
}

// RefFromWire builds a LineRef from the "product_id" / "custom" pair used on
// the wire, where product_id "custom" selects the custom variant.
func RefFromWire(productID string, custom *CustomOrderDetails) (LineRef, error) {
	switch {
	case productID == CustomKey || (productID == "" && custom != nil):
		if custom == nil {
			return LineRef{}, apperr.Validation("custom line requires custom order details")
		}
		return Custom(*custom), nil
	case strings.TrimSpace(productID) == "":
		return LineRef{}, apperr.Validation("product id is required")
	default:
		return Regular(productID), nil
	}
}
