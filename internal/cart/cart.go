// Package cart accumulates selected products grouped by vendor. It is pure
// local state and never touches a store.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

// Bucket holds the lines of one vendor; it is checked out as one order.
type Bucket struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	Lines      []Line `json:"lines"`
}

// HasCustom reports whether the bucket contains a custom line.
func (b Bucket) HasCustom() bool {
	for _, l := range b.Lines {
		if l.Ref.IsCustom() {
			return true
		}
	}
	return false
}

// CheckExclusive fails when a custom line shares the bucket with any other
// line.
func (b Bucket) CheckExclusive() error {
	if b.HasCustom() && len(b.Lines) > 1 {
		return apperr.New(apperr.KindCustomOrderExclusivity,
			"a custom order for %s must not contain other products", b.label())
	}
	return nil
}

func (b Bucket) label() string {
	if b.VendorName != "" {
		return b.VendorName
	}
	return b.VendorID
}

func (b Bucket) ProductsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range b.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

type Cart struct {
	Buckets []Bucket `json:"buckets"`
}

type LineInput struct {
	Ref        LineRef
	VendorID   string
	VendorName string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Notes      string
}

// AddLine merges the line into its vendor bucket, summing quantities when the
// same product is already present. Custom lines are never merged.
func (c *Cart) AddLine(in LineInput) error {
	if !in.Ref.valid() {
		return apperr.Validation("product id is missing or invalid")
	}
	if in.VendorID == "" {
		return apperr.Validation("vendor id is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	if in.UnitPrice.IsNegative() {
		return apperr.Validation("unit price must not be negative")
	}
	if d, ok := in.Ref.Details(); ok {
		if err := d.Validate(); err != nil {
			return err
		}
		in.UnitPrice = decimal.Zero
		if in.Name == "" {
			in.Name = "Custom " + d.ProductType
		}
	}
	line := Line{Ref: in.Ref, Name: in.Name, Quantity: in.Quantity, UnitPrice: in.UnitPrice, Notes: in.Notes}

	bi := c.bucketIndex(in.VendorID)
	if bi < 0 {
		c.Buckets = append(c.Buckets, Bucket{VendorID: in.VendorID, VendorName: in.VendorName, Lines: []Line{line}})
		return nil
	}
	b := &c.Buckets[bi]
	if !in.Ref.IsCustom() {
		for i := range b.Lines {
			if !b.Lines[i].Ref.IsCustom() && b.Lines[i].Ref.ProductID() == in.Ref.ProductID() {
				b.Lines[i].Quantity += in.Quantity
				return nil
			}
		}
	}
	b.Lines = append(b.Lines, line)
	return nil
}

// RemoveLine drops every line with the given key ("custom" for custom lines)
// from the vendor bucket, and the bucket itself once it is empty.
func (c *Cart) RemoveLine(key, vendorID string) {
	bi := c.bucketIndex(vendorID)
	if bi < 0 {
		return
	}
	b := &c.Buckets[bi]
	kept := b.Lines[:0]
	for _, l := range b.Lines {
		if l.Ref.Key() != key {
			kept = append(kept, l)
		}
	}
	b.Lines = kept
	if len(b.Lines) == 0 {
		c.Buckets = append(c.Buckets[:bi], c.Buckets[bi+1:]...)
	}
}

func (c *Cart) Clear() { c.Buckets = nil }

func (c *Cart) IsEmpty() bool {
	for _, b := range c.Buckets {
		if len(b.Lines) > 0 {
			return false
		}
	}
	return true
}

func (c *Cart) bucketIndex(vendorID string) int {
	for i := range c.Buckets {
		if c.Buckets[i].VendorID == vendorID {
			return i
		}
	}
	return -1
}

type BucketSummary struct {
	VendorID         string          `json:"vendor_id"`
	VendorName       string          `json:"vendor_name"`
	ProductsSubtotal decimal.Decimal `json:"products_subtotal"`
	TransportCost    decimal.Decimal `json:"transport_cost"`
	Total            decimal.Decimal `json:"total"`
}

type Summary struct {
	Buckets    []BucketSummary `json:"buckets"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Summarize prices every bucket with the given per-bucket transport cost.
func (c *Cart) Summarize(transportCost decimal.Decimal) Summary {
	s := Summary{Buckets: make([]BucketSummary, 0, len(c.Buckets)), GrandTotal: decimal.Zero}
	for _, b := range c.Buckets {
		sub := b.ProductsSubtotal()
		total := sub.Add(transportCost)
		s.Buckets = append(s.Buckets, BucketSummary{
			VendorID:         b.VendorID,
			VendorName:       b.VendorName,
			ProductsSubtotal: sub,
			TransportCost:    transportCost,
			Total:            total,
		})
		s.GrandTotal = s.GrandTotal.Add(total)
	}
	return s
}
