// Package inventory is the stock ledger. Stock only moves through atomic
// batch decrements and absolute vendor sets.
package inventory

import (
	"context"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
)

// Line is one product quantity to take out of stock.
type Line struct {
	ProductID string
	Quantity  int
}

// Ledger is implemented by the stores. DecrementStock must apply every line
// or none of them: when any line exceeds the available stock it returns the
// shortages and leaves all counts unchanged.
type Ledger interface {
	DecrementStock(ctx context.Context, lines []Line) ([]apperr.Shortage, error)
	SetStock(ctx context.Context, productID string, stock int) (catalog.Product, error)
}

// Reserve validates and decrements a batch of lines against l.
// Repeated product ids are summed before the check.
func Reserve(ctx context.Context, l Ledger, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}
	shortages, err := l.DecrementStock(ctx, merged)
	if err != nil {
		return err
	}
	if len(shortages) > 0 {
		return apperr.InsufficientStock(shortages)
	}
	return nil
}

func merge(lines []Line) ([]Line, error) {
	idx := make(map[string]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, ln := range lines {
		if ln.ProductID == "" {
			return nil, apperr.Validation("product id is required")
		}
		if ln.Quantity < 1 {
			return nil, apperr.Validation("quantity for product %s must be at least 1", ln.ProductID)
		}
		if i, ok := idx[ln.ProductID]; ok {
			out[i].Quantity += ln.Quantity
			continue
		}
		idx[ln.ProductID] = len(out)
		out = append(out, ln)
	}
	return out, nil
}

// Service exposes vendor stock management.
type Service struct {
	Ledger  Ledger
	Catalog catalog.Reader
}

// SetStock replaces the stock of a product owned by the calling bakery.
func (s *Service) SetStock(ctx context.Context, p auth.Principal, productID string, stock int) (catalog.Product, error) {
	if err := p.Require(auth.RoleBakery); err != nil {
		return catalog.Product{}, err
	}
	if stock < 0 {
		return catalog.Product{}, apperr.Validation("invalid stock value, stock must be non-negative")
	}
	prod, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return catalog.Product{}, err
	}
	if prod.VendorID != p.ID {
		return catalog.Product{}, apperr.Forbidden("product %s belongs to another bakery", productID)
	}
	return s.Ledger.SetStock(ctx, productID, stock)
}
