// Package catalog holds vendor and product records used for pricing and name
// lookups at order time.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
)

type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendor_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Ingredients string          `json:"ingredients,omitempty"`
	Price       decimal.Decimal `json:"price"`
	WeightGrams int             `json:"weight_grams"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Reader is the read side used when snapshotting order lines.
type Reader interface {
	Product(ctx context.Context, id string) (Product, error)
	// ProductsByIDs omits unknown ids from the result.
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	Vendor(ctx context.Context, id string) (Vendor, error)
}

type Repo interface {
	Reader
	ListProducts(ctx context.Context, vendorID string) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
	UpsertVendor(ctx context.Context, v Vendor) error
}

type NewProduct struct {
	Name        string
	Description string
	Ingredients string
	Price       decimal.Decimal
	WeightGrams int
	Stock       int
	Image       string
}

func (n NewProduct) validate() error {
	switch {
	case strings.TrimSpace(n.Name) == "":
		return apperr.Validation("name is required")
	case n.Price.IsNegative():
		return apperr.Validation("price must not be negative")
	case n.WeightGrams < 0:
		return apperr.Validation("weight must not be negative")
	case n.Stock < 0:
		return apperr.Validation("stock must not be negative")
	case strings.TrimSpace(n.Image) == "":
		return apperr.Validation("image is required")
	}
	return nil
}

// Service wraps the catalog repo with ownership rules.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) List(ctx context.Context, vendorID string) ([]Product, error) {
	return s.Repo.ListProducts(ctx, vendorID)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.Repo.Product(ctx, id)
}

// Create adds a product to the calling bakery's catalog.
func (s *Service) Create(ctx context.Context, p auth.Principal, in NewProduct) (Product, error) {
	if err := p.Require(auth.RoleBakery); err != nil {
		return Product{}, err
	}
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	if _, err := s.Repo.Vendor(ctx, p.ID); err != nil {
		return Product{}, err
	}
	prod := Product{
		ID:          uuid.NewString(),
		VendorID:    p.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Ingredients: strings.TrimSpace(in.Ingredients),
		Price:       in.Price,
		WeightGrams: in.WeightGrams,
		Stock:       in.Stock,
		Image:       in.Image,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Repo.InsertProduct(ctx, prod); err != nil {
		return Product{}, err
	}
	return prod, nil
}

// Delete removes a product owned by the calling bakery. Orders keep their
// line snapshots.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	if err := p.Require(auth.RoleBakery, auth.RoleAdmin); err != nil {
		return err
	}
	prod, err := s.Repo.Product(ctx, id)
	if err != nil {
		return err
	}
	if p.Role == auth.RoleBakery && prod.VendorID != p.ID {
		return apperr.Forbidden("product %s belongs to another bakery", id)
	}
	return s.Repo.DeleteProduct(ctx, id)
}

// RegisterVendor records an approved bakery. Approval itself happens in the
// admin workflow; this only makes the vendor known to ordering.
func (s *Service) RegisterVendor(ctx context.Context, p auth.Principal, v Vendor) (Vendor, error) {
	if err := p.Require(auth.RoleAdmin); err != nil {
		return Vendor{}, err
	}
	v.Name = strings.TrimSpace(v.Name)
	if v.ID == "" || v.Name == "" {
		return Vendor{}, apperr.Validation("vendor id and name are required")
	}
	if err := s.Repo.UpsertVendor(ctx, v); err != nil {
		return Vendor{}, err
	}
	return v, nil
}
