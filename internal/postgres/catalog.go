package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
)

const productColumns = `id, vendor_id, name, description, ingredients, price, weight_grams, stock, image, created_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Ingredients,
		&p.Price, &p.WeightGrams, &p.Stock, &p.Image, &p.CreatedAt)
	return p, err
}

func (r *Queries) Product(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		return catalog.Product{}, notFound(err, "product", id)
	}
	return p, nil
}

func (r *Queries) ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Queries) Vendor(ctx context.Context, id string) (catalog.Vendor, error) {
	var v catalog.Vendor
	err := r.q.QueryRow(ctx, `SELECT id, name FROM vendors WHERE id=$1`, id).Scan(&v.ID, &v.Name)
	if err != nil {
		return catalog.Vendor{}, notFound(err, "vendor", id)
	}
	return v, nil
}

// ListProducts returns the whole catalog, or one vendor's when vendorID is set.
func (r *Queries) ListProducts(ctx context.Context, vendorID string) ([]catalog.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR vendor_id = $1) ORDER BY name, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Queries) InsertProduct(ctx context.Context, p catalog.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products(id, vendor_id, name, description, ingredients, price, weight_grams, stock, image, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.VendorID, p.Name, p.Description, p.Ingredients, p.Price, p.WeightGrams, p.Stock, p.Image, p.CreatedAt)
	return err
}

func (r *Queries) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func (r *Queries) UpsertVendor(ctx context.Context, v catalog.Vendor) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO vendors(id, name) VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, v.ID, v.Name)
	return err
}
