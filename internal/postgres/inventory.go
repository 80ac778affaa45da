package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
)

// DecrementStock locks every product row (in id order, so concurrent batches
// cannot deadlock), checks all lines, then applies the decrements. Must run
// inside a transaction.
func (r *Queries) DecrementStock(ctx context.Context, lines []inventory.Line) ([]apperr.Shortage, error) {
	ids := make([]string, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.ProductID)
	}
	rows, err := r.q.Query(ctx, `SELECT id, name, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	type row struct {
		name  string
		stock int
	}
	locked := make(map[string]row, len(ids))
	for rows.Next() {
		var id string
		var x row
		if err := rows.Scan(&id, &x.name, &x.stock); err != nil {
			rows.Close()
			return nil, err
		}
		locked[id] = x
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var shortages []apperr.Shortage
	for _, ln := range lines {
		x, ok := locked[ln.ProductID]
		if !ok {
			return nil, apperr.NotFound("product", ln.ProductID)
		}
		if x.stock < ln.Quantity {
			shortages = append(shortages, apperr.Shortage{
				ProductID: ln.ProductID, Name: x.name, Requested: ln.Quantity, Available: x.stock,
			})
		}
	}
	if len(shortages) > 0 {
		return shortages, nil
	}

	for _, ln := range lines {
		ct, err := r.q.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock >= $2`, ln.ProductID, ln.Quantity)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			return nil, fmt.Errorf("stock of product %s changed under lock", ln.ProductID)
		}
	}
	return nil, nil
}

func (r *Queries) SetStock(ctx context.Context, productID string, stock int) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `UPDATE products SET stock=$2 WHERE id=$1 RETURNING `+productColumns, productID, stock))
	if err != nil {
		return catalog.Product{}, notFound(err, "product", productID)
	}
	return p, nil
}
