package postgres

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
)

const orderColumns = `id, client_id, vendor_id, status, total_price, transport_cost, pickup_option,
	delivery_address, delivery_date, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var status, option string
	err := row.Scan(&o.ID, &o.ClientID, &o.VendorID, &status, &o.TotalPrice, &o.TransportCost, &option,
		&o.DeliveryAddress, &o.DeliveryDate, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	o.PickupOption = orders.PickupOption(option)
	return o, err
}

func (r *Queries) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.ClientID, o.VendorID, string(o.Status), o.TotalPrice, o.TransportCost, string(o.PickupOption),
		o.DeliveryAddress, o.DeliveryDate, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for i, l := range o.Lines {
		var custom []byte
		if l.Custom != nil {
			if custom, err = json.Marshal(l.Custom); err != nil {
				return err
			}
		}
		var productID *string
		if l.ProductID != "" {
			productID = &l.ProductID
		}
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, position, product_id, custom, name, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			l.ID, o.ID, i, productID, custom, l.Name, l.Price, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *Queries) OrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return r.order(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

// Order reads without locking.
func (r *Queries) Order(ctx context.Context, id string) (orders.Order, error) {
	return r.order(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *Queries) order(ctx context.Context, sql, id string) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, sql, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	if o.Lines, err = r.lines(ctx, id); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r *Queries) lines(ctx context.Context, orderID string) ([]orders.OrderLine, error) {
	rows, err := r.q.Query(ctx, `SELECT id, product_id, custom, name, price, quantity
		FROM order_lines WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.OrderLine
	for rows.Next() {
		var (
			l         orders.OrderLine
			productID *string
			custom    []byte
		)
		if err := rows.Scan(&l.ID, &productID, &custom, &l.Name, &l.Price, &l.Quantity); err != nil {
			return nil, err
		}
		if productID != nil {
			l.ProductID = *productID
		}
		if len(custom) > 0 {
			var d cart.CustomOrderDetails
			if err := json.Unmarshal(custom, &d); err != nil {
				return nil, err
			}
			l.Custom = &d
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Queries) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, at time.Time) error {
	ct, err := r.q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *Queries) AppendStatusChange(ctx context.Context, c orders.StatusChange) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO order_status_log(order_id, from_status, to_status, actor_id, actor_role, at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.OrderID, string(c.From), string(c.To), c.ActorID, c.ActorRole, c.At)
	return err
}

func (r *Queries) OrdersByClient(ctx context.Context, clientID string) ([]orders.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE client_id=$1 ORDER BY created_at DESC, id`, clientID)
}

func (r *Queries) OrdersByVendor(ctx context.Context, vendorID string) ([]orders.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE vendor_id=$1 ORDER BY created_at DESC, id`, vendorID)
}

// AllOrders lists every order for the admin view.
func (r *Queries) AllOrders(ctx context.Context) ([]orders.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
}

func (r *Queries) listOrders(ctx context.Context, sql string, args ...any) ([]orders.Order, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// lines are loaded after the cursor is closed; a pgx connection runs one
	// query at a time
	for i := range out {
		if out[i].Lines, err = r.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Queries) StatusHistory(ctx context.Context, orderID string) ([]orders.StatusChange, error) {
	rows, err := r.q.Query(ctx, `SELECT order_id, from_status, to_status, actor_id, actor_role, at
		FROM order_status_log WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.StatusChange
	for rows.Next() {
		var c orders.StatusChange
		var from, to string
		if err := rows.Scan(&c.OrderID, &from, &to, &c.ActorID, &c.ActorRole, &c.At); err != nil {
			return nil, err
		}
		c.From, c.To = orders.Status(from), orders.Status(to)
		out = append(out, c)
	}
	return out, rows.Err()
}
