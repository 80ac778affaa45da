package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
)

const reservationColumns = `id, order_id, reservation_date, reservation_day, state, created_at, updated_at`

func scanReservation(row pgx.Row) (locker.Reservation, error) {
	var r locker.Reservation
	var state string
	err := row.Scan(&r.ID, &r.OrderID, &r.ReservationDate, &r.Day, &state, &r.CreatedAt, &r.UpdatedAt)
	r.State = locker.State(state)
	return r, err
}

func (r *Queries) ActiveReservationOnDay(ctx context.Context, day string) (locker.Reservation, bool, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM locker_reservations
		WHERE reservation_day=$1 AND state NOT IN ('completed','declined') LIMIT 1`, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return locker.Reservation{}, false, nil
	}
	if err != nil {
		return locker.Reservation{}, false, err
	}
	return res, true, nil
}

// InsertReservation relies on the unique order_id and the partial unique
// index on reservation_day to reject double booking.
func (r *Queries) InsertReservation(ctx context.Context, res locker.Reservation) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO locker_reservations(`+reservationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		res.ID, res.OrderID, res.ReservationDate, res.Day, string(res.State), res.CreatedAt, res.UpdatedAt)
	if isUniqueViolation(err, "") {
		return apperr.New(apperr.KindReservationConflict, "the locker is not available on %s", res.Day)
	}
	return err
}

func (r *Queries) ReservationByOrder(ctx context.Context, orderID string) (locker.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM locker_reservations
		WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return locker.Reservation{}, apperr.New(apperr.KindReservationNotFound, "no locker reservation for order %s", orderID)
	}
	return res, err
}

func (r *Queries) UpdateReservationState(ctx context.Context, orderID string, state locker.State, at time.Time) (locker.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `UPDATE locker_reservations SET state=$2, updated_at=$3
		WHERE order_id=$1 RETURNING `+reservationColumns, orderID, string(state), at))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return locker.Reservation{}, apperr.New(apperr.KindReservationNotFound, "no locker reservation for order %s", orderID)
	case isUniqueViolation(err, ""):
		return locker.Reservation{}, apperr.New(apperr.KindReservationConflict, "the locker day of order %s is taken", orderID)
	}
	return res, err
}

func (r *Queries) ActiveReservations(ctx context.Context) ([]locker.Reservation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+reservationColumns+` FROM locker_reservations
		WHERE state NOT IN ('completed','declined') ORDER BY reservation_day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []locker.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Queries) CredentialByOrder(ctx context.Context, orderID string) (pickup.Credential, bool, error) {
	var c pickup.Credential
	err := r.q.QueryRow(ctx, `SELECT id, order_id, payload, created_at FROM pickup_credentials WHERE order_id=$1`, orderID).
		Scan(&c.ID, &c.OrderID, &c.Payload, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pickup.Credential{}, false, nil
	}
	if err != nil {
		return pickup.Credential{}, false, err
	}
	return c, true, nil
}

// InsertCredentialIfAbsent keeps the first credential when two issuers race.
func (r *Queries) InsertCredentialIfAbsent(ctx context.Context, c pickup.Credential) (pickup.Credential, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO pickup_credentials(id, order_id, payload, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO NOTHING`, c.ID, c.OrderID, c.Payload, c.CreatedAt); err != nil {
		return pickup.Credential{}, err
	}
	stored, ok, err := r.CredentialByOrder(ctx, c.OrderID)
	if err != nil {
		return pickup.Credential{}, err
	}
	if !ok {
		return pickup.Credential{}, apperr.NotFound("pickup credential for order", c.OrderID)
	}
	return stored, nil
}
