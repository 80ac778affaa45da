package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// OrderStatus is the cached view served by GET /orders/{id}/status.
type OrderStatus struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	VendorID  string    `json:"vendor_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StatusCache struct {
	Redis redis.Cmdable
}

// Get returns false on a cache miss.
func (c *StatusCache) Get(ctx context.Context, orderID string) (OrderStatus, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	var s OrderStatus
	if err := json.Unmarshal(b, &s); err != nil {
		return OrderStatus{}, false, err
	}
	return s, true, nil
}

func (c *StatusCache) Set(ctx context.Context, s OrderStatus) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, fmt.Sprintf(KeyOrderStatus, s.OrderID), b, TTLStatusCache).Err()
}

// ErrCheckoutPending is returned by Claim while another request holds the key.
var ErrCheckoutPending = errors.New("redisx: checkout with this key is in flight")

// pendingMarker holds a claimed key until the checkout records its orders.
const pendingMarker = "pending"

// Idempotency remembers which orders a checkout request produced.
type Idempotency struct {
	Redis redis.Cmdable
}

// Claim takes the key for the caller when it is unused. Otherwise it returns
// the order ids recorded for it, or ErrCheckoutPending while the first
// request is still running.
func (i *Idempotency) Claim(ctx context.Context, clientID, key string) ([]string, bool, error) {
	k := fmt.Sprintf(KeyIdemCheckout, clientID, key)
	ok, err := i.Redis.SetNX(ctx, k, pendingMarker, TTLIdemPending).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}
	b, err := i.Redis.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// Released between SETNX and GET; the caller retries.
		return nil, false, ErrCheckoutPending
	}
	if err != nil {
		return nil, false, err
	}
	if string(b) == pendingMarker {
		return nil, false, ErrCheckoutPending
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, false, err
	}
	return ids, false, nil
}

// Remember overwrites the claim with the orders the checkout placed.
func (i *Idempotency) Remember(ctx context.Context, clientID, key string, orderIDs []string) error {
	b, err := json.Marshal(orderIDs)
	if err != nil {
		return err
	}
	return i.Redis.Set(ctx, fmt.Sprintf(KeyIdemCheckout, clientID, key), b, TTLIdempotency).Err()
}

// Release drops a claim that placed no orders so the key can be retried.
// Recorded order ids are left alone.
func (i *Idempotency) Release(ctx context.Context, clientID, key string) error {
	return releaseScript.Run(ctx, i.Redis, []string{fmt.Sprintf(KeyIdemCheckout, clientID, key)}, pendingMarker).Err()
}

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	Redis   redis.Cmdable
	Service string
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Redis, fmt.Sprintf(KeyDedup, d.Service, eventID))
}

func (d *Dedup) MarkSeen(ctx context.Context, eventID string) error {
	return d.Redis.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Err()
}
