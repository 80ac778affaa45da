package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-bakery-orders/internal/cart"
)

// CartSessions keeps one cart per client between requests.
type CartSessions struct {
	Redis redis.Cmdable
}

// Load returns an empty cart when the client has none.
func (s *CartSessions) Load(ctx context.Context, clientID string) (cart.Cart, error) {
	b, err := s.Redis.Get(ctx, fmt.Sprintf(KeyCart, clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Cart{}, nil
	}
	if err != nil {
		return cart.Cart{}, err
	}
	var c cart.Cart
	if err := json.Unmarshal(b, &c); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

func (s *CartSessions) Save(ctx context.Context, clientID string, c cart.Cart) error {
	if c.IsEmpty() {
		return s.Clear(ctx, clientID)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, fmt.Sprintf(KeyCart, clientID), b, TTLCart).Err()
}

func (s *CartSessions) Clear(ctx context.Context, clientID string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(KeyCart, clientID)).Err()
}
