package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// DayLease is a locker.DayLocker shared by every API node. The lease expires
// after TTL so a crashed holder cannot block a day forever.
type DayLease struct {
	Redis redis.Cmdable
	TTL   time.Duration
	// Retry is the poll interval while the day is held elsewhere.
	Retry time.Duration
}

func (l *DayLease) Acquire(ctx context.Context, day string) (func(), error) {
	key := fmt.Sprintf(KeyLockerDay, day)
	token := uuid.NewString()
	ttl, retry := l.TTL, l.Retry
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}

	for {
		ok, err := l.Redis.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// the caller's ctx may already be done when releasing
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.Redis, []string{key}, token).Err()
	}, nil
}
