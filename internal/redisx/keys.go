package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{client_id}:{key} -> "pending" while
	// the first request runs, then a JSON array of order ids
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Order status cache: order_status:{order_id} -> {"order_id": "...", "status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Locker day lease: lock:locker:{yyyy-mm-dd} -> holder token
	KeyLockerDay = "lock:locker:%s"

	// Cart session per client: cart:{client_id} -> JSON cart
	KeyCart = "cart:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 7 * 24 * time.Hour
)
