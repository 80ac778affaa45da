package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

// CartStore keeps per-client carts between requests.
type CartStore interface {
	Load(ctx context.Context, clientID string) (cart.Cart, error)
	Save(ctx context.Context, clientID string, c cart.Cart) error
	Clear(ctx context.Context, clientID string) error
}

// IdempotencyStore remembers the orders a checkout key produced. Claim is
// atomic: exactly one request gets claimed == true for an unused key, later
// ones get the recorded ids or redisx.ErrCheckoutPending.
type IdempotencyStore interface {
	Claim(ctx context.Context, clientID, key string) (orderIDs []string, claimed bool, err error)
	Remember(ctx context.Context, clientID, key string, orderIDs []string) error
	Release(ctx context.Context, clientID, key string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.OrderStatus, bool, error)
	Set(ctx context.Context, s redisx.OrderStatus) error
}

// API is the HTTP surface of the ordering core. Carts, Idempotency and
// Status are optional; without Redis they stay nil.
type API struct {
	Orders    *orders.Service
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Auth      *auth.Verifier

	Carts       CartStore
	Idempotency IdempotencyStore
	Status      StatusCache

	// RateLimitPerMin limits checkout and locker reservation per client IP;
	// zero disables it.
	RateLimitPerMin int
}

func (a *API) Register(r chi.Router) {
	r.Get("/products", a.listProducts)
	r.Get("/products/{id}", a.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(a.Auth.Middleware)

		r.Post("/products", a.createProduct)
		r.Delete("/products/{id}", a.deleteProduct)
		r.Patch("/products/{id}/stock", a.setStock)
		r.Put("/vendors/{id}", a.registerVendor)

		r.Get("/cart", a.getCart)
		r.Get("/cart/summary", a.cartSummary)
		r.Post("/cart/lines", a.addCartLine)
		r.Delete("/cart/lines/{vendorID}/{key}", a.removeCartLine)
		r.Delete("/cart", a.clearCart)

		r.Get("/orders", a.listOrders)
		r.Get("/orders/{id}", a.getOrder)
		r.Get("/orders/{id}/status", a.getOrderStatus)
		r.Get("/orders/{id}/history", a.orderHistory)
		r.Patch("/orders/{id}/status", a.transitionOrder)
		r.Post("/orders/{id}/cancel", a.cancelOrder)
		r.Post("/orders/{id}/pickup-credential", a.issueCredential)
		r.Get("/orders/{id}/pickup-credential", a.getCredential)

		r.Get("/locker/availability", a.lockerAvailability)
		r.Get("/locker/status", a.lockerStatus)
		r.Post("/locker/redeem", a.redeemPickup)

		r.Group(func(r chi.Router) {
			if a.RateLimitPerMin > 0 {
				r.Use(httprate.LimitByIP(a.RateLimitPerMin, time.Minute))
			}
			r.Post("/checkout", a.checkout)
			r.Post("/orders/{id}/locker-reservation", a.reserveLocker)
		})
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// parseDate accepts RFC 3339 timestamps or plain dates in the service
// location.
func (a *API) parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc := a.Orders.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
