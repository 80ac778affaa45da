package httpx

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/cart"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/locker"
	"github.com/ariefcatur/go-bakery-orders/internal/memstore"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
	"github.com/ariefcatur/go-bakery-orders/internal/pickup"
	"github.com/ariefcatur/go-bakery-orders/internal/redisx"
)

var (
	wednesday = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	thursday  = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
)

// The fakes keep JSON like the Redis implementations do, so handlers never
// share slices with stored values.
type memCarts struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCarts) Load(_ context.Context, clientID string) (cart.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out cart.Cart
	if b, ok := c.m[clientID]; ok {
		return out, json.Unmarshal(b, &out)
	}
	return out, nil
}

func (c *memCarts) Save(_ context.Context, clientID string, v cart.Cart) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[clientID] = b
	return nil
}

func (c *memCarts) Clear(_ context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, clientID)
	return nil
}

// memIdem claims keys under one mutex like SETNX does. When held is set, the
// request that claims a key reports on claimed and then waits for held.
type memIdem struct {
	mu      sync.Mutex
	m       map[string][]string
	claimed chan struct{}
	held    chan struct{}
}

func (i *memIdem) Claim(_ context.Context, clientID, key string) ([]string, bool, error) {
	i.mu.Lock()
	ids, ok := i.m[clientID+"/"+key]
	if ok {
		i.mu.Unlock()
		if ids == nil {
			return nil, false, redisx.ErrCheckoutPending
		}
		return ids, false, nil
	}
	i.m[clientID+"/"+key] = nil
	i.mu.Unlock()
	if i.held != nil {
		i.claimed <- struct{}{}
		<-i.held
	}
	return nil, true, nil
}

func (i *memIdem) Remember(_ context.Context, clientID, key string, ids []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.m[clientID+"/"+key] = ids
	return nil
}

func (i *memIdem) Release(_ context.Context, clientID, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.m[clientID+"/"+key] == nil {
		delete(i.m, clientID+"/"+key)
	}
	return nil
}

type memStatus struct {
	mu sync.Mutex
	m  map[string]redisx.OrderStatus
}

func (s *memStatus) Get(_ context.Context, id string) (redisx.OrderStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[id]
	return v, ok, nil
}

func (s *memStatus) Set(_ context.Context, v redisx.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[v.OrderID] = v
	return nil
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	auth   *auth.Verifier
	status *memStatus
	idem   *memIdem
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	if err := st.UpsertVendor(ctx, catalog.Vendor{ID: "bakery-1", Name: "Sweet Corner"}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertProduct(ctx, catalog.Product{ID: "cake", VendorID: "bakery-1", Name: "Chocolate cake", Price: decimal.NewFromInt(10), Stock: 5}); err != nil {
		t.Fatal(err)
	}

	verifier := auth.NewVerifier("test-secret")
	status := &memStatus{m: map[string]redisx.OrderStatus{}}
	idem := &memIdem{m: map[string][]string{}}
	api := &API{
		Orders: &orders.Service{
			Store:       st,
			Locker:      locker.NewManager(locker.NewLocalLocks(), time.UTC),
			Issuer:      pickup.NewIssuer("test-key"),
			Fees:        orders.DefaultFees(),
			Location:    time.UTC,
			ServiceName: "test",
			Now:         func() time.Time { return wednesday },
		},
		Catalog:     &catalog.Service{Repo: st},
		Inventory:   &inventory.Service{Ledger: st, Catalog: st},
		Auth:        verifier,
		Carts:       &memCarts{m: map[string][]byte{}},
		Idempotency: idem,
		Status:      status,
	}
	r := NewRouter(RouterConfig{})
	api.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, auth: verifier, status: status, idem: idem}
}

// do sends body as JSON, authenticated as p when p.ID is set, and decodes
// the response into out when out is non-nil.
func (ts *testServer) do(method, path string, p auth.Principal, body any, out any, headers ...string) int {
	ts.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	if err != nil {
		ts.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if p.ID != "" {
		tok, err := ts.auth.Sign(p, time.Minute)
		if err != nil {
			ts.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

var (
	client = auth.Principal{ID: "client-1", Role: auth.RoleClient}
	bakery = auth.Principal{ID: "bakery-1", Role: auth.RoleBakery}
	other  = auth.Principal{ID: "client-2", Role: auth.RoleClient}
)

func checkoutBody(qty int, option string) map[string]any {
	return map[string]any{
		"lines":         []map[string]any{{"product_id": "cake", "quantity": qty}},
		"pickup_option": option,
		"delivery_date": thursday,
	}
}

func TestCheckoutIsIdempotent(t *testing.T) {
	ts := newTestServer(t)

	var first checkoutResponse
	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(2, "locker"), &first, "Idempotency-Key", "k1"); code != http.StatusCreated {
		t.Fatalf("status = %d", code)
	}
	if len(first.Orders) != 1 || !first.Orders[0].TotalPrice.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("orders = %+v", first.Orders)
	}

	var replay checkoutResponse
	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(2, "locker"), &replay, "Idempotency-Key", "k1"); code != http.StatusOK {
		t.Fatalf("replay status = %d", code)
	}
	if !replay.Idempotent || replay.Orders[0].ID != first.Orders[0].ID {
		t.Fatalf("replay = %+v", replay)
	}

	var p catalog.Product
	ts.do(http.MethodGet, "/products/cake", auth.Principal{}, nil, &p)
	if p.Stock != 3 {
		t.Fatalf("stock = %d, want 3", p.Stock)
	}
	if s := ts.status.m[first.Orders[0].ID]; s.Status != string(orders.StatusPending) {
		t.Fatalf("status cache = %+v", s)
	}
}

func TestCheckoutKeyHeldByRunningRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.idem.claimed = make(chan struct{})
	ts.idem.held = make(chan struct{})

	type result struct {
		code int
		body checkoutResponse
	}
	first := make(chan result, 1)
	go func() {
		var r result
		r.code = ts.do(http.MethodPost, "/checkout", client, checkoutBody(2, "in-store"), &r.body, "Idempotency-Key", "k1")
		first <- r
	}()
	<-ts.idem.claimed

	var busy errorResponse
	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(2, "in-store"), &busy, "Idempotency-Key", "k1"); code != http.StatusConflict {
		t.Fatalf("concurrent retry status = %d, want 409", code)
	}
	if busy.Error.Code != apperr.KindRequestInFlight || !busy.Error.Retryable {
		t.Fatalf("concurrent retry error = %+v", busy.Error)
	}

	close(ts.idem.held)
	r := <-first
	if r.code != http.StatusCreated || len(r.body.Orders) != 1 {
		t.Fatalf("first request = %d %+v", r.code, r.body)
	}

	var replay checkoutResponse
	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(2, "in-store"), &replay, "Idempotency-Key", "k1"); code != http.StatusOK {
		t.Fatalf("replay status = %d", code)
	}
	if replay.Orders[0].ID != r.body.Orders[0].ID {
		t.Fatalf("replay order = %s, want %s", replay.Orders[0].ID, r.body.Orders[0].ID)
	}

	var p catalog.Product
	ts.do(http.MethodGet, "/products/cake", auth.Principal{}, nil, &p)
	if p.Stock != 3 {
		t.Fatalf("stock = %d, want 3", p.Stock)
	}
}

func TestCheckoutKeyFreedAfterFailure(t *testing.T) {
	ts := newTestServer(t)

	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(9, "in-store"), nil, "Idempotency-Key", "k2"); code != http.StatusUnprocessableEntity {
		t.Fatalf("short stock status = %d", code)
	}
	var retry checkoutResponse
	if code := ts.do(http.MethodPost, "/checkout", client, checkoutBody(1, "in-store"), &retry, "Idempotency-Key", "k2"); code != http.StatusCreated {
		t.Fatalf("retry status = %d, want 201", code)
	}
	if retry.Idempotent || len(retry.Orders) != 1 {
		t.Fatalf("retry = %+v", retry)
	}
}

func TestCheckoutErrors(t *testing.T) {
	ts := newTestServer(t)

	if code := ts.do(http.MethodPost, "/checkout", auth.Principal{}, checkoutBody(1, "locker"), nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", code)
	}

	tests := []struct {
		name   string
		p      auth.Principal
		body   any
		status int
		code   apperr.Kind
	}{
		{"bakery cannot check out", bakery, checkoutBody(1, "locker"), http.StatusForbidden, apperr.KindAuthorization},
		{"unknown pickup option", client, checkoutBody(1, "drone"), http.StatusBadRequest, apperr.KindValidation},
		{"delivery without address", client, checkoutBody(1, "delivery"), http.StatusBadRequest, apperr.KindValidation},
		{"not enough stock", client, checkoutBody(9, "in-store"), http.StatusUnprocessableEntity, apperr.KindInsufficientStock},
		{"empty cart", client, map[string]any{"lines": []any{}, "pickup_option": "in-store", "delivery_date": thursday}, http.StatusBadRequest, apperr.KindEmptyCart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			if code := ts.do(http.MethodPost, "/checkout", tt.p, tt.body, &body); code != tt.status {
				t.Fatalf("status = %d, want %d", code, tt.status)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("code = %s, want %s", body.Error.Code, tt.code)
			}
		})
	}
}

func TestCheckoutFromCartSession(t *testing.T) {
	ts := newTestServer(t)

	var c cart.Cart
	if code := ts.do(http.MethodPost, "/cart/lines", client, map[string]any{"product_id": "cake", "quantity": 2}, &c); code != http.StatusOK {
		t.Fatalf("add line status = %d", code)
	}
	if len(c.Buckets) != 1 || c.Buckets[0].VendorName != "Sweet Corner" {
		t.Fatalf("cart = %+v", c)
	}

	var sum cart.Summary
	ts.do(http.MethodGet, "/cart/summary?pickup_option=delivery", client, nil, &sum)
	if !sum.GrandTotal.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("grand total = %s, want 35", sum.GrandTotal)
	}

	body := map[string]any{"pickup_option": "delivery", "delivery_address": "1 Main St", "delivery_date": thursday}
	if code := ts.do(http.MethodPost, "/checkout", client, body, nil); code != http.StatusCreated {
		t.Fatalf("checkout status = %d", code)
	}
	var after cart.Cart
	ts.do(http.MethodGet, "/cart", client, nil, &after)
	if !after.IsEmpty() {
		t.Fatalf("cart after checkout = %+v", after)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	var placed checkoutResponse
	ts.do(http.MethodPost, "/checkout", client, checkoutBody(1, "locker"), &placed)
	id := placed.Orders[0].ID

	var avail availabilityResponse
	ts.do(http.MethodGet, "/locker/availability?date=2026-10-15", client, nil, &avail)
	if avail.Available || avail.Date != "2026-10-15" {
		t.Fatalf("availability = %+v", avail)
	}

	if code := ts.do(http.MethodGet, "/orders/"+id, other, nil, nil); code != http.StatusNotFound {
		t.Fatalf("other client sees order: %d", code)
	}
	if code := ts.do(http.MethodPatch, "/orders/"+id+"/status", client, map[string]any{"status": "accepted"}, nil); code != http.StatusForbidden {
		t.Fatalf("client accepted own order: %d", code)
	}

	var o orders.Order
	if code := ts.do(http.MethodPatch, "/orders/"+id+"/status", bakery, map[string]any{"status": "accepted"}, &o); code != http.StatusOK {
		t.Fatalf("accept status = %d", code)
	}
	if o.Status != orders.StatusAccepted {
		t.Fatalf("order status = %s", o.Status)
	}

	var cached redisx.OrderStatus
	ts.do(http.MethodGet, "/orders/"+id+"/status", client, nil, &cached)
	if cached.Status != string(orders.StatusAccepted) {
		t.Fatalf("cached status = %+v", cached)
	}
	if code := ts.do(http.MethodGet, "/orders/"+id+"/status", other, nil, nil); code != http.StatusNotFound {
		t.Fatalf("other client reads cached status: %d", code)
	}

	var history []orders.StatusChange
	ts.do(http.MethodGet, "/orders/"+id+"/history", client, nil, &history)
	if len(history) != 2 || history[1].To != orders.StatusAccepted {
		t.Fatalf("history = %+v", history)
	}

	if code := ts.do(http.MethodPost, "/orders/"+id+"/cancel", client, nil, &o); code != http.StatusOK || o.Status != orders.StatusDeclined {
		t.Fatalf("cancel status = %d, order %s", code, o.Status)
	}
	ts.do(http.MethodGet, "/locker/availability?date=2026-10-15", client, nil, &avail)
	if !avail.Available {
		t.Fatal("declined order still holds the locker day")
	}
	if code := ts.do(http.MethodPost, "/orders/"+id+"/cancel", client, nil, nil); code != http.StatusConflict {
		t.Fatalf("second cancel status = %d", code)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("healthz status=%d request id=%q", resp.StatusCode, resp.Header.Get("X-Request-Id"))
	}
}
