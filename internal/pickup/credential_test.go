package pickup

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

type memRepo struct {
	mu sync.Mutex
	m  map[string]Credential
}

func (r *memRepo) CredentialByOrder(_ context.Context, orderID string) (Credential, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[orderID]
	return c, ok, nil
}

func (r *memRepo) InsertCredentialIfAbsent(_ context.Context, c Credential) (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.m[c.OrderID]; ok {
		return existing, nil
	}
	r.m[c.OrderID] = c
	return c, nil
}

func TestIssueOrGetIsIdempotent(t *testing.T) {
	iss := NewIssuer("secret")
	repo := &memRepo{m: map[string]Credential{}}
	now := time.Now()

	first, created, err := iss.IssueOrGet(context.Background(), repo, "order-1", now)
	if err != nil || !created {
		t.Fatalf("first issue: created=%v err=%v", created, err)
	}
	second, created, err := iss.IssueOrGet(context.Background(), repo, "order-1", now.Add(time.Hour))
	if err != nil || created {
		t.Fatalf("second issue: created=%v err=%v", created, err)
	}
	if first != second {
		t.Fatalf("credential changed: %+v vs %+v", first, second)
	}
	if !strings.HasPrefix(first.Payload, "bko1.") {
		t.Fatalf("payload = %q", first.Payload)
	}
}

// A credential inserted between the lookup and the insert wins.
type racingRepo struct {
	winner Credential
}

func (r *racingRepo) CredentialByOrder(context.Context, string) (Credential, bool, error) {
	return Credential{}, false, nil
}

func (r *racingRepo) InsertCredentialIfAbsent(context.Context, Credential) (Credential, error) {
	return r.winner, nil
}

func TestIssueOrGetLosesRace(t *testing.T) {
	winner := Credential{ID: "w", OrderID: "order-1", Payload: "bko1.x.y"}
	got, created, err := NewIssuer("k").IssueOrGet(context.Background(), &racingRepo{winner: winner}, "order-1", time.Now())
	if err != nil || created || got != winner {
		t.Fatalf("got %+v created=%v err=%v", got, created, err)
	}
}

func TestResolve(t *testing.T) {
	iss := NewIssuer("secret")
	payload := iss.payload("order-42")
	if payload != iss.payload("order-42") {
		t.Fatal("payload is not deterministic")
	}
	id, err := iss.Resolve("  " + payload + "\n")
	if err != nil || id != "order-42" {
		t.Fatalf("Resolve = %q, %v", id, err)
	}

	parts := strings.Split(payload, ".")
	forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte("order-43")) + "." + parts[2]

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"wrong prefix", "bko2." + parts[1] + "." + parts[2]},
		{"missing part", parts[0] + "." + parts[1]},
		{"bad base64", parts[0] + ".!!!." + parts[2]},
		{"swapped order id", forged},
		{"other key", NewIssuer("other").payload("order-42")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := iss.Resolve(tt.payload); apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("err = %v, want VALIDATION", err)
			}
		})
	}
}
