// Package pickup mints the one-time pickup credential printed as a QR code
// on locker orders. Rendering the QR image is left to the clients.
package pickup

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

const payloadPrefix = "bko1"

type Credential struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo is implemented by the stores. InsertCredentialIfAbsent returns the
// stored credential, which is the existing one when the order already has
// one; a store never holds two credentials for the same order.
type Repo interface {
	CredentialByOrder(ctx context.Context, orderID string) (Credential, bool, error)
	InsertCredentialIfAbsent(ctx context.Context, c Credential) (Credential, error)
}

type Issuer struct {
	key []byte
}

func NewIssuer(signingKey string) *Issuer {
	return &Issuer{key: []byte(signingKey)}
}

// IssueOrGet returns the credential of orderID, minting and storing one when
// none exists. The bool is false when an existing credential was returned.
func (i *Issuer) IssueOrGet(ctx context.Context, r Repo, orderID string, now time.Time) (Credential, bool, error) {
	if existing, ok, err := r.CredentialByOrder(ctx, orderID); err != nil || ok {
		return existing, false, err
	}
	fresh := Credential{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Payload:   i.payload(orderID),
		CreatedAt: now.UTC(),
	}
	stored, err := r.InsertCredentialIfAbsent(ctx, fresh)
	if err != nil {
		return Credential{}, false, err
	}
	return stored, stored.ID == fresh.ID, nil
}

// Resolve verifies a scanned payload and returns the order it is bound to.
func (i *Issuer) Resolve(payload string) (string, error) {
	parts := strings.Split(strings.TrimSpace(payload), ".")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return "", apperr.Validation("malformed pickup credential")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", apperr.Validation("malformed pickup credential")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(sig, i.sign(string(raw))) {
		return "", apperr.Validation("pickup credential signature mismatch")
	}
	return string(raw), nil
}

func (i *Issuer) payload(orderID string) string {
	return payloadPrefix + "." +
		base64.RawURLEncoding.EncodeToString([]byte(orderID)) + "." +
		base64.RawURLEncoding.EncodeToString(i.sign(orderID))
}

func (i *Issuer) sign(orderID string) []byte {
	mac := hmac.New(sha256.New, i.key)
	mac.Write([]byte("order:" + orderID))
	return mac.Sum(nil)[:16]
}
