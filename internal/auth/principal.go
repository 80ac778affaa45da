// Package auth is the boundary to the external identity provider. Tokens are
// issued elsewhere; this package only verifies them and carries the resulting
// principal through request contexts.
package auth

import (
	"context"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
)

type Role string

const (
	RoleClient Role = "client"
	RoleBakery Role = "bakery"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleBakery, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller of a mutating operation.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Require fails with an authorization error unless p has one of roles.
func (p Principal) Require(roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("role %q may not perform this operation", p.Role)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
