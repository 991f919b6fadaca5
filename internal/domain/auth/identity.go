// Package auth describes the authenticated caller and verifies the session
// tokens that carry it.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the permission level of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

var (
	// ErrUnauthorized is returned when the request carries no valid token.
	ErrUnauthorized = errors.New("Unauthorized request")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("You are not allowed to perform this action")
)

// Identity is the caller extracted from a verified session token.
type Identity struct {
	UserID   string
	Email    string
	Username string
	Role     Role
}

// IsAdmin reports whether the caller has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
