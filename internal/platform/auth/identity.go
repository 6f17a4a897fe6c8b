package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Roles recognised across the API. Customers default to RoleUser; staff and
// admin are granted through custom claims or admin-issued tokens.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// ErrUserLoaderUnavailable indicates the identity has no Firebase user loader.
var ErrUserLoaderUnavailable = errors.New("auth: user loader not configured")

// UserLoader fetches the Firebase user profile for a UID.
type UserLoader func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UID    string
	Email  string
	Roles  []string
	Locale string

	userLoader UserLoader
	loadOnce   sync.Once
	userRecord *firebaseauth.UserRecord
	userErr    error
}

// HasRole reports whether the identity carries the role, case-insensitively.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	if role == "" {
		return false
	}
	for _, held := range i.Roles {
		if strings.EqualFold(held, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of the roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// User loads the Firebase user profile once and caches the result.
func (i *Identity) User(ctx context.Context) (*firebaseauth.UserRecord, error) {
	if i == nil || i.userLoader == nil {
		return nil, ErrUserLoaderUnavailable
	}
	i.loadOnce.Do(func() {
		i.userRecord, i.userErr = i.userLoader(ctx, i.UID)
	})
	return i.userRecord, i.userErr
}

type identityContextKey struct{}

// WithIdentity stores the identity on the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
