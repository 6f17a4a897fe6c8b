package storage

import (
	"context"
	"errors"

	"github.com/auric-atelier/api/internal/platform/auth"
)

// ErrPermissionDenied is returned when the caller may not view the payment proof.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeProofAccess validates whether the identity may view the proof
// attached to an order owned by ownerUID. Customers see their own proofs,
// staff and admins see all of them.
func AuthorizeProofAccess(identity *auth.Identity, ownerUID string) error {
	if identity == nil {
		return ErrPermissionDenied
	}
	if ownerUID != "" && identity.UID == ownerUID {
		return nil
	}
	if identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin) {
		return nil
	}
	return ErrPermissionDenied
}

// AuthorizeProofAccessFromContext extracts the identity from context and validates access.
func AuthorizeProofAccessFromContext(ctx context.Context, ownerUID string) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, ErrPermissionDenied
	}
	if err := AuthorizeProofAccess(identity, ownerUID); err != nil {
		return nil, err
	}
	return identity, nil
}
