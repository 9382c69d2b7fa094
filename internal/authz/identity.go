package authz

import "context"

// Identity is an authenticated actor with its role and tier already
// resolved. Authentication itself is out of scope: identities arrive here
// fully established.
type Identity struct {
	UserID         int64
	OrganizationID int64
	Role           Role
	Tier           SubscriptionTier
}

// IdentityResolver loads the role and subscription tier for a user. The
// users package provides the storage-backed implementation.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID int64) (*Identity, error)
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the resolved identity from context, or nil
// when the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
