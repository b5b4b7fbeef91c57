package handlers

import "context"

// Identity is the authenticated caller resolved by the auth middleware
type Identity struct {
	Subject string
	Admin   bool
}

type identityKey struct{}

// WithIdentity stores the caller on the request context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller, if the request was authenticated
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
