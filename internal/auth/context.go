package auth

import "context"

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the request
// context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity established earlier in the
// request, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || v.Username == "" {
		return Identity{}, false
	}
	return v, true
}
