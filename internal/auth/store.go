package auth

import "context"

// Store persists principals. Implementations run against the tenant
// connection bound to the current request, so a Store instance is
// request-scoped.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByAuthToken(ctx context.Context, token string) (*Principal, error)
	FindByAPIToken(ctx context.Context, token string) (*Principal, error)

	// CreateOrGet returns the existing principal or creates a bare row
	// for the username. Concurrent first logins converge on one row: the
	// loser of the insert race re-reads the winner's.
	CreateOrGet(ctx context.Context, username string) (*Principal, error)

	// Save persists the principal. Malformed fields yield ErrValidation;
	// a token uniqueness violation yields ErrTokenCollision, never a
	// silent overwrite.
	Save(ctx context.Context, p *Principal) error
}
