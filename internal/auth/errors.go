package auth

import "errors"

var (
	// ErrNotFound is the expected miss outcome of a token or username
	// lookup. It is control flow for the credential chain, never logged
	// as a failure.
	ErrNotFound = errors.New("auth: not found")

	// ErrValidation indicates a principal with malformed fields was
	// rejected before any write happened.
	ErrValidation = errors.New("auth: invalid principal")

	// ErrTokenCollision indicates a save would have violated the
	// uniqueness invariant on auth or api tokens.
	ErrTokenCollision = errors.New("auth: token collision")

	// ErrBadCredentials indicates the directory rejected an interactive
	// login. Recoverable by the user; no state is mutated.
	ErrBadCredentials = errors.New("auth: bad credentials")
)
