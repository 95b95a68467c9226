package oidcx

import "errors"

// Verification and exchange failures are sentinel errors so callers can
// branch with errors.Is without string matching. Wrapped variants carry the
// upstream detail for logs.
var (
	ErrMalformed        = errors.New("oidcx: malformed token")
	ErrAlgMismatch      = errors.New("oidcx: algorithm mismatch")
	ErrUnknownKID       = errors.New("oidcx: unknown kid")
	ErrInvalidSignature = errors.New("oidcx: invalid signature")

	ErrIssuer      = errors.New("oidcx: issuer mismatch")
	ErrAudience    = errors.New("oidcx: audience mismatch")
	ErrExpired     = errors.New("oidcx: token expired")
	ErrNotYetValid = errors.New("oidcx: token not yet valid")

	ErrKeyFetch = errors.New("oidcx: key set fetch failed")
	ErrExchange = errors.New("oidcx: authorization code exchange failed")
)
