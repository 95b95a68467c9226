package oidcx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the verified content of a provider-issued id token.
// A value is only ever handed out after the full verification pipeline has
// passed; partial results never leak.
type IdentityClaims struct {
	jwt.RegisteredClaims

	// Email as asserted by the identity provider.
	Email string `json:"email,omitempty"`
}

// ValidateIssuer checks the iss claim against the expected issuer URL.
// Exact string equality, no normalisation.
func (c *IdentityClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks that the aud claim contains the client id.
func (c *IdentityClaims) ValidateAudience(clientID string) error {
	if clientID == "" {
		return nil // nothing to enforce
	}

	if !slices.Contains(c.Audience, clientID) {
		return ErrAudience
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and, when the
// provider set one, that nbf has passed. nbf is optional; exp is not.
func (c *IdentityClaims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt == nil || now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
