package oidcx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates provider-issued id tokens. The pipeline is strictly
// ordered and short-circuits on the first failure: header parse, kid lookup,
// RS256 signature, issuer, audience, expiry. Only RS256 is accepted; a token
// declaring any other algorithm is rejected before signature verification to
// rule out algorithm confusion.
type Verifier struct {
	keys     *KeyCache
	issuer   string
	clientID string
}

// NewVerifier creates a verifier bound to one issuer and one client id
// (the expected audience).
func NewVerifier(keys *KeyCache, issuer, clientID string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, clientID: clientID}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Verify validates the token string and returns its claims, or one of the
// package sentinel errors.
func (v *Verifier) Verify(ctx context.Context, token string) (*IdentityClaims, error) {
	// 1. Peek at the header without trusting anything in it.
	hdr, err := parseHeader(token)
	if err != nil {
		return nil, err
	}

	// 2. Fixed algorithm family. Checked before touching key material.
	if hdr.Alg != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: token declares %q", ErrAlgMismatch, hdr.Alg)
	}
	if hdr.Kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrMalformed)
	}

	// 3. Resolve the signing key. ErrKeyFetch and ErrUnknownKID pass through.
	pub, err := v.keys.Key(ctx, hdr.Kid)
	if err != nil {
		return nil, err
	}

	// 4. Signature check. Claim validation is done explicitly below so every
	// failure maps to exactly one sentinel, in spec order.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(token, &IdentityClaims{}, func(t *jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrMalformed)
	}

	// 5-7. Issuer, audience, expiry. Same order every time.
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.clientID); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}

	return claims, nil
}

// parseHeader decodes the first JWT segment. The content is attacker
// controlled at this point, so nothing here is trusted beyond routing the
// verification.
func parseHeader(token string) (tokenHeader, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return tokenHeader{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return tokenHeader{}, fmt.Errorf("%w: header segment: %v", ErrMalformed, err)
	}

	var hdr tokenHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return tokenHeader{}, fmt.Errorf("%w: header json: %v", ErrMalformed, err)
	}
	return hdr, nil
}
