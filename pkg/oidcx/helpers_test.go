package oidcx

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://idp.test/pool-1"
	testClientID = "client-abc"
	testKid      = "key-1"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// newJWKSServer serves a JWKS document with the given keys and counts hits.
func newJWKSServer(t *testing.T, jwks JWKS) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type claimOverride func(*IdentityClaims)

func withIssuer(iss string) claimOverride {
	return func(c *IdentityClaims) { c.Issuer = iss }
}

func withAudience(aud ...string) claimOverride {
	return func(c *IdentityClaims) { c.Audience = jwt.ClaimStrings(aud) }
}

func withExpiry(t time.Time) claimOverride {
	return func(c *IdentityClaims) { c.ExpiresAt = jwt.NewNumericDate(t) }
}

// signToken mints an RS256 id token with sane defaults that pass
// verification unless an override breaks them.
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, overrides ...claimOverride) string {
	t.Helper()

	now := time.Now()
	claims := &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "subject-1",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "alice@example.com",
	}
	for _, o := range overrides {
		o(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}
