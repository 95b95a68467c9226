package oidcx

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds the JWKS fetch; a slow provider surfaces as
// ErrKeyFetch rather than a hung request.
const fetchTimeout = 5 * time.Second

// JWK is a single public key from the provider's JWKS document (RFC 7517).
// Only RSA signing keys are supported; anything else in the set is ignored.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	// RSA public key parameters (base64url)
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
}

// JWKS is the provider's published key set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeyCache lazily fetches the identity provider's JWKS and keeps it for the
// process lifetime. The first successful fetch wins; there is no refresh.
//
// Concurrent first calls are collapsed into a single upstream request via
// singleflight, so N cold callers cause exactly one fetch and all see the
// same result. A failed fetch is not cached; the next caller retries.
type KeyCache struct {
	url    string
	client *http.Client

	group singleflight.Group

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey // kid -> key, nil until first success
}

// NewKeyCache builds a cache for the given JWKS URL. No network calls happen
// until the first Key lookup.
func NewKeyCache(jwksURL string) *KeyCache {
	return &KeyCache{
		url:    jwksURL,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Key returns the RSA public key for the given kid. Lookups are by exact kid
// match with no fallback; a kid absent from the set is ErrUnknownKID.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	if pub, ok := keys[kid]; ok {
		return pub, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
}

// Ready reports whether a key set has been fetched. Used by readiness checks;
// false just means nobody has needed a key yet (or the provider is down).
func (c *KeyCache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys != nil
}

func (c *KeyCache) load(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	c.mu.RLock()
	keys := c.keys
	c.mu.RUnlock()
	if keys != nil {
		return keys, nil
	}

	// Collapse concurrent cold-start fetches into one request. Everyone in
	// flight shares this call's result, success or failure.
	v, err, _ := c.group.Do("jwks", func() (any, error) {
		c.mu.RLock()
		cached := c.keys
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		fetched, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*rsa.PublicKey), nil
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrKeyFetch, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: decode jwks: %v", ErrKeyFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, j := range jwks.Keys {
		if j.Kty != "RSA" || j.Kid == "" {
			continue // not a key we can verify with
		}
		pub, err := parseRSAJWK(j)
		if err != nil {
			return nil, fmt.Errorf("%w: parse jwk %q: %v", ErrKeyFetch, j.Kid, err)
		}
		keys[j.Kid] = pub
	}

	return keys, nil
}

// parseRSAJWK converts the base64url modulus/exponent pair into a usable
// crypto key.
func parseRSAJWK(j JWK) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nb)
	e := new(big.Int).SetBytes(eb).Int64()
	return &rsa.PublicKey{N: n, E: int(e)}, nil
}

// NewRSAJWK builds a JWK for an RSA public key. Mainly useful for tests that
// stand up a fake provider.
func NewRSAJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
