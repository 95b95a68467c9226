package oidcx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// exchangeTimeout bounds the outbound call to the provider's token endpoint.
const exchangeTimeout = 10 * time.Second

// Tokens is the provider's response to a successful code exchange.
type Tokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Exchanger completes the OAuth2 authorization_code grant against the
// provider's token endpoint. There is no retry: the browser redirect flow
// simply starts over on failure, so a failed exchange is terminal here.
type Exchanger struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewExchanger builds an exchanger for one client registration. clientSecret
// may be empty for public clients; when set, the exchange authenticates with
// an HTTP Basic header of client_id:client_secret.
func NewExchanger(tokenURL, clientID, clientSecret string) *Exchanger {
	return &Exchanger{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: exchangeTimeout},
	}
}

// Exchange redeems an authorization code for tokens. Any transport failure,
// non-2xx status, or a response without an id_token yields ErrExchange.
func (e *Exchanger) Exchange(ctx context.Context, code, redirectURI string) (*Tokens, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {e.clientID},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if e.clientSecret != "" {
		req.SetBasicAuth(e.clientID, e.clientSecret)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s", ErrExchange, resp.StatusCode, string(body))
	}

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExchange, err)
	}
	if tokens.IDToken == "" {
		return nil, fmt.Errorf("%w: response missing id_token", ErrExchange)
	}

	return &tokens, nil
}

// SecretHash computes the keyed hash some provider user-management APIs
// require on top of standard OAuth2 client authentication:
// base64(HMAC-SHA256(secret, username+clientID)). The token-endpoint flow
// above doesn't use it, but anything calling those legacy APIs does.
// Returns "" when no client secret is configured.
func SecretHash(username, clientID, secret string) string {
	if secret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
