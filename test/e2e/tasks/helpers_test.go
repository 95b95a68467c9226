package tasks_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	tasksapi "github.com/nimbusworks/taskhive/internal/tasks/http"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/internal/tasks/store/drivers/sqlite"
	"github.com/nimbusworks/taskhive/pkg/oidcx"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

/*
 * End-to-end tests wiring the real router, sqlite store, redis-backed
 * sessions (miniredis) and a fake hosted identity provider together, then
 * driving everything through plain HTTP like a browser would.
 */

const (
	clientID   = "client-abc"
	signingKid = "key-1"
	adminGroup = "admin"
)

// idpUser is the identity the fake provider asserts for the next login.
type idpUser struct {
	Subject string
	Email   string
	Groups  []string
}

// fakeIdP is a stand-in hosted identity provider: JWKS plus a token
// endpoint that redeems the fixed code "good-code" for tokens describing
// the configured user.
type fakeIdP struct {
	*httptest.Server
	key  *rsa.PrivateKey
	user idpUser
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []any{oidcx.NewRSAJWK(signingKid, &key.PublicKey)},
		})
	})
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":     idp.idToken(t),
			"access_token": idp.accessToken(t),
			"token_type":   "Bearer",
		})
	})

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Server.Close)
	return idp
}

func (idp *fakeIdP) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = signingKid
	signed, err := token.SignedString(idp.key)
	require.NoError(t, err)
	return signed
}

func (idp *fakeIdP) idToken(t *testing.T) string {
	return idp.sign(t, jwt.MapClaims{
		"iss":   idp.URL,
		"aud":   clientID,
		"sub":   idp.user.Subject,
		"email": idp.user.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func (idp *fakeIdP) accessToken(t *testing.T) string {
	claims := jwt.MapClaims{
		"sub": idp.user.Subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if len(idp.user.Groups) > 0 {
		claims[oidcx.GroupsClaim] = idp.user.Groups
	}
	return idp.sign(t, claims)
}

// env is one fully wired application instance.
type env struct {
	srv *httptest.Server
	idp *fakeIdP
}

func newEnv(t *testing.T) *env {
	t.Helper()

	idp := newFakeIdP(t)

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := session.NewManager(session.NewRedisStoreWithClient(client), time.Hour, false)

	keys := oidcx.NewKeyCache(idp.URL + "/.well-known/jwks.json")
	auth := &service.ProviderAuthenticator{
		Exchanger:  oidcx.NewExchanger(idp.URL+"/oauth2/token", clientID, "shh"),
		Verifier:   oidcx.NewVerifier(keys, idp.URL, clientID),
		AdminGroup: adminGroup,
	}

	provider := tasksapi.ProviderConfig{
		AuthorizeURL: idp.URL + "/oauth2/authorize",
		LogoutURL:    idp.URL + "/logout?client_id=" + clientID,
		ClientID:     clientID,
		RedirectURI:  "http://app.test/callback",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := tasksapi.NewRouter("e2e", st, sessions, keys, provider, logger)
	router.Authenticator = auth
	router.TaskService = &service.TaskService{Store: st}
	router.AuditService = &service.AuditService{Store: st}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{srv: srv, idp: idp}
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// loginAs walks the full authorization code flow for user: hit /login,
// capture the state from the authorize redirect, then return through
// /callback with the provider-issued code.
func (e *env) loginAs(t *testing.T, browser *http.Client, user idpUser) *http.Response {
	t.Helper()

	e.idp.user = user

	resp, err := browser.Get(e.srv.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err = browser.Get(e.srv.URL + "/callback?code=good-code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}
