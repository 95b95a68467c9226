package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/internal/tasks/store/drivers/sqlite"

	"github.com/stretchr/testify/require"
)

// newTestServer spins up the full router in local login mode backed by a
// real sqlite store and an in-memory session store.
func newTestServer(t *testing.T, provider ProviderConfig) *httptest.Server {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewRouter("test", st, sessions, nil, provider, logger)
	r.Authenticator = service.LocalAuthenticator{}
	r.TaskService = &service.TaskService{Store: st}
	r.AuditService = &service.AuditService{Store: st}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// newClient returns a cookie-keeping client that does not follow redirects,
// so login responses can be asserted directly.
func newClient(t *testing.T) *http.Client {
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

func login(t *testing.T, client *http.Client, baseURL, email string, asAdmin bool) {
	t.Helper()

	form := url.Values{"email": {email}}
	if asAdmin {
		form.Set("as_admin", "true")
	}
	resp, err := client.PostForm(baseURL+"/login/local", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLocalLoginFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})
	client := newClient(t)

	t.Run("login page describes local mode", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/login")
		require.NoError(t, err)
		body := decode[map[string]string](t, resp)
		require.Equal(t, "local", body["mode"])
	})

	t.Run("api requires a session", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/api/tasks")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects bad email", func(t *testing.T) {
		resp, err := client.PostForm(srv.URL+"/login/local", url.Values{"email": {"nope"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login issues session cookie", func(t *testing.T) {
		login(t, client, srv.URL, "alice@example.com", false)

		resp, err := client.Get(srv.URL + "/api/tasks")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("logout clears the session", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/logout")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "/", resp.Header.Get("Location"))

		resp, err = client.Get(srv.URL + "/api/tasks")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTaskAPI(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})
	client := newClient(t)
	login(t, client, srv.URL, "alice@example.com", false)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]string{
		"title":    "ship release",
		"priority": "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[taskResponse](t, resp)
	require.Equal(t, "ship release", created.Title)
	require.Equal(t, "pending", created.Status)
	require.Equal(t, "high", created.Priority)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks/"+created.ID+"/status", map[string]string{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "in_progress", decode[taskResponse](t, resp).Status)

	resp = doJSON(t, client, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, map[string]string{
		"description": "cut the tag, push images",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "cut the tag, push images", decode[taskResponse](t, resp).Description)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]int](t, resp)
	require.Equal(t, 1, stats["total"])
	require.Equal(t, 1, stats["in_progress"])

	resp = doJSON(t, client, http.MethodDelete, srv.URL+"/api/tasks/"+created.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/tasks/"+created.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskAPIValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})
	client := newClient(t)
	login(t, client, srv.URL, "alice@example.com", false)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]string{"title": "  "})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/tasks", map[string]string{"title": "x", "status": "archived"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskOwnershipOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})

	aliceClient := newClient(t)
	login(t, aliceClient, srv.URL, "alice@example.com", false)

	resp := doJSON(t, aliceClient, http.MethodPost, srv.URL+"/api/tasks", map[string]string{"title": "private"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decode[taskResponse](t, resp)

	bobClient := newClient(t)
	login(t, bobClient, srv.URL, "bob@example.com", false)

	resp = doJSON(t, bobClient, http.MethodGet, srv.URL+"/api/tasks/"+task.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, bobClient, http.MethodDelete, srv.URL+"/api/tasks/"+task.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})

	userClient := newClient(t)
	login(t, userClient, srv.URL, "bob@example.com", false)

	adminClient := newClient(t)
	login(t, adminClient, srv.URL, "root@example.com", true)

	for _, path := range []string{"/api/admin/tasks", "/api/admin/audit", "/api/admin/users", "/api/tasks?all=true"} {
		resp, err := userClient.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode, path)

		resp, err = adminClient.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := adminClient.Get(srv.URL + "/api/admin/audit")
	require.NoError(t, err)
	body := decode[map[string][]auditResponse](t, resp)
	require.NotEmpty(t, body["entries"])
	// Both logins were audited, each recording the admin bit it granted.
	logins := make(map[string]string)
	for _, e := range body["entries"] {
		if e.Action == "login" {
			logins[e.ActorEmail] = e.Details
		}
	}
	require.Equal(t, map[string]string{
		"bob@example.com":  "is_admin=false",
		"root@example.com": "is_admin=true",
	}, logins)
}

// failingAuditStore refuses every audit write so handler error paths can be
// exercised over the wire.
type failingAuditStore struct {
	store.Store
}

func (s failingAuditStore) AuditLogs() store.AuditLogs {
	return failingAuditLogs{s.Store.AuditLogs()}
}

type failingAuditLogs struct {
	store.AuditLogs
}

func (failingAuditLogs) Append(context.Context, domain.AuditEntry) error {
	return errors.New("disk full")
}

func TestAuditFailureFailsLogin(t *testing.T) {
	t.Parallel()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	wrapped := failingAuditStore{st}
	r := NewRouter("test", st, sessions, nil, ProviderConfig{}, logger)
	r.Authenticator = service.LocalAuthenticator{}
	r.TaskService = &service.TaskService{Store: wrapped}
	r.AuditService = &service.AuditService{Store: wrapped}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := newClient(t)
	resp, err := client.PostForm(srv.URL+"/login/local", url.Values{"email": {"alice@example.com"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "server_error", decode[map[string]string](t, resp)["error"])

	// No session cookie may be issued for a login that was never audited.
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(base) {
		require.NotEqual(t, session.CookieName, c.Name)
	}
}

func TestProviderLoginRedirect(t *testing.T) {
	t.Parallel()

	provider := ProviderConfig{
		AuthorizeURL: "https://idp.test/oauth2/authorize",
		LogoutURL:    "https://idp.test/logout?client_id=client-abc",
		ClientID:     "client-abc",
		RedirectURI:  "https://app.test/callback",
	}
	srv := newTestServer(t, provider)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.test", loc.Host)
	require.Equal(t, "client-abc", loc.Query().Get("client_id"))
	require.Equal(t, "code", loc.Query().Get("response_type"))
	require.NotEmpty(t, loc.Query().Get("state"))

	t.Run("local login disabled in provider mode", func(t *testing.T) {
		resp, err := client.PostForm(srv.URL+"/login/local", url.Values{"email": {"x@example.com"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("callback rejects state mismatch", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/callback?code=abc&state=wrong")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, loginFailedLocation, resp.Header.Get("Location"))
	})

	t.Run("callback surfaces provider error generically", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/callback?error=access_denied")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, loginFailedLocation, resp.Header.Get("Location"))
	})
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ProviderConfig{})
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/livez")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[healthResponse](t, resp).Status)

	resp, err = client.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	ready := decode[healthResponse](t, resp)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Sessions)

	resp, err = client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "taskhive_tasks_total"))
}
