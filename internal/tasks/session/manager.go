package session

import (
	"context"
	"net/http"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/pkg/cryptox"
)

// CookieName is the browser cookie carrying the opaque session identifier.
const CookieName = "taskhive_session"

// Manager issues and resolves session cookies against a backing Store. The
// cookie value is an opaque random identifier; no claims or identity data
// ever leave the server.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure}
}

// Start creates a session for sess and sets the cookie on w. It returns the
// new session identifier.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, sess domain.Session) (string, error) {
	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, id, sess, m.ttl); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Ping reports whether the backing session store is reachable.
func (m *Manager) Ping(ctx context.Context) error { return m.store.Ping(ctx) }

// Resolve returns the session referenced by the request cookie, or
// ErrNoSession when the cookie is absent, stale, or unknown.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (domain.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return domain.Session{}, ErrNoSession
	}
	return m.store.Get(ctx, cookie.Value)
}

// End destroys the session referenced by the request cookie, if any, and
// clears the cookie on w. Ending an absent session is not an error.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err == nil {
		if err := m.store.Delete(ctx, cookie.Value); err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
