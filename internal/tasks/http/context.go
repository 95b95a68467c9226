package http

import (
	"context"
	"net/http"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/pkg/httpx"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// sessionFrom returns the request's authenticated principal, or nil when
// the request carries no valid session. Services treat nil as
// unauthenticated.
func sessionFrom(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(ctxKeySession).(*domain.Session)
	return sess
}

// withSession resolves the session cookie once per request and stashes the
// principal in the context. An absent or stale cookie is not an error here;
// authorization happens in the services.
func withSession(m *session.Manager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Resolve(r.Context(), r)
			if err == nil {
				ctx := context.WithValue(r.Context(), ctxKeySession, &sess)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
