package http

import (
	"net/http"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/pkg/httpx"
	"github.com/nimbusworks/taskhive/pkg/oidcx"
)

// ReadyzHandler reports whether the service can do useful work: database
// reachable, session store reachable, and (in provider mode) the signing
// keys fetched. An unfetched key set is not fatal because the cache loads
// lazily on the first login.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	sessions *session.Manager,
	keys *oidcx.KeyCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			Sessions: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := sessions.Ping(r.Context()); err != nil {
			checks.Sessions = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if keys != nil {
			if keys.Ready() {
				checks.KeySet = "ok"
			} else {
				checks.KeySet = "pending"
			}
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
