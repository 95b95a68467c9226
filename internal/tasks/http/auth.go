package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/service"
	"github.com/nimbusworks/taskhive/internal/tasks/session"
	"github.com/nimbusworks/taskhive/pkg/cryptox"
	"github.com/nimbusworks/taskhive/pkg/httpx"
	"github.com/nimbusworks/taskhive/pkg/slogx"
)

// stateCookie carries the OAuth state value between the authorize redirect
// and the callback.
const stateCookie = "taskhive_state"

const loginFailedLocation = "/login?error=authentication_failed"

type LoginHandler struct {
	Provider      ProviderConfig
	Authenticator service.Authenticator
	Sessions      *session.Manager
	Audit         *service.AuditService
}

// HandleLogin starts a login. With a provider configured it redirects the
// browser to the hosted authorize endpoint; otherwise it describes the
// local development flow.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Provider.Enabled() {
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"mode":  "local",
			"login": "POST /login/local with an email form field",
		})
		return
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	q := url.Values{}
	q.Set("client_id", h.Provider.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("redirect_uri", h.Provider.RedirectURI)
	q.Set("state", state)

	http.Redirect(w, r, h.Provider.AuthorizeURL+"?"+q.Encode(), http.StatusFound)
}

// HandleLocalLogin fabricates a session from a submitted email. Only served
// when no provider is configured.
func (h *LoginHandler) HandleLocalLogin(w http.ResponseWriter, r *http.Request) {
	if h.Provider.Enabled() {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "malformed form")
		return
	}

	in := service.LoginInput{
		Email:   r.PostForm.Get("email"),
		AsAdmin: r.PostForm.Get("as_admin") == "true" || r.PostForm.Get("as_admin") == "on",
	}
	sess, err := h.Authenticator.Authenticate(r.Context(), in)
	if err != nil {
		httpx.WriteJSONError(w, http.StatusUnauthorized, "authentication_failed", "authentication failed")
		return
	}

	h.finishLogin(w, r, sess)
}

// HandleCallback completes the authorization code flow. Every failure mode
// lands on the same generic login error; the cause only goes to the log.
func (h *LoginHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if !h.Provider.Enabled() {
		http.NotFound(w, r)
		return
	}

	if errCode := r.URL.Query().Get("error"); errCode != "" {
		log.Warn("provider returned error", slog.String("error", errCode))
		http.Redirect(w, r, loginFailedLocation, http.StatusFound)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		log.Warn("state mismatch on callback")
		http.Redirect(w, r, loginFailedLocation, http.StatusFound)
		return
	}

	in := service.LoginInput{
		Code:        r.URL.Query().Get("code"),
		RedirectURI: h.Provider.RedirectURI,
	}
	sess, err := h.Authenticator.Authenticate(r.Context(), in)
	if err != nil {
		// Already logged with cause by the authenticator.
		http.Redirect(w, r, loginFailedLocation, http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.finishLogin(w, r, sess)
}

// finishLogin records the login and issues the session cookie. The audit
// entry is written first; a login that cannot be audited does not happen.
func (h *LoginHandler) finishLogin(w http.ResponseWriter, r *http.Request, sess domain.Session) {
	ctx := r.Context()

	details := fmt.Sprintf("is_admin=%t", sess.IsAdmin)
	if err := h.Audit.Record(ctx, sess.Email, domain.ActionLogin, "session", "", details); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := h.Sessions.Start(ctx, w, sess); err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout records the logout, destroys the session, and hands the
// browser to the provider's logout endpoint when one is configured.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if sess := sessionFrom(ctx); sess != nil {
		if err := h.Audit.Record(ctx, sess.Email, domain.ActionLogout, "session", "", ""); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	if err := h.Sessions.End(ctx, w, r); err != nil {
		writeServiceError(w, r, err)
		return
	}

	target := "/"
	if h.Provider.Enabled() && h.Provider.LogoutURL != "" {
		target = h.Provider.LogoutURL
	}
	http.Redirect(w, r, target, http.StatusFound)
}
