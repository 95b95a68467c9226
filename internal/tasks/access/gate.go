// Package access decides what an authenticated principal may do. It is pure
// policy: no I/O, no HTTP. Callers translate decisions into transport
// responses.
package access

import "github.com/nimbusworks/taskhive/internal/tasks/domain"

type Decision int

const (
	// Allow grants the operation.
	Allow Decision = iota
	// DenyUnauthenticated means no valid principal was presented. Callers
	// should redirect to login or return 401.
	DenyUnauthenticated
	// DenyForbidden means the principal is known but lacks rights. Callers
	// should return 403; re-authenticating would not help.
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	}
	return "unknown"
}

// Gate evaluates access policy for a principal. The zero value is usable.
type Gate struct{}

// Authenticated requires only a valid session.
func (Gate) Authenticated(sess *domain.Session) Decision {
	if sess == nil || sess.Subject == "" {
		return DenyUnauthenticated
	}
	return Allow
}

// Owner requires the session to belong to ownerID, with admins exempt.
// Admins may act on any resource.
func (g Gate) Owner(sess *domain.Session, ownerID string) Decision {
	if d := g.Authenticated(sess); d != Allow {
		return d
	}
	if sess.Subject == ownerID || sess.IsAdmin {
		return Allow
	}
	return DenyForbidden
}

// Admin requires an administrator session.
func (g Gate) Admin(sess *domain.Session) Decision {
	if d := g.Authenticated(sess); d != Allow {
		return d
	}
	if !sess.IsAdmin {
		return DenyForbidden
	}
	return Allow
}
