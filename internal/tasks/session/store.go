// Package session stores the authenticated principal between requests,
// keyed by an opaque identifier carried in a browser cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
)

// ErrNoSession is returned when the identifier does not resolve to a live
// session, either because it never existed or because it expired.
var ErrNoSession = errors.New("session: not found")

// Store persists sessions. Implementations must treat expired entries as
// absent.
type Store interface {
	Get(ctx context.Context, id string) (domain.Session, error)
	Set(ctx context.Context, id string, sess domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}
