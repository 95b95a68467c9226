package store

import (
	"context"
	"errors"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// Tasks is the task repository.
type Tasks interface {
	Create(ctx context.Context, t domain.Task) error
	GetByID(ctx context.Context, id string) (domain.Task, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Task, error)
	ListAll(ctx context.Context) ([]domain.Task, error)
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (domain.TaskStats, error)
	StatsByUser(ctx context.Context, userID string) (domain.TaskStats, error)
	CountByEmail(ctx context.Context) ([]domain.UserTaskCount, error)
}

// AuditLogs is the append-only audit repository.
type AuditLogs interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// Tx is a transaction-scoped view of the repositories. Commit or Rollback
// must be called exactly once; Rollback after Commit is a no-op.
type Tx interface {
	Tasks() Tasks
	AuditLogs() AuditLogs

	Commit() error
	Rollback() error
}

// Store is the persistence boundary. Driver implementations live under
// drivers/.
type Store interface {
	Tasks() Tasks
	AuditLogs() AuditLogs

	// Tx starts a read/write transaction.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	ApplyMigrations() error
	Ping(ctx context.Context) error
	Close() error
}
