package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/access"
	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/pkg/idx"
)

// ErrAuditPersistence signals the audit trail could not be written. The
// triggering operation must fail; nothing is acknowledged without its audit
// entry.
var ErrAuditPersistence = errors.New("audit_persistence")

// MaxAuditPage bounds how many audit entries a single query returns.
const MaxAuditPage = 50

type AuditService struct {
	Store store.Store
	Gate  access.Gate
}

// Record appends one audit entry. Used for events outside a task
// transaction, such as login and logout.
func (s *AuditService) Record(ctx context.Context, actor string, action domain.AuditAction, resourceType, resourceID, details string) error {
	return appendAudit(ctx, s.Store.AuditLogs(), actor, action, resourceType, resourceID, details)
}

// Recent returns up to limit entries, newest first. Admin only; limit is
// clamped to MaxAuditPage.
func (s *AuditService) Recent(ctx context.Context, sess *domain.Session, limit int) ([]domain.AuditEntry, error) {
	if d := s.Gate.Admin(sess); d != access.Allow {
		return nil, decisionErr(d)
	}
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}
	return s.Store.AuditLogs().ListRecent(ctx, limit)
}

func appendAudit(ctx context.Context, logs store.AuditLogs, actor string, action domain.AuditAction, resourceType, resourceID, details string) error {
	entry := domain.AuditEntry{
		ID:           idx.New().String(),
		ActorEmail:   actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Timestamp:    time.Now().UTC(),
	}
	if err := logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrAuditPersistence, err)
	}
	return nil
}
