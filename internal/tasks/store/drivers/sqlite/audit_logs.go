package sqlite

import (
	"context"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
)

type auditLogsRepo struct {
	db dbtx
}

func (r *auditLogsRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_email, action, resource_type, resource_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorEmail, string(e.Action), e.ResourceType, e.ResourceID, e.Details, e.Timestamp,
	)
	return err
}

func (r *auditLogsRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_email, action, resource_type, resource_id, details, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var action string
		err := rows.Scan(&e.ID, &e.ActorEmail, &action, &e.ResourceType, &e.ResourceID, &e.Details, &e.Timestamp)
		if err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
