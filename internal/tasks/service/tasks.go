package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimbusworks/taskhive/internal/tasks/access"
	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
	"github.com/nimbusworks/taskhive/pkg/idx"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("invalid_task")
)

const maxTitleLen = 200

// TaskService owns task CRUD. Every method gates access before touching the
// store, and every mutation writes its audit entry in the same transaction
// so a task change is never visible without its trail.
type TaskService struct {
	Store store.Store
	Gate  access.Gate
}

// TaskInput carries caller-supplied task fields. Zero Status and Priority
// take defaults on create; on update they mean "unchanged".
type TaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
}

func decisionErr(d access.Decision) error {
	switch d {
	case access.DenyUnauthenticated:
		return ErrUnauthenticated
	case access.DenyForbidden:
		return ErrForbidden
	}
	return nil
}

// Create validates in and stores a new task owned by the session principal.
func (s *TaskService) Create(ctx context.Context, sess *domain.Session, in TaskInput) (domain.Task, error) {
	if d := s.Gate.Authenticated(sess); d != access.Allow {
		return domain.Task{}, decisionErr(d)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return domain.Task{}, fmt.Errorf("%w: title required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Status.Valid() || !in.Priority.Valid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status or priority", ErrValidation)
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          idx.New().String(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		UserID:      sess.Subject,
		UserEmail:   sess.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return appendAudit(ctx, tx.AuditLogs(), sess.Email, domain.ActionCreate, "task", task.ID, "title="+task.Title)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Get returns one task, visible to its owner and to admins.
func (s *TaskService) Get(ctx context.Context, sess *domain.Session, id string) (domain.Task, error) {
	if d := s.Gate.Authenticated(sess); d != access.Allow {
		return domain.Task{}, decisionErr(d)
	}
	if _, err := idx.Parse(id); err != nil {
		return domain.Task{}, store.ErrNotFound
	}

	task, err := s.Store.Tasks().GetByID(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if d := s.Gate.Owner(sess, task.UserID); d != access.Allow {
		return domain.Task{}, decisionErr(d)
	}
	return task, nil
}

// List returns the session principal's own tasks, newest first.
func (s *TaskService) List(ctx context.Context, sess *domain.Session) ([]domain.Task, error) {
	if d := s.Gate.Authenticated(sess); d != access.Allow {
		return nil, decisionErr(d)
	}
	return s.Store.Tasks().ListByUser(ctx, sess.Subject)
}

// ListAll returns every task in the system. Admin only.
func (s *TaskService) ListAll(ctx context.Context, sess *domain.Session) ([]domain.Task, error) {
	if d := s.Gate.Admin(sess); d != access.Allow {
		return nil, decisionErr(d)
	}
	return s.Store.Tasks().ListAll(ctx)
}

// Update applies in to the task. Zero-valued fields keep their current
// value; the title cannot be cleared.
func (s *TaskService) Update(ctx context.Context, sess *domain.Session, id string, in TaskInput) (domain.Task, error) {
	task, err := s.Get(ctx, sess, id)
	if err != nil {
		return domain.Task{}, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		if len(title) > maxTitleLen {
			return domain.Task{}, fmt.Errorf("%w: title too long", ErrValidation)
		}
		task.Title = title
	}
	if in.Description != "" {
		task.Description = strings.TrimSpace(in.Description)
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return domain.Task{}, fmt.Errorf("%w: unknown status", ErrValidation)
		}
		task.Status = in.Status
	}
	if in.Priority != "" {
		if !in.Priority.Valid() {
			return domain.Task{}, fmt.Errorf("%w: unknown priority", ErrValidation)
		}
		task.Priority = in.Priority
	}
	task.UpdatedAt = time.Now().UTC()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		return appendAudit(ctx, tx.AuditLogs(), sess.Email, domain.ActionUpdate, "task", task.ID, "title="+task.Title)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateStatus moves the task to status and audits the transition.
func (s *TaskService) UpdateStatus(ctx context.Context, sess *domain.Session, id string, status domain.TaskStatus) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status", ErrValidation)
	}

	task, err := s.Get(ctx, sess, id)
	if err != nil {
		return domain.Task{}, err
	}

	from := task.Status
	task.Status = status
	task.UpdatedAt = time.Now().UTC()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		details := fmt.Sprintf("from=%s to=%s", from, status)
		return appendAudit(ctx, tx.AuditLogs(), sess.Email, domain.ActionStatusChange, "task", task.ID, details)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Delete removes the task. An admin removing another user's task is audited
// as admin_delete rather than delete.
func (s *TaskService) Delete(ctx context.Context, sess *domain.Session, id string) error {
	task, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}

	action := domain.ActionDelete
	if sess.IsAdmin && sess.Subject != task.UserID {
		action = domain.ActionAdminDelete
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tasks().Delete(ctx, task.ID); err != nil {
			return err
		}
		details := fmt.Sprintf("title=%s owner=%s", task.Title, task.UserEmail)
		return appendAudit(ctx, tx.AuditLogs(), sess.Email, action, "task", task.ID, details)
	})
}

// Stats returns the session principal's task counts by status.
func (s *TaskService) Stats(ctx context.Context, sess *domain.Session) (domain.TaskStats, error) {
	if d := s.Gate.Authenticated(sess); d != access.Allow {
		return domain.TaskStats{}, decisionErr(d)
	}
	return s.Store.Tasks().StatsByUser(ctx, sess.Subject)
}

// UserCounts returns per-user task totals. Admin only.
func (s *TaskService) UserCounts(ctx context.Context, sess *domain.Session) ([]domain.UserTaskCount, error) {
	if d := s.Gate.Admin(sess); d != access.Allow {
		return nil, decisionErr(d)
	}
	return s.Store.Tasks().CountByEmail(ctx)
}
