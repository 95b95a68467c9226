package sqlite

import (
	"context"
	"database/sql"

	"github.com/nimbusworks/taskhive/internal/tasks/domain"
	"github.com/nimbusworks/taskhive/internal/tasks/store"
)

type tasksRepo struct {
	db dbtx
}

const taskColumns = `id, title, description, status, priority, user_id, user_email, created_at, updated_at`

func (r *tasksRepo) Create(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.UserID, t.UserEmail, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *tasksRepo) GetByID(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (r *tasksRepo) ListByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *tasksRepo) ListAll(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *tasksRepo) Update(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *tasksRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *tasksRepo) Stats(ctx context.Context) (domain.TaskStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'in_progress'), 0),
			COALESCE(SUM(status = 'completed'), 0)
		FROM tasks`)
	return scanStats(row)
}

func (r *tasksRepo) StatsByUser(ctx context.Context, userID string) (domain.TaskStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'in_progress'), 0),
			COALESCE(SUM(status = 'completed'), 0)
		FROM tasks
		WHERE user_id = ?`, userID)
	return scanStats(row)
}

func (r *tasksRepo) CountByEmail(ctx context.Context) ([]domain.UserTaskCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_email, COUNT(*) AS n
		FROM tasks
		GROUP BY user_email
		ORDER BY n DESC, user_email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.UserTaskCount
	for rows.Next() {
		var c domain.UserTaskCount
		if err := rows.Scan(&c.UserEmail, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func scanTask(row *sql.Row) (domain.Task, error) {
	var t domain.Task
	var status, priority string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.UserID, &t.UserEmail, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, mapNotFound(err)
	}
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var status, priority string
		err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &status, &priority,
			&t.UserID, &t.UserEmail, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.Status = domain.TaskStatus(status)
		t.Priority = domain.TaskPriority(priority)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanStats(row *sql.Row) (domain.TaskStats, error) {
	var s domain.TaskStats
	if err := row.Scan(&s.Total, &s.Pending, &s.InProgress, &s.Completed); err != nil {
		return domain.TaskStats{}, err
	}
	return s, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
