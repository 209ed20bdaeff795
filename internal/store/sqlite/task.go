package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/gosuda/vibetodo/internal/domain"
)

const taskColumns = `id, title, description, status, priority, due_date, tags, project,
	time_spent_minutes, created_at, updated_at`

// TaskRepo is the local backend. Tasks are listed in insertion order and ids
// are never reused (AUTOINCREMENT).
type TaskRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.TaskRepository = (*TaskRepo)(nil)

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db, now: time.Now}
}

func (r *TaskRepo) Name() string { return "local" }

func (r *TaskRepo) Save(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taskRepo.Save: %w", err)
	}

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Save: %w", err)
	}
	now := formatTime(r.now())

	if t.ID == "" {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO tasks (title, description, status, priority, due_date, tags, project,
			                    time_spent_minutes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Title, t.Description, t.Status, t.Priority, formatDue(t.DueDate), tags, t.Project,
			t.TimeSpentMinutes, now, now,
		)
		if err != nil {
			return nil, storeErr("taskRepo.Save", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, storeErr("taskRepo.Save", err)
		}
		return r.reload(ctx, "taskRepo.Save", id)
	}

	id, ok := parseID(t.ID)
	if !ok {
		return nil, fmt.Errorf("taskRepo.Save: unknown task id %q: %w", t.ID, domain.ErrValidation)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?,
		        tags = ?, project = ?, time_spent_minutes = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Priority, formatDue(t.DueDate),
		tags, t.Project, t.TimeSpentMinutes, now, id,
	)
	if err != nil {
		return nil, storeErr("taskRepo.Save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("taskRepo.Save", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("taskRepo.Save: unknown task id %q: %w", t.ID, domain.ErrValidation)
	}

	return r.reload(ctx, "taskRepo.Save", id)
}

func (r *TaskRepo) GetByID(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	t, err := r.get(ctx, n)
	if err != nil {
		return nil, storeErr("taskRepo.GetByID", err)
	}
	return t, nil
}

func (r *TaskRepo) ListAll(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("taskRepo.ListAll", err)
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("taskRepo.ListAll: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("taskRepo.ListAll", err)
	}

	return tasks, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id domain.TaskID) (bool, error) {
	n, ok := parseID(id)
	if !ok {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, n)
	if err != nil {
		return false, storeErr("taskRepo.Delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("taskRepo.Delete", err)
	}
	return affected > 0, nil
}

func (r *TaskRepo) reload(ctx context.Context, caller string, id int64) (*domain.Task, error) {
	t, err := r.get(ctx, id)
	if err != nil {
		return nil, storeErr(caller, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%s: task %d vanished after write: %w", caller, id, domain.ErrBackendUnavailable)
	}
	return t, nil
}

func (r *TaskRepo) get(ctx context.Context, id int64) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*domain.Task, error) {
	var (
		t                    domain.Task
		id                   int64
		due                  sql.NullString
		tags                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(
		&id, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &tags, &t.Project,
		&t.TimeSpentMinutes, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	t.ID = domain.TaskID(strconv.FormatInt(id, 10))

	var err error
	if due.Valid && due.String != "" {
		d, err := time.Parse(time.RFC3339Nano, due.String)
		if err != nil {
			return nil, fmt.Errorf("task %d: due_date: %w", id, err)
		}
		t.DueDate = &d
	}
	if err = json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("task %d: tags: %w", id, err)
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("task %d: created_at: %w", id, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("task %d: updated_at: %w", id, err)
	}

	return &t, nil
}

func parseID(id domain.TaskID) (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDue(d *time.Time) any {
	if d == nil {
		return nil
	}
	return formatTime(*d)
}

// storeErr classifies driver errors: constraint violations are bad input,
// everything else means the store could not serve the request.
func storeErr(caller string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", caller, domain.ErrValidation, err)
	}
	return fmt.Errorf("%s: %w: %w", caller, domain.ErrBackendUnavailable, err)
}
