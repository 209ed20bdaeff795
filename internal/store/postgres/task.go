package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/vibetodo/internal/domain"
)

const taskColumns = `id, title, description, status, priority, due_date, tags, project,
	time_spent_minutes, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

var _ domain.TaskRepository = (*TaskRepo)(nil)

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Name() string { return "postgres" }

func (r *TaskRepo) Save(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taskRepo.Save: %w", err)
	}

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	if t.ID == "" {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO tasks (title, description, status, priority, due_date, tags, project, time_spent_minutes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+taskColumns,
			t.Title, t.Description, t.Status, t.Priority, t.DueDate, tags, t.Project, t.TimeSpentMinutes,
		)
		saved, err := scanTask(row)
		if err != nil {
			return nil, classify("taskRepo.Save", err)
		}
		return saved, nil
	}

	id, ok := parseID(t.ID)
	if !ok {
		return nil, fmt.Errorf("taskRepo.Save: unknown task id %q: %w", t.ID, domain.ErrValidation)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4, due_date = $5,
		        tags = $6, project = $7, time_spent_minutes = $8, updated_at = now()
		 WHERE id = $9
		 RETURNING `+taskColumns,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		tags, t.Project, t.TimeSpentMinutes, id,
	)
	saved, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.Save: unknown task id %q: %w", t.ID, domain.ErrValidation)
	}
	if err != nil {
		return nil, classify("taskRepo.Save", err)
	}

	return saved, nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("taskRepo.GetByID", err)
	}

	return t, nil
}

func (r *TaskRepo) ListAll(ctx context.Context, status *domain.TaskStatus) ([]*domain.Task, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY id`, *status)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	}
	if err != nil {
		return nil, classify("taskRepo.ListAll", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListAll")
}

func (r *TaskRepo) Delete(ctx context.Context, id domain.TaskID) (bool, error) {
	n, ok := parseID(id)
	if !ok {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, n)
	if err != nil {
		return false, classify("taskRepo.Delete", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t  domain.Task
		id int64
	)
	if err := row.Scan(
		&id, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.Tags, &t.Project,
		&t.TimeSpentMinutes, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.ID = domain.TaskID(strconv.FormatInt(id, 10))
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(caller, err)
	}
	return tasks, nil
}

func parseID(id domain.TaskID) (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// classify maps integrity violations (SQLSTATE class 23) to validation
// errors and everything else to an unavailable backend.
func classify(caller string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%s: %w: %w", caller, domain.ErrValidation, err)
	}
	return fmt.Errorf("%s: %w: %w", caller, domain.ErrBackendUnavailable, err)
}
