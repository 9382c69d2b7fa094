package tasks

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhive/taskhive/internal/shared"
)

// ListFilter narrows task listings. OwnerID is set when the granted scope
// is Own; a nil OwnerID lists organization-wide.
type ListFilter struct {
	OrganizationID int64
	OwnerID        *int64
	Status         *Status
	Page           shared.Pagination
}

// Repository provides PostgreSQL backed persistence for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, organization_id, owner_id, assignee_id, department_id, title, description, status, due_at, created_at, updated_at`

// GetTask fetches one task by ID.
func (r *Repository) GetTask(ctx context.Context, id int64) (Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// ListTasks returns tasks matching the filter, newest first.
func (r *Repository) ListTasks(ctx context.Context, f ListFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE organization_id = $1`
	args := []any{f.OrganizationID}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		query += ` AND owner_id = $2`
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	args = append(args, f.Page.PerPage, f.Page.Offset())
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountOwnedTasks counts non-archived tasks owned by a user, the figure the
// subscription item cap is checked against.
func (r *Repository) CountOwnedTasks(ctx context.Context, ownerID int64) (uint32, error) {
	var n uint32
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND status <> $2`, ownerID, StatusArchived).Scan(&n)
	return n, err
}

// CreateTask inserts a new task and returns it with generated fields.
func (r *Repository) CreateTask(ctx context.Context, t Task) (Task, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (organization_id, owner_id, assignee_id, department_id, title, description, status, due_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+taskColumns,
		t.OrganizationID, t.OwnerID, t.AssigneeID, t.DepartmentID, t.Title, t.Description, t.Status, t.DueAt)
	return scanTask(row)
}

// UpdateTask persists mutable task fields.
func (r *Repository) UpdateTask(ctx context.Context, t Task) (Task, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE tasks SET assignee_id = $2, department_id = $3, title = $4, description = $5, status = $6, due_at = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING `+taskColumns,
		t.ID, t.AssigneeID, t.DepartmentID, t.Title, t.Description, t.Status, t.DueAt)
	return scanTask(row)
}

// DeleteTask removes a task by ID.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.OrganizationID, &t.OwnerID, &t.AssigneeID, &t.DepartmentID,
		&t.Title, &t.Description, &t.Status, &t.DueAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

