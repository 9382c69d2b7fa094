package departments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for departments and
// permission matrices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const departmentColumns = `id, organization_id, parent_department_id, name, manager_user_id, is_active, created_at, updated_at`

// FindByOrganization returns every department of one organization.
func (r *Repository) FindByOrganization(ctx context.Context, orgID int64) ([]Department, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var depts []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

// GetDepartment fetches one department by ID.
func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id)
	return scanDepartment(row)
}

// CreateDepartment inserts a department. Sibling name collisions surface as
// ErrDuplicateName via the unique index.
func (r *Repository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO departments (organization_id, parent_department_id, name, manager_user_id, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+departmentColumns,
		d.OrganizationID, d.ParentDepartmentID, d.Name, d.ManagerUserID, d.IsActive)
	dept, err := scanDepartment(row)
	if err != nil {
		return Department{}, mapConstraint(err)
	}
	return dept, nil
}

// UpdateDepartment persists mutable department fields.
func (r *Repository) UpdateDepartment(ctx context.Context, d Department) (Department, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE departments SET parent_department_id = $2, name = $3, manager_user_id = $4, is_active = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+departmentColumns,
		d.ID, d.ParentDepartmentID, d.Name, d.ManagerUserID, d.IsActive)
	dept, err := scanDepartment(row)
	if err != nil {
		return Department{}, mapConstraint(err)
	}
	return dept, nil
}

// HasChildren reports whether any department declares the given one as
// parent.
func (r *Repository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM departments WHERE parent_department_id = $1)`, id).Scan(&exists)
	return exists, err
}

// DeleteDepartment removes a department by ID.
func (r *Repository) DeleteDepartment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountMembersByDepartment returns the member headcount per department for
// one organization. It backs the MemberCount field of hierarchy responses.
func (r *Repository) CountMembersByDepartment(ctx context.Context, orgID int64) (map[int64]uint32, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT department_id, COUNT(*) FROM users
		 WHERE organization_id = $1 AND department_id IS NOT NULL
		 GROUP BY department_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]uint32)
	for rows.Next() {
		var (
			id int64
			n  uint32
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// FindPermissionMatrix loads the matrix stored for one entity, or nil when
// none exists.
func (r *Repository) FindPermissionMatrix(ctx context.Context, entityType EntityType, entityID int64) (*PermissionMatrix, error) {
	m := PermissionMatrix{EntityType: entityType, EntityID: entityID}
	err := r.pool.QueryRow(ctx,
		`SELECT settings, inheritance, compliance FROM permission_matrices
		 WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID).Scan(&m.Settings, &m.Inheritance, &m.Compliance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.OrganizationID, &d.ParentDepartmentID, &d.Name, &d.ManagerUserID, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, ErrNotFound
		}
		return Department{}, err
	}
	return d, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateName, pgErr.ConstraintName)
	}
	return err
}
