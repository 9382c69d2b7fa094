package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
)

// Repository provides PostgreSQL backed persistence for users. Role and
// tier columns are stored as strings; parsing happens here and nowhere
// else, and unknown values are a hard error rather than a silent default.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, organization_id, email, name, role, role_active, tier, department_id, created_at, updated_at`

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ListUsers returns users of one organization ordered by name.
func (r *Repository) ListUsers(ctx context.Context, orgID int64, page shared.Pagination) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`,
		orgID, page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users in an organization.
func (r *Repository) CountUsers(ctx context.Context, orgID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u          User
		roleName   string
		roleActive bool
		tierName   string
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Name, &roleName, &roleActive, &tierName, &u.DepartmentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	name, err := authz.ParseRoleName(roleName)
	if err != nil {
		return User{}, fmt.Errorf("users: user %d: %w", u.ID, err)
	}
	tier, err := authz.ParseTier(tierName)
	if err != nil {
		return User{}, fmt.Errorf("users: user %d: %w", u.ID, err)
	}
	u.Role = authz.Role{Name: name, IsActive: roleActive}
	u.Tier = tier
	return u, nil
}
