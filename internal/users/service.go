package users

import (
	"context"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, orgID int64, page shared.Pagination) ([]User, error)
	CountUsers(ctx context.Context, orgID int64) (int, error)
}

// Service handles user business logic and implements
// authz.IdentityResolver.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ResolveIdentity loads a user and returns its authorization identity.
func (s *Service) ResolveIdentity(ctx context.Context, userID int64) (*authz.Identity, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &authz.Identity{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
		Tier:           u.Tier,
	}, nil
}

// GetUser returns a single user, enforcing the identity-match rule: members
// may only fetch themselves.
func (s *Service) GetUser(ctx context.Context, actor *authz.Identity, id int64) (User, error) {
	if !authz.CanAccessUser(actor.Role, actor.UserID, id) {
		return User{}, shared.ErrForbidden
	}
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns one page of the organization's user directory together
// with pagination metadata. The directory gate is evaluated here as well as
// at the router so service callers cannot bypass it.
func (s *Service) ListUsers(ctx context.Context, actor *authz.Identity, page, perPage int) ([]User, shared.Pagination, error) {
	if !authz.CanListUsers(actor.Role, actor.Tier) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	total, err := s.repo.CountUsers(ctx, actor.OrganizationID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, actor.OrganizationID, p)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}
