package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, f ListFilter) ([]Task, error)
	CountOwnedTasks(ctx context.Context, ownerID int64) (uint32, error)
	CreateTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Service drives the authorization engine for every task operation: the
// decision combiner for the coarse gate, the ownership predicates once a
// row is loaded, and the entitlement privilege for quota and feature
// gating. The combiner never denies on tier, so all hard quota gating
// happens here.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput collects fields for a new task.
type CreateInput struct {
	Title        string
	Description  string
	AssigneeID   *int64
	DepartmentID *int64
}

// UpdateInput collects mutable task fields.
type UpdateInput struct {
	Title        string
	Description  string
	Status       Status
	AssigneeID   *int64
	DepartmentID *int64
}

// ListTasks returns the tasks visible to the actor. The granted scope
// decides visibility: Own narrows to the actor's tasks, anything that
// includes Organization lists the whole tenant.
func (s *Service) ListTasks(ctx context.Context, actor *authz.Identity, status *Status, page, perPage int) ([]Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionRead, nil)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	filter := ListFilter{
		OrganizationID: actor.OrganizationID,
		Status:         status,
		Page:           shared.NewPagination(page, perPage, 0),
	}
	if !decision.Scope.Includes(authz.ScopeOrganization) {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return s.repo.ListTasks(ctx, filter)
}

// GetTask returns one task after both authorization layers pass.
func (s *Service) GetTask(ctx context.Context, actor *authz.Identity, id int64) (Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionRead, nil)
	if !decision.Allowed {
		return Task{}, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !authz.CanView(actor.Role, authz.OwnedTask, t.OwnerID, actor.UserID) {
		return Task{}, shared.ErrForbidden
	}
	return t, nil
}

// CreateTask creates a task owned by the actor. The subscription item cap
// applies to the number of live tasks the owner already holds.
func (s *Service) CreateTask(ctx context.Context, actor *authz.Identity, in CreateInput) (Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionCreate, nil)
	if !decision.Allowed {
		return Task{}, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	if !authz.CanCreate(actor.Role, authz.OwnedTask) {
		return Task{}, shared.ErrForbidden
	}

	if priv := authz.ResolveEntitlement(actor.Tier, authz.ResourceTasks, authz.ActionRead); priv != nil && priv.Quota != nil {
		held, err := s.repo.CountOwnedTasks(ctx, actor.UserID)
		if err != nil {
			return Task{}, err
		}
		if !priv.Quota.AllowsItems(held + 1) {
			return Task{}, fmt.Errorf("%w: task limit reached for %s tier", shared.ErrQuotaExceeded, actor.Tier)
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, fmt.Errorf("tasks: title required")
	}
	owner := actor.UserID
	return s.repo.CreateTask(ctx, Task{
		OrganizationID: actor.OrganizationID,
		OwnerID:        &owner,
		AssigneeID:     in.AssigneeID,
		DepartmentID:   in.DepartmentID,
		Title:          title,
		Description:    in.Description,
		Status:         StatusOpen,
	})
}

// UpdateTask applies changes to a task the actor owns or administers.
func (s *Service) UpdateTask(ctx context.Context, actor *authz.Identity, id int64, in UpdateInput) (Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionWrite, nil)
	if !decision.Allowed {
		return Task{}, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !authz.CanUpdate(actor.Role, authz.OwnedTask, t.OwnerID, actor.UserID) {
		return Task{}, shared.ErrForbidden
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		t.Title = title
	}
	t.Description = in.Description
	if in.Status != "" {
		t.Status = in.Status
	}
	t.AssigneeID = in.AssigneeID
	t.DepartmentID = in.DepartmentID
	return s.repo.UpdateTask(ctx, t)
}

// DeleteTask removes a task the actor owns or administers.
func (s *Service) DeleteTask(ctx context.Context, actor *authz.Identity, id int64) error {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionDelete, nil)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(actor.Role, authz.OwnedTask, t.OwnerID, actor.UserID) {
		return shared.ErrForbidden
	}
	return s.repo.DeleteTask(ctx, id)
}

// BatchUpdateStatus updates the status of several tasks at once. The batch
// feature is a tier privilege: the combiner grants the action, and the
// feature flag on the returned quota gates the bulk form.
func (s *Service) BatchUpdateStatus(ctx context.Context, actor *authz.Identity, ids []int64, status Status) ([]Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionWrite, nil)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	if decision.Privilege == nil || !decision.Privilege.HasFeature(authz.FeatureBatchOperations) {
		return nil, fmt.Errorf("%w: batch operations require a Pro subscription", shared.ErrForbidden)
	}
	updated := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.repo.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if !authz.CanUpdate(actor.Role, authz.OwnedTask, t.OwnerID, actor.UserID) {
			return nil, shared.ErrForbidden
		}
		t.Status = status
		t, err = s.repo.UpdateTask(ctx, t)
		if err != nil {
			return nil, err
		}
		updated = append(updated, t)
	}
	return updated, nil
}

// ExportTasks returns every task visible to the actor for a data export.
// The export feature is gated on the read privilege.
func (s *Service) ExportTasks(ctx context.Context, actor *authz.Identity) ([]Task, error) {
	decision := authz.CanPerformAction(actor.Role, actor.Tier, authz.ResourceTasks, authz.ActionRead, nil)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", shared.ErrForbidden, decision.Reason)
	}
	if decision.Privilege == nil || !decision.Privilege.HasFeature(authz.FeatureExport) {
		return nil, fmt.Errorf("%w: export requires a Pro subscription", shared.ErrForbidden)
	}
	filter := ListFilter{
		OrganizationID: actor.OrganizationID,
		Page:           shared.NewPagination(1, 10000, 0),
	}
	if !decision.Scope.Includes(authz.ScopeOrganization) {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return s.repo.ListTasks(ctx, filter)
}
