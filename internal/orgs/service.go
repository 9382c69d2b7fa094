package orgs

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/shared"
	"github.com/taskhive/taskhive/jobs"
)

// RepositoryPort defines data access methods for organizations.
type RepositoryPort interface {
	GetOrganization(ctx context.Context, id int64) (Organization, error)
}

// Queue enqueues data lifecycle jobs.
type Queue interface {
	EnqueueGDPRExport(ctx context.Context, payload jobs.GDPRExportPayload) (*asynq.TaskInfo, error)
	EnqueueGDPRPurge(ctx context.Context, payload jobs.GDPRPurgePayload) (*asynq.TaskInfo, error)
}

// Service handles organization and data lifecycle operations. The heavy
// lifting of exports and purges happens in the worker; the service records
// the request and enqueues it.
type Service struct {
	repo  RepositoryPort
	pool  *pgxpool.Pool
	queue Queue
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, pool *pgxpool.Pool, queue Queue) *Service {
	return &Service{repo: repo, pool: pool, queue: queue}
}

// GetOrganization returns the actor's organization.
func (s *Service) GetOrganization(ctx context.Context, actor *authz.Identity) (Organization, error) {
	return s.repo.GetOrganization(ctx, actor.OrganizationID)
}

// RequestDataExport records a GDPR export request and schedules the worker
// task. Admin-feature access is required.
func (s *Service) RequestDataExport(ctx context.Context, actor *authz.Identity) (string, error) {
	if !authz.CanAccessAdminFeatures(actor.Role, actor.Tier) {
		return "", shared.ErrForbidden
	}
	requestID := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO gdpr_exports (request_id, organization_id, requested_by, status, created_at) VALUES ($1, $2, $3, 'pending', now())`,
		requestID, actor.OrganizationID, actor.UserID); err != nil {
		return "", err
	}
	_, err := s.queue.EnqueueGDPRExport(ctx, jobs.GDPRExportPayload{
		RequestID:       requestID,
		OrganizationID:  actor.OrganizationID,
		RequestedByUser: actor.UserID,
	})
	if err != nil {
		return "", err
	}
	return requestID, nil
}

// RequestErasure records a GDPR erasure request and schedules the purge.
// Admins only: this is destructive and tier cannot substitute for the role.
func (s *Service) RequestErasure(ctx context.Context, actor *authz.Identity) (string, error) {
	if !actor.Role.IsActive || !actor.Role.IsAdmin() {
		return "", shared.ErrForbidden
	}
	requestID := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO gdpr_requests (request_id, organization_id, requested_by, kind, status, created_at) VALUES ($1, $2, $3, 'erasure', 'pending', now())`,
		requestID, actor.OrganizationID, actor.UserID); err != nil {
		return "", err
	}
	_, err := s.queue.EnqueueGDPRPurge(ctx, jobs.GDPRPurgePayload{
		RequestID:      requestID,
		OrganizationID: actor.OrganizationID,
	})
	if err != nil {
		return "", err
	}
	return requestID, nil
}
