package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GDPRHandlers processes data lifecycle tasks against the primary store.
type GDPRHandlers struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewGDPRHandlers constructs the GDPR task handlers.
func NewGDPRHandlers(pool *pgxpool.Pool, logger *slog.Logger) *GDPRHandlers {
	return &GDPRHandlers{pool: pool, logger: logger}
}

// HandleExport assembles the export bundle and records its completion on the
// exports table. Downstream handoff (object storage, notification email) is
// driven off that table by a separate process.
func (g *GDPRHandlers) HandleExport(ctx context.Context, t *asynq.Task) error {
	var payload GDPRExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	g.logger.Info("gdpr export started",
		slog.String("request_id", payload.RequestID),
		slog.Int64("organization_id", payload.OrganizationID))

	bundle := make(map[string]any)
	for name, query := range map[string]string{
		"users":       `SELECT json_agg(u) FROM (SELECT id, email, name, role, tier FROM users WHERE organization_id = $1) u`,
		"tasks":       `SELECT json_agg(t) FROM (SELECT id, owner_id, title, status, created_at FROM tasks WHERE organization_id = $1) t`,
		"departments": `SELECT json_agg(d) FROM (SELECT id, parent_department_id, name, is_active FROM departments WHERE organization_id = $1) d`,
	} {
		var section any
		if err := g.pool.QueryRow(ctx, query, payload.OrganizationID).Scan(&section); err != nil {
			return err
		}
		bundle[name] = section
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		return asynq.SkipRetry
	}
	_, err = g.pool.Exec(ctx,
		`UPDATE gdpr_exports SET status = 'completed', bundle = $2, completed_at = now() WHERE request_id = $1`,
		payload.RequestID, raw)
	return err
}

// HandlePurge erases the organization's personal data. Task and department
// structures are removed outright; user rows are anonymized so referential
// history stays intact.
func (g *GDPRHandlers) HandlePurge(ctx context.Context, t *asynq.Task) error {
	var payload GDPRPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	g.logger.Info("gdpr purge started",
		slog.String("request_id", payload.RequestID),
		slog.Int64("organization_id", payload.OrganizationID))

	for _, query := range []string{
		`DELETE FROM tasks WHERE organization_id = $1`,
		`DELETE FROM departments WHERE organization_id = $1`,
		`UPDATE users SET email = 'erased-' || id || '@invalid', name = 'erased', role_active = false WHERE organization_id = $1`,
	} {
		if _, err := g.pool.Exec(ctx, query, payload.OrganizationID); err != nil {
			return err
		}
	}
	_, err := g.pool.Exec(ctx,
		`UPDATE gdpr_requests SET status = 'completed', completed_at = now() WHERE request_id = $1`,
		payload.RequestID)
	return err
}

