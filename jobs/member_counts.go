package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaintenanceHandlers covers periodic housekeeping tasks.
type MaintenanceHandlers struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMaintenanceHandlers constructs the maintenance task handlers.
func NewMaintenanceHandlers(pool *pgxpool.Pool, logger *slog.Logger) *MaintenanceHandlers {
	return &MaintenanceHandlers{pool: pool, logger: logger}
}

// HandleMemberCountRefresh recomputes the materialized member counts used
// by hierarchy responses. An organization ID of zero refreshes every tenant,
// which is what the nightly cron registration uses.
func (m *MaintenanceHandlers) HandleMemberCountRefresh(ctx context.Context, t *asynq.Task) error {
	var payload MemberCountRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	query := `INSERT INTO department_member_counts (department_id, member_count, refreshed_at)
		 SELECT department_id, COUNT(*), now() FROM users
		 WHERE department_id IS NOT NULL`
	args := []any{}
	if payload.OrganizationID != 0 {
		query += ` AND organization_id = $1`
		args = append(args, payload.OrganizationID)
	}
	query += ` GROUP BY department_id
		 ON CONFLICT (department_id) DO UPDATE SET member_count = EXCLUDED.member_count, refreshed_at = EXCLUDED.refreshed_at`
	_, err := m.pool.Exec(ctx, query, args...)
	if err != nil {
		m.logger.Error("member count refresh", slog.Any("error", err))
	}
	return err
}
