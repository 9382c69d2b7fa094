package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeGDPRExport assembles a data export bundle for an organization.
	TaskTypeGDPRExport = "gdpr:export"
	// TaskTypeGDPRPurge erases an organization's personal data.
	TaskTypeGDPRPurge = "gdpr:purge"
	// TaskTypeMemberCountRefresh recomputes department member counts.
	TaskTypeMemberCountRefresh = "departments:refresh_member_counts"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks. Actual delivery is
// an external collaborator; the handler only hands the payload over.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// GDPRExportPayload identifies one export request.
type GDPRExportPayload struct {
	RequestID       string `json:"request_id"`
	OrganizationID  int64  `json:"organization_id"`
	RequestedByUser int64  `json:"requested_by_user"`
}

// NewGDPRExportTask constructs an Asynq task for a data export request.
func NewGDPRExportTask(payload GDPRExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGDPRExport, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// GDPRPurgePayload identifies one erasure request.
type GDPRPurgePayload struct {
	RequestID      string `json:"request_id"`
	OrganizationID int64  `json:"organization_id"`
}

// NewGDPRPurgeTask constructs an Asynq task for a data erasure request.
func NewGDPRPurgeTask(payload GDPRPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGDPRPurge, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// MemberCountRefreshPayload scopes a member count refresh to one tenant.
type MemberCountRefreshPayload struct {
	OrganizationID int64 `json:"organization_id"`
}

// NewMemberCountRefreshTask constructs the nightly refresh task.
func NewMemberCountRefreshTask(orgID int64) (*asynq.Task, error) {
	data, err := json.Marshal(MemberCountRefreshPayload{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMemberCountRefresh, data, asynq.Queue(QueueDefault)), nil
}
