package core

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportCommit     AuditAction = "import_commit"
	ActionBatchDelete      AuditAction = "batch_delete"
	ActionPeriodWipe       AuditAction = "period_wipe"
	ActionOrganizationWipe AuditAction = "organization_wipe"
	ActionTemplateDownload AuditAction = "template_download"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// DetermineSeverity returns the severity for an action.
func DetermineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImportCommit, ActionBatchDelete:
		return SeverityHigh
	case ActionPeriodWipe, ActionOrganizationWipe:
		return SeverityCritical
	case ActionTemplateDownload:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditEntry is one audited workflow or ledger action.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Mode         ImportMode    `json:"mode,omitempty"`
	PeriodID     string        `json:"periodId,omitempty"`
	SiteID       string        `json:"siteId,omitempty"`
	BatchID      string        `json:"batchId,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	RowsAffected int           `json:"rowsAffected"`
	RowsFailed   int           `json:"rowsFailed"`
	Cascade      bool          `json:"cascade,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	SessionID    string        `json:"sessionId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, AuditEntry) error { return nil }

// recordAudit fills the request metadata and severity, then records the
// entry. Failures are logged and never fail the audited operation.
func recordAudit(ctx context.Context, rec AuditRecorder, entry AuditEntry) {
	entry.Severity = DetermineSeverity(entry.Action)
	entry.IPAddress = GetIPAddressFromContext(ctx)
	entry.UserAgent = GetUserAgentFromContext(ctx)
	entry.SessionID = GetSessionIDFromContext(ctx)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := rec.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed",
			"action", entry.Action,
			"batch_id", entry.BatchID,
			"error", err,
		)
	}
}
