package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultBatchLimit is the number of batches listed when no limit is given.
const DefaultBatchLimit = 20

// Ledger lists, inspects and deletes import batches. It keeps the activities
// of explicitly expanded batches so they can be exported without another
// request.
type Ledger struct {
	backend     LedgerBackend
	invalidator Invalidator
	audit       AuditRecorder

	mu      sync.RWMutex
	details map[string]*BatchActivities
}

// NewLedger creates a Ledger. invalidator and audit may be nil.
func NewLedger(backend LedgerBackend, invalidator Invalidator, audit AuditRecorder) *Ledger {
	if invalidator == nil {
		invalidator = nopInvalidator{}
	}
	if audit == nil {
		audit = nopRecorder{}
	}
	return &Ledger{
		backend:     backend,
		invalidator: invalidator,
		audit:       audit,
		details:     make(map[string]*BatchActivities),
	}
}

// List returns the most recent batches, optionally restricted to a period.
func (l *Ledger) List(ctx context.Context, periodID string, limit int) ([]ImportBatch, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	batches, err := l.backend.GetImportBatches(ctx, periodID, limit)
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	return batches, nil
}

// Activities fetches the per-row emission detail of a batch and keeps it for
// export.
func (l *Ledger) Activities(ctx context.Context, batchID string) (*BatchActivities, error) {
	if batchID == "" {
		return nil, &ValidationError{Reason: "missing batch id"}
	}
	detail, err := l.backend.GetImportBatchActivities(ctx, batchID)
	if err != nil {
		return nil, &LedgerError{Op: "activities", Err: err}
	}
	if detail == nil {
		detail = &BatchActivities{}
	}
	detail.BatchID = batchID

	l.mu.Lock()
	l.details[batchID] = detail
	l.mu.Unlock()
	return detail, nil
}

// Detail returns previously fetched activities of a batch.
func (l *Ledger) Detail(batchID string) (*BatchActivities, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.details[batchID]
	return d, ok
}

// Collapse forgets the fetched activities of a batch.
func (l *Ledger) Collapse(batchID string) {
	l.mu.Lock()
	delete(l.details, batchID)
	l.mu.Unlock()
}

// ClearDetails forgets every fetched batch.
func (l *Ledger) ClearDetails() {
	l.mu.Lock()
	l.details = make(map[string]*BatchActivities)
	l.mu.Unlock()
}

// Delete removes a batch after confirmation. With cascade, every activity
// attributed to the batch is removed too; without it the activities are kept
// and lose their batch attribution.
func (l *Ledger) Delete(ctx context.Context, batchID string, cascade bool, confirmer Confirmer) error {
	if batchID == "" {
		return &ValidationError{Reason: "missing batch id"}
	}

	msg := "Delete this import batch record? Its activities will be kept."
	if cascade {
		msg = "Delete this import batch and every activity it created? This cannot be undone."
	}
	if err := confirm(ctx, confirmer, Prompt{Title: "Delete import batch", Message: msg}); err != nil {
		return err
	}

	if err := l.backend.DeleteImportBatch(ctx, batchID, cascade); err != nil {
		return &LedgerError{Op: "delete", Err: err}
	}

	l.Collapse(batchID)
	l.invalidator.Invalidate(ctx, KeyImportBatches, KeyActivities, KeyReportSummary)
	recordAudit(ctx, l.audit, AuditEntry{
		Action:  ActionBatchDelete,
		BatchID: batchID,
		Cascade: cascade,
	})

	slog.Info("import batch deleted", "batch_id", batchID, "cascade", cascade)
	return nil
}

// DeletePeriodActivities removes every activity of a reporting period after
// confirmation.
func (l *Ledger) DeletePeriodActivities(ctx context.Context, periodID string, confirmer Confirmer) (*DeletionSummary, error) {
	if periodID == "" {
		return nil, &PreconditionError{Reason: "no reporting period selected"}
	}
	if err := confirm(ctx, confirmer, Prompt{
		Title:   "Delete period activities",
		Message: "Delete every activity and emission of this reporting period? This cannot be undone.",
	}); err != nil {
		return nil, err
	}

	sum, err := l.backend.DeletePeriodActivities(ctx, periodID)
	if err != nil {
		return nil, &LedgerError{Op: "delete_period", Err: err}
	}
	if sum == nil {
		sum = &DeletionSummary{}
	}

	l.ClearDetails()
	l.invalidator.Invalidate(ctx, CommitInvalidations...)
	recordAudit(ctx, l.audit, AuditEntry{
		Action:       ActionPeriodWipe,
		PeriodID:     periodID,
		RowsAffected: sum.DeletedActivities,
	})

	slog.Warn("period activities deleted",
		"period_id", periodID,
		"activities", sum.DeletedActivities,
		"emissions", sum.DeletedEmissions,
	)
	return sum, nil
}

// DeleteOrganizationActivities removes every activity of the organization
// across all periods. Besides accepting the dialog, the user must type
// OrganizationWipeToken; otherwise no request is sent.
func (l *Ledger) DeleteOrganizationActivities(ctx context.Context, confirmer Confirmer) (*DeletionSummary, error) {
	if err := confirm(ctx, confirmer, Prompt{
		Title:        "Delete all organization data",
		Message:      "Delete every activity and emission of the organization in every period? This cannot be undone.",
		RequireTyped: OrganizationWipeToken,
	}); err != nil {
		return nil, err
	}

	sum, err := l.backend.DeleteOrganizationActivities(ctx, true)
	if err != nil {
		return nil, &LedgerError{Op: "delete_organization", Err: err}
	}
	if sum == nil {
		sum = &DeletionSummary{}
	}

	l.ClearDetails()
	l.invalidator.Invalidate(ctx, CommitInvalidations...)
	recordAudit(ctx, l.audit, AuditEntry{
		Action:       ActionOrganizationWipe,
		RowsAffected: sum.DeletedActivities,
	})

	slog.Warn("organization activities deleted",
		"activities", sum.DeletedActivities,
		"emissions", sum.DeletedEmissions,
	)
	return sum, nil
}

// Template downloads the import template for a scope.
func (l *Ledger) Template(ctx context.Context, scope TemplateScope) (*Artifact, error) {
	if !scope.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown template scope %q", scope)}
	}
	a, err := l.backend.DownloadTemplate(ctx, scope)
	if err != nil {
		return nil, &LedgerError{Op: "template", Err: err}
	}
	if a == nil || len(a.Data) == 0 {
		return nil, &LedgerError{Op: "template", Err: fmt.Errorf("empty template for scope %s", scope)}
	}
	recordAudit(ctx, l.audit, AuditEntry{Action: ActionTemplateDownload, FileName: a.FileName})
	return a, nil
}

func confirm(ctx context.Context, confirmer Confirmer, p Prompt) error {
	if confirmer == nil {
		return ErrNotConfirmed
	}
	c, err := confirmer.Confirm(ctx, p)
	if err != nil {
		return fmt.Errorf("confirm %q: %w", p.Title, err)
	}
	if !c.Satisfies(p) {
		return ErrNotConfirmed
	}
	return nil
}
