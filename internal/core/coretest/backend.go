// Package coretest provides an in-memory analysis backend for tests of
// packages built on the import workflow.
package coretest

import (
	"context"
	"sync"

	"github.com/JonMunkholm/activity-import/internal/core"
)

// Backend implements core.Backend with canned responses and records every
// call by method name.
type Backend struct {
	StandardPreview *core.StandardPreview
	UnifiedPreview  *core.UnifiedPreview
	ImportResult    *core.ImportResult
	UnifiedResult   *core.UnifiedImportResult
	SmartResult     *core.SmartImportResult
	Batches         []core.ImportBatch
	Activities      *core.BatchActivities
	Deletion        *core.DeletionSummary
	Template        *core.Artifact

	PreviewErr error
	CommitErr  error
	LedgerErr  error

	mu           sync.Mutex
	calls        []string
	lastPeriodID string
	lastCascade  bool
	lastSheets   []string
}

var _ core.Backend = (*Backend)(nil)

func (b *Backend) record(call, periodID string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	if periodID != "" {
		b.lastPeriodID = periodID
	}
	b.mu.Unlock()
}

// Calls returns the recorded method names in call order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Count returns how often method was called.
func (b *Backend) Count(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// LastPeriodID returns the last non-empty period sent to the backend.
func (b *Backend) LastPeriodID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPeriodID
}

// LastCascade reports the cascade flag of the last batch deletion.
func (b *Backend) LastCascade() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCascade
}

// LastSheets returns the sheets of the last unified commit.
func (b *Backend) LastSheets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lastSheets...)
}

func (b *Backend) PreviewImport(_ context.Context, periodID string, _ core.File) (*core.StandardPreview, error) {
	b.record("PreviewImport", periodID)
	return b.StandardPreview, b.PreviewErr
}

func (b *Backend) UnifiedImportPreview(context.Context, core.File) (*core.UnifiedPreview, error) {
	b.record("UnifiedImportPreview", "")
	return b.UnifiedPreview, b.PreviewErr
}

func (b *Backend) ImportActivities(_ context.Context, periodID string, _ core.File, _ string) (*core.ImportResult, error) {
	b.record("ImportActivities", periodID)
	return b.ImportResult, b.CommitErr
}

func (b *Backend) UnifiedImport(_ context.Context, req core.UnifiedImportRequest) (*core.UnifiedImportResult, error) {
	b.record("UnifiedImport", req.PeriodID)
	b.mu.Lock()
	b.lastSheets = append([]string(nil), req.Sheets...)
	b.mu.Unlock()
	return b.UnifiedResult, b.CommitErr
}

func (b *Backend) SmartImport(_ context.Context, periodID string, _ core.File) (*core.SmartImportResult, error) {
	b.record("SmartImport", periodID)
	return b.SmartResult, b.CommitErr
}

func (b *Backend) GetImportBatches(_ context.Context, periodID string, _ int) ([]core.ImportBatch, error) {
	b.record("GetImportBatches", periodID)
	return b.Batches, b.LedgerErr
}

func (b *Backend) GetImportBatchActivities(context.Context, string) (*core.BatchActivities, error) {
	b.record("GetImportBatchActivities", "")
	return b.Activities, b.LedgerErr
}

func (b *Backend) DeleteImportBatch(_ context.Context, _ string, cascade bool) error {
	b.record("DeleteImportBatch", "")
	b.mu.Lock()
	b.lastCascade = cascade
	b.mu.Unlock()
	return b.LedgerErr
}

func (b *Backend) DeletePeriodActivities(_ context.Context, periodID string) (*core.DeletionSummary, error) {
	b.record("DeletePeriodActivities", periodID)
	return b.Deletion, b.LedgerErr
}

func (b *Backend) DeleteOrganizationActivities(context.Context, bool) (*core.DeletionSummary, error) {
	b.record("DeleteOrganizationActivities", "")
	return b.Deletion, b.LedgerErr
}

func (b *Backend) DownloadTemplate(context.Context, core.TemplateScope) (*core.Artifact, error) {
	b.record("DownloadTemplate", "")
	return b.Template, b.LedgerErr
}

// Workflow returns a workflow over b in mode, with shared as its period and
// site state.
func Workflow(b *Backend, shared *core.StaticState, mode core.ImportMode) (*core.Workflow, error) {
	return core.NewWorkflow(core.Options{
		Backend: b,
		Shared:  shared,
		Mode:    mode,
	})
}
