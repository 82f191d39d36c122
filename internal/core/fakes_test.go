package core

import (
	"context"
	"sync"
)

// fakeBackend records every call and returns canned responses.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	standardPreview *StandardPreview
	unifiedPreview  *UnifiedPreview
	importResult    *ImportResult
	unifiedResult   *UnifiedImportResult
	smartResult     *SmartImportResult
	batches         []ImportBatch
	activities      *BatchActivities
	deletion        *DeletionSummary
	template        *Artifact

	previewErr error
	commitErr  error
	ledgerErr  error

	lastUnified  UnifiedImportRequest
	lastSiteID   string
	lastCascade  bool
	lastConfirm  bool
	lastPeriodID string

	// block, when set, is waited on before a commit returns.
	block chan struct{}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) PreviewImport(_ context.Context, periodID string, _ File) (*StandardPreview, error) {
	f.record("PreviewImport")
	f.lastPeriodID = periodID
	return f.standardPreview, f.previewErr
}

func (f *fakeBackend) UnifiedImportPreview(context.Context, File) (*UnifiedPreview, error) {
	f.record("UnifiedImportPreview")
	return f.unifiedPreview, f.previewErr
}

func (f *fakeBackend) ImportActivities(_ context.Context, periodID string, _ File, siteID string) (*ImportResult, error) {
	f.record("ImportActivities")
	f.lastPeriodID = periodID
	f.lastSiteID = siteID
	if f.block != nil {
		<-f.block
	}
	return f.importResult, f.commitErr
}

func (f *fakeBackend) UnifiedImport(_ context.Context, req UnifiedImportRequest) (*UnifiedImportResult, error) {
	f.record("UnifiedImport")
	f.lastUnified = req
	return f.unifiedResult, f.commitErr
}

func (f *fakeBackend) SmartImport(_ context.Context, periodID string, _ File) (*SmartImportResult, error) {
	f.record("SmartImport")
	f.lastPeriodID = periodID
	if f.block != nil {
		<-f.block
	}
	return f.smartResult, f.commitErr
}

func (f *fakeBackend) GetImportBatches(_ context.Context, periodID string, _ int) ([]ImportBatch, error) {
	f.record("GetImportBatches")
	f.lastPeriodID = periodID
	return f.batches, f.ledgerErr
}

func (f *fakeBackend) GetImportBatchActivities(context.Context, string) (*BatchActivities, error) {
	f.record("GetImportBatchActivities")
	return f.activities, f.ledgerErr
}

func (f *fakeBackend) DeleteImportBatch(_ context.Context, _ string, cascade bool) error {
	f.record("DeleteImportBatch")
	f.lastCascade = cascade
	return f.ledgerErr
}

func (f *fakeBackend) DeletePeriodActivities(_ context.Context, periodID string) (*DeletionSummary, error) {
	f.record("DeletePeriodActivities")
	f.lastPeriodID = periodID
	return f.deletion, f.ledgerErr
}

func (f *fakeBackend) DeleteOrganizationActivities(_ context.Context, confirm bool) (*DeletionSummary, error) {
	f.record("DeleteOrganizationActivities")
	f.lastConfirm = confirm
	return f.deletion, f.ledgerErr
}

func (f *fakeBackend) DownloadTemplate(context.Context, TemplateScope) (*Artifact, error) {
	f.record("DownloadTemplate")
	return f.template, f.ledgerErr
}

// recordingInvalidator collects invalidated keys.
type recordingInvalidator struct {
	mu   sync.Mutex
	keys []QueryKey
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...QueryKey) {
	r.mu.Lock()
	r.keys = append(r.keys, keys...)
	r.mu.Unlock()
}

func (r *recordingInvalidator) Keys() []QueryKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]QueryKey(nil), r.keys...)
}

// recordingAudit collects audit entries.
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, e AuditEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingAudit) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.entries...)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func csvFile(name string) File {
	return File{Name: name, Data: []byte("activity_key,quantity\nfuel,1\n")}
}

func activities(n int) []ActivityCandidate {
	out := make([]ActivityCandidate, n)
	for i := range out {
		out[i] = ActivityCandidate{ActivityKey: "electricity_grid", Quantity: float64(i + 1), Unit: "kWh"}
	}
	return out
}
