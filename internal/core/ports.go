package core

import (
	"context"
	"sort"
	"sync"
)

// Analyzer is the dry-run and commit surface of the analysis backend.
type Analyzer interface {
	PreviewImport(ctx context.Context, periodID string, file File) (*StandardPreview, error)
	UnifiedImportPreview(ctx context.Context, file File) (*UnifiedPreview, error)
	ImportActivities(ctx context.Context, periodID string, file File, siteID string) (*ImportResult, error)
	UnifiedImport(ctx context.Context, req UnifiedImportRequest) (*UnifiedImportResult, error)
	SmartImport(ctx context.Context, periodID string, file File) (*SmartImportResult, error)
}

// LedgerBackend is the import-batch surface of the backend.
type LedgerBackend interface {
	GetImportBatches(ctx context.Context, periodID string, limit int) ([]ImportBatch, error)
	GetImportBatchActivities(ctx context.Context, batchID string) (*BatchActivities, error)
	DeleteImportBatch(ctx context.Context, batchID string, deleteActivities bool) error
	DeletePeriodActivities(ctx context.Context, periodID string) (*DeletionSummary, error)
	DeleteOrganizationActivities(ctx context.Context, confirm bool) (*DeletionSummary, error)
	DownloadTemplate(ctx context.Context, scope TemplateScope) (*Artifact, error)
}

// Backend is everything the workflow consumes from the analysis service.
type Backend interface {
	Analyzer
	LedgerBackend
}

// QueryKey names a downstream data cache.
type QueryKey string

const (
	KeyActivities    QueryKey = "activities"
	KeyImportBatches QueryKey = "import-batches"
	KeyReportSummary QueryKey = "report-summary"
	KeyPeriods       QueryKey = "periods"
)

// CommitInvalidations are the caches refreshed after a successful import.
var CommitInvalidations = []QueryKey{KeyActivities, KeyImportBatches, KeyReportSummary, KeyPeriods}

// Invalidator drops cached downstream data so other views reload it.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...QueryKey)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...QueryKey) {}

// SharedState exposes application-wide selections that may change while a
// workflow is in progress.
type SharedState interface {
	Period() string
	Sites() []Site
}

// Snapshot is the shared state captured when a file enters the workflow.
type Snapshot struct {
	PeriodID string
	SiteID   string
}

// StaticState is a SharedState holding values set by the caller.
// Safe for concurrent use.
type StaticState struct {
	mu     sync.RWMutex
	period string
	sites  []Site
}

// NewStaticState returns a StaticState with the given period and sites.
func NewStaticState(period string, sites ...Site) *StaticState {
	return &StaticState{period: period, sites: sites}
}

// Period returns the selected reporting period.
func (s *StaticState) Period() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.period
}

// Sites returns the organization's sites sorted by name.
func (s *StaticState) Sites() []Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Site, len(s.sites))
	copy(out, s.sites)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetPeriod switches the selected reporting period.
func (s *StaticState) SetPeriod(period string) {
	s.mu.Lock()
	s.period = period
	s.mu.Unlock()
}

// SetSites replaces the site list.
func (s *StaticState) SetSites(sites []Site) {
	s.mu.Lock()
	s.sites = append([]Site(nil), sites...)
	s.mu.Unlock()
}
