package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is a step of the import workflow.
type State string

const (
	StateUpload         State = "upload"
	StatePreview        State = "preview"
	StateUnifiedPreview State = "unified-preview"
	StateImporting      State = "importing"
	StateResult         State = "result"
)

// Options configures a Workflow.
type Options struct {
	Backend     Backend       // required
	Shared      SharedState   // required
	Invalidator Invalidator   // optional
	Audit       AuditRecorder // optional
	Gate        *RequestGate  // optional, shared across workflows
	MaxFileSize int64         // 0 disables the size check
	Mode        ImportMode    // initial mode, defaults to ModeStandard
	Now         func() time.Time
}

// Workflow orchestrates one import from file selection to result. It owns
// all transient state and enforces that at most one outcome (preview or
// result) exists at a time.
//
// Methods are safe for concurrent use. Network calls run without holding the
// lock; a response that arrives after Reset or a mode change is discarded.
type Workflow struct {
	negotiator  *Negotiator
	committer   *Committer
	ledger      *Ledger
	shared      SharedState
	invalidator Invalidator
	audit       AuditRecorder
	now         func() time.Time

	mu        sync.Mutex
	state     State
	prior     State // preview state to fall back to when a commit fails
	mode      ImportMode
	siteID    string
	file      *File
	outcome   Outcome
	selection *Selection
	snapshot  Snapshot
	errMsg    string
	pending   bool
	epoch     uint64
}

// NewWorkflow creates a workflow in the upload state.
func NewWorkflow(opts Options) (*Workflow, error) {
	if opts.Backend == nil {
		return nil, errors.New("workflow: backend is required")
	}
	if opts.Shared == nil {
		return nil, errors.New("workflow: shared state is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeStandard
	}
	if _, ok := LookupMode(opts.Mode); !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown import mode %q", opts.Mode)}
	}
	if opts.Invalidator == nil {
		opts.Invalidator = nopInvalidator{}
	}
	if opts.Audit == nil {
		opts.Audit = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Workflow{
		negotiator:  NewNegotiator(opts.Backend, opts.Gate, opts.MaxFileSize),
		committer:   NewCommitter(opts.Backend, opts.Gate),
		ledger:      NewLedger(opts.Backend, opts.Invalidator, opts.Audit),
		shared:      opts.Shared,
		invalidator: opts.Invalidator,
		audit:       opts.Audit,
		now:         opts.Now,
		state:       StateUpload,
		mode:        opts.Mode,
		selection:   NewSelection(),
	}, nil
}

// Ledger returns the batch ledger client bound to this workflow.
func (w *Workflow) Ledger() *Ledger { return w.ledger }

// State returns the current step.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Mode returns the selected import mode.
func (w *Workflow) Mode() ImportMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// SetMode switches the import mode. Changing the mode discards the file and
// any preview or result, including a response still in flight.
func (w *Workflow) SetMode(m ImportMode) error {
	if _, ok := LookupMode(m); !ok {
		return &ValidationError{Reason: fmt.Sprintf("unknown import mode %q", m)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if m == w.mode {
		return nil
	}
	w.resetLocked()
	w.mode = m
	slog.Debug("import mode changed", "mode", m)
	return nil
}

// SetSite chooses the site imported activities are attributed to. An empty
// id clears the choice.
func (w *Workflow) SetSite(siteID string) error {
	if siteID != "" && !hasSite(w.shared.Sites(), siteID) {
		return &PreconditionError{Reason: fmt.Sprintf("unknown site %q", siteID)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending || w.state == StateImporting {
		return ErrBusy
	}
	w.siteID = siteID
	w.snapshot.SiteID = siteID
	return nil
}

// SelectFile starts an import with f. Depending on the mode it moves to the
// preview, unified-preview or (smart) result state. On any failure the
// workflow stays in upload with the error banner set.
//
// Selecting a file while a preview is shown replaces it.
func (w *Workflow) SelectFile(ctx context.Context, f File) error {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return ErrBusy
	}
	switch w.state {
	case StateUpload, StatePreview, StateUnifiedPreview:
	default:
		w.mu.Unlock()
		return fmt.Errorf("select file in %s: %w", w.state, ErrInvalidState)
	}

	// A new file replaces everything derived from the previous one.
	w.state = StateUpload
	w.file = nil
	w.outcome = nil
	w.selection.Clear()
	w.errMsg = ""

	mode := w.mode
	def, _ := LookupMode(mode)

	if err := w.negotiator.Check(mode, f); err != nil {
		w.errMsg = Message(err, def.PreviewFallback)
		w.mu.Unlock()
		return err
	}

	period := w.shared.Period()
	if period == "" {
		err := &PreconditionError{Reason: "no reporting period selected"}
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}

	w.file = &f
	w.snapshot = Snapshot{PeriodID: period, SiteID: w.siteID}
	w.pending = true
	epoch := w.epoch
	snap := w.snapshot
	w.mu.Unlock()

	var (
		out Outcome
		err error
	)
	if def.HasPreview {
		out, err = w.negotiator.Preview(ctx, mode, snap.PeriodID, f)
	} else {
		out, err = w.committer.Commit(ctx, CommitRequest{
			Mode:     mode,
			PeriodID: snap.PeriodID,
			SiteID:   snap.SiteID,
			File:     f,
		})
	}

	w.mu.Lock()
	if w.epoch != epoch {
		w.mu.Unlock()
		slog.Debug("discarding stale response", "mode", mode, "file", f.Name)
		// The backend already stored a smart import; only the result is dropped.
		if err == nil && !def.HasPreview {
			w.afterCommit(ctx, mode, snap, f.Name, out)
		}
		return ErrStale
	}
	w.pending = false

	if err != nil {
		fallback := def.PreviewFallback
		if !def.HasPreview {
			fallback = def.CommitFallback
		}
		w.file = nil
		w.state = StateUpload
		w.errMsg = Message(err, fallback)
		w.mu.Unlock()
		slog.Warn("file analysis failed", "mode", mode, "file", f.Name, "error", err)
		return err
	}

	w.outcome = out
	switch o := out.(type) {
	case *StandardPreview:
		w.state = StatePreview
	case *UnifiedPreview:
		w.selection.Seed(o)
		w.state = StateUnifiedPreview
	default:
		w.state = StateResult
	}
	state := w.state
	w.mu.Unlock()

	slog.Debug("workflow transition", "mode", mode, "state", state, "file", f.Name)
	if state == StateResult {
		w.afterCommit(ctx, mode, snap, f.Name, out)
	}
	return nil
}

// Commit submits the previewed file. On success the workflow moves to the
// result state and downstream caches are invalidated. On failure it returns
// to the preview it came from with every field intact, so the user can retry.
func (w *Workflow) Commit(ctx context.Context) error {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return ErrBusy
	}
	if w.state != StatePreview && w.state != StateUnifiedPreview {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("commit in %s: %w", state, ErrInvalidState)
	}

	if err := w.commitBlockerLocked(); err != nil {
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}

	if live := w.shared.Period(); live != w.snapshot.PeriodID {
		err := &ConflictError{Captured: w.snapshot.PeriodID, Current: live}
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}

	if w.siteID != "" && !hasSite(w.shared.Sites(), w.siteID) {
		err := &PreconditionError{Reason: fmt.Sprintf("site %q is no longer available; choose another site", w.siteID)}
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}

	mode := w.mode
	def, _ := LookupMode(mode)
	req := CommitRequest{
		Mode:     mode,
		PeriodID: w.snapshot.PeriodID,
		SiteID:   w.siteID,
		File:     *w.file,
	}
	if mode == ModeUnified {
		req.Sheets = w.selection.Selected()
	}
	snap := Snapshot{PeriodID: w.snapshot.PeriodID, SiteID: w.siteID}

	w.prior = w.state
	w.state = StateImporting
	w.pending = true
	w.errMsg = ""
	epoch := w.epoch
	w.mu.Unlock()

	slog.Debug("workflow transition", "mode", mode, "state", StateImporting, "file", req.File.Name)
	out, err := w.committer.Commit(ctx, req)

	w.mu.Lock()
	if w.epoch != epoch {
		w.mu.Unlock()
		slog.Debug("discarding stale response", "mode", mode, "file", req.File.Name)
		if err == nil {
			w.afterCommit(ctx, mode, snap, req.File.Name, out)
		}
		return ErrStale
	}
	w.pending = false

	if err != nil {
		w.state = w.prior
		w.errMsg = Message(err, def.CommitFallback)
		w.mu.Unlock()
		slog.Warn("import failed", "mode", mode, "file", req.File.Name, "error", err)
		return err
	}

	w.outcome = out
	w.state = StateResult
	w.mu.Unlock()

	slog.Debug("workflow transition", "mode", mode, "state", StateResult, "file", req.File.Name)
	w.afterCommit(ctx, mode, snap, req.File.Name, out)
	return nil
}

// afterCommit runs the side effects of a successful import. It is only
// called once the success response has been received.
func (w *Workflow) afterCommit(ctx context.Context, mode ImportMode, snap Snapshot, fileName string, out Outcome) {
	w.invalidator.Invalidate(ctx, CommitInvalidations...)

	entry := AuditEntry{
		Action:   ActionImportCommit,
		Mode:     mode,
		PeriodID: snap.PeriodID,
		SiteID:   snap.SiteID,
		FileName: fileName,
	}
	switch r := out.(type) {
	case *ImportResult:
		entry.RowsAffected, entry.RowsFailed = r.Imported, r.Failed
		entry.BatchID = deref(r.ImportBatchID)
	case *UnifiedImportResult:
		entry.RowsAffected, entry.RowsFailed = r.Imported, r.Failed
		entry.BatchID = deref(r.ImportBatchID)
	}
	recordAudit(ctx, w.audit, entry)

	slog.Info("import committed",
		"mode", mode,
		"file", fileName,
		"period_id", snap.PeriodID,
		"imported", entry.RowsAffected,
		"failed", entry.RowsFailed,
		"batch_id", entry.BatchID,
	)
}

// commitBlockerLocked returns why the current preview cannot be committed.
func (w *Workflow) commitBlockerLocked() error {
	if w.file == nil {
		return &ValidationError{Reason: "no file provided"}
	}
	switch o := w.outcome.(type) {
	case *StandardPreview:
		if o.ValidRows <= 0 {
			return &PreconditionError{Reason: "no valid rows to import"}
		}
	case *UnifiedPreview:
		if w.selection.Empty() {
			return &PreconditionError{Reason: "no sheets selected for import"}
		}
	default:
		return ErrInvalidState
	}
	return nil
}

// CanCommit reports whether the commit control should be enabled.
func (w *Workflow) CanCommit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canCommitLocked()
}

func (w *Workflow) canCommitLocked() bool {
	if w.pending {
		return false
	}
	if w.state != StatePreview && w.state != StateUnifiedPreview {
		return false
	}
	return w.commitBlockerLocked() == nil
}

// Reset returns to the upload state from any state, clearing the file, every
// preview and result, the sheet selection, the error banner and the fetched
// batch details. A request still in flight is not aborted; its response is
// discarded when it arrives.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.resetLocked()
	w.mu.Unlock()
	slog.Debug("workflow reset")
}

func (w *Workflow) resetLocked() {
	w.state = StateUpload
	w.prior = ""
	w.file = nil
	w.outcome = nil
	w.selection.Clear()
	w.snapshot = Snapshot{}
	w.errMsg = ""
	w.pending = false
	w.epoch++
	w.ledger.ClearDetails()
}

// ToggleSheet flips whether a sheet of the unified preview is imported.
func (w *Workflow) ToggleSheet(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateUnifiedPreview || w.pending {
		return fmt.Errorf("toggle sheet in %s: %w", w.state, ErrInvalidState)
	}
	if !w.selection.Toggle(name) {
		return &ValidationError{Reason: fmt.Sprintf("sheet %q cannot be imported", name)}
	}
	return nil
}

// ToggleExpanded flips whether a sheet of the unified preview is expanded.
func (w *Workflow) ToggleExpanded(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.outcome.(*UnifiedPreview)
	if !ok || w.state != StateUnifiedPreview {
		return fmt.Errorf("expand sheet in %s: %w", w.state, ErrInvalidState)
	}
	if _, found := p.Sheet(name); !found {
		return &ValidationError{Reason: fmt.Sprintf("unknown sheet %q", name)}
	}
	w.selection.ToggleExpanded(name)
	return nil
}

// ClearError dismisses the error banner.
func (w *Workflow) ClearError() {
	w.mu.Lock()
	w.errMsg = ""
	w.mu.Unlock()
}

// Error returns the error banner text, empty when there is none.
func (w *Workflow) Error() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// Outcome returns the current preview or result, or nil.
func (w *Workflow) Outcome() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// StandardPreview returns the standard preview if one is shown.
func (w *Workflow) StandardPreview() *StandardPreview {
	p, _ := w.Outcome().(*StandardPreview)
	return p
}

// UnifiedPreview returns the unified preview if one is shown.
func (w *Workflow) UnifiedPreview() *UnifiedPreview {
	p, _ := w.Outcome().(*UnifiedPreview)
	return p
}

// ImportResult returns the standard import result if one is shown.
func (w *Workflow) ImportResult() *ImportResult {
	r, _ := w.Outcome().(*ImportResult)
	return r
}

// UnifiedImportResult returns the unified import result if one is shown.
func (w *Workflow) UnifiedImportResult() *UnifiedImportResult {
	r, _ := w.Outcome().(*UnifiedImportResult)
	return r
}

// SmartImportResult returns the smart import acknowledgement if one is shown.
func (w *Workflow) SmartImportResult() *SmartImportResult {
	r, _ := w.Outcome().(*SmartImportResult)
	return r
}

// ImportErrors returns the error list of whichever import result is shown.
func (w *Workflow) ImportErrors() []ImportError {
	switch r := w.Outcome().(type) {
	case *ImportResult:
		return r.Errors
	case *UnifiedImportResult:
		return r.Errors
	}
	return nil
}

// ExportErrors builds the error-log CSV of the last import.
func (w *Workflow) ExportErrors() (*Artifact, error) {
	return ExportErrors(w.ImportErrors(), w.now())
}

// ExpandBatch fetches the activities of a batch so they can be inspected and
// exported.
func (w *Workflow) ExpandBatch(ctx context.Context, batchID string) (*BatchActivities, error) {
	return w.ledger.Activities(ctx, batchID)
}

// ExportBatch builds the results CSV of a batch. The batch must have been
// expanded first; nothing is fetched implicitly.
func (w *Workflow) ExportBatch(batchID string) (*Artifact, error) {
	detail, ok := w.ledger.Detail(batchID)
	if !ok {
		return nil, ErrDetailNotLoaded
	}
	return ExportResults(detail, w.now())
}

// View is a consistent snapshot of the workflow for rendering.
type View struct {
	State              State      `json:"state"`
	Mode               ImportMode `json:"mode"`
	FileName           string     `json:"file_name,omitempty"`
	PeriodID           string     `json:"period_id,omitempty"`
	SiteID             string     `json:"site_id,omitempty"`
	Pending            bool       `json:"pending"`
	Error              string     `json:"error,omitempty"`
	CanCommit          bool       `json:"can_commit"`
	OutcomeKind        string     `json:"outcome_kind,omitempty"`
	Outcome            Outcome    `json:"outcome,omitempty"`
	SelectedSheets     []string   `json:"selected_sheets,omitempty"`
	ExpandedSheets     []string   `json:"expanded_sheets,omitempty"`
	ActivitiesToImport int        `json:"activities_to_import,omitempty"`
}

// View returns the current state for rendering.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		State:     w.state,
		Mode:      w.mode,
		PeriodID:  w.snapshot.PeriodID,
		SiteID:    w.siteID,
		Pending:   w.pending,
		Error:     w.errMsg,
		CanCommit: w.canCommitLocked(),
		Outcome:   w.outcome,
	}
	if w.file != nil {
		v.FileName = w.file.Name
	}
	if w.outcome != nil {
		v.OutcomeKind = OutcomeKind(w.outcome)
	}
	if p, ok := w.outcome.(*UnifiedPreview); ok {
		v.SelectedSheets = w.selection.Selected()
		v.ExpandedSheets = w.selection.Expanded()
		v.ActivitiesToImport = w.selection.ActivitiesToImport(p)
	}
	return v
}

func hasSite(sites []Site, id string) bool {
	for _, s := range sites {
		if s.ID == id {
			return true
		}
	}
	return false
}
