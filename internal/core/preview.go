package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Outcome is the single payload a workflow holds at any time: one of
// *StandardPreview, *UnifiedPreview, *SmartImportResult, *ImportResult or
// *UnifiedImportResult. The interface is sealed so a type switch over it
// lists every shape.
type Outcome interface {
	outcome()
}

func (*StandardPreview) outcome()     {}
func (*UnifiedPreview) outcome()      {}
func (*SmartImportResult) outcome()   {}
func (*ImportResult) outcome()        {}
func (*UnifiedImportResult) outcome() {}

// OutcomeKind names the shape of an Outcome for serialization.
func OutcomeKind(o Outcome) string {
	switch o.(type) {
	case *StandardPreview:
		return "standard_preview"
	case *UnifiedPreview:
		return "unified_preview"
	case *SmartImportResult:
		return "smart_result"
	case *ImportResult:
		return "import_result"
	case *UnifiedImportResult:
		return "unified_result"
	default:
		return ""
	}
}

// Negotiator sends candidate files to the backend for dry-run analysis.
// Nothing is persisted by a preview.
type Negotiator struct {
	backend     Analyzer
	gate        *RequestGate
	maxFileSize int64
}

// NewNegotiator creates a Negotiator. gate may be nil.
func NewNegotiator(backend Analyzer, gate *RequestGate, maxFileSize int64) *Negotiator {
	return &Negotiator{backend: backend, gate: gate, maxFileSize: maxFileSize}
}

// Check runs the client-side validation for a mode without any request.
func (n *Negotiator) Check(mode ImportMode, f File) error {
	return CheckFile(mode, f, n.maxFileSize)
}

// Preview analyzes f for the given mode and returns a *StandardPreview or
// *UnifiedPreview. periodID is required for the standard mode. Smart mode has
// no preview step and is rejected with ErrInvalidState.
func (n *Negotiator) Preview(ctx context.Context, mode ImportMode, periodID string, f File) (Outcome, error) {
	if err := n.Check(mode, f); err != nil {
		return nil, err
	}

	def, _ := LookupMode(mode)
	if !def.HasPreview {
		return nil, fmt.Errorf("%s mode has no preview step: %w", mode, ErrInvalidState)
	}
	if mode == ModeStandard && periodID == "" {
		return nil, &PreconditionError{Reason: "no reporting period selected"}
	}

	if err := n.gate.Acquire(ctx); err != nil {
		return nil, &AnalysisError{Mode: mode, Err: err}
	}
	defer n.gate.Release()

	start := time.Now()
	var (
		out Outcome
		err error
	)
	switch mode {
	case ModeStandard:
		var p *StandardPreview
		p, err = n.backend.PreviewImport(ctx, periodID, f)
		out = p
	case ModeUnified:
		var p *UnifiedPreview
		p, err = n.backend.UnifiedImportPreview(ctx, f)
		out = p
	}
	if err != nil {
		return nil, &AnalysisError{Mode: mode, Err: err}
	}
	if isNilOutcome(out) {
		return nil, &AnalysisError{Mode: mode, Err: fmt.Errorf("empty analysis response")}
	}

	slog.Debug("preview analyzed",
		"mode", mode,
		"file", f.Name,
		"bytes", f.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// CommitRequest is the final, user-confirmed import request.
type CommitRequest struct {
	Mode     ImportMode
	PeriodID string
	SiteID   string
	File     File
	Sheets   []string // unified only: the selected sheets
}

// Committer submits imports to the backend.
type Committer struct {
	backend Analyzer
	gate    *RequestGate
}

// NewCommitter creates a Committer. gate may be nil.
func NewCommitter(backend Analyzer, gate *RequestGate) *Committer {
	return &Committer{backend: backend, gate: gate}
}

// Commit submits req and returns the terminal *ImportResult,
// *UnifiedImportResult or *SmartImportResult. The standard mode sends the
// whole file; the server re-validates every row regardless of the preview.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (Outcome, error) {
	if req.PeriodID == "" {
		return nil, &PreconditionError{Reason: "no reporting period selected"}
	}
	if req.Mode == ModeUnified && len(req.Sheets) == 0 {
		return nil, &PreconditionError{Reason: "no sheets selected"}
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return nil, &CommitError{Mode: req.Mode, Err: err}
	}
	defer c.gate.Release()

	var (
		out Outcome
		err error
	)
	switch req.Mode {
	case ModeStandard:
		var r *ImportResult
		r, err = c.backend.ImportActivities(ctx, req.PeriodID, req.File, req.SiteID)
		out = r
	case ModeUnified:
		var r *UnifiedImportResult
		r, err = c.backend.UnifiedImport(ctx, UnifiedImportRequest{
			PeriodID: req.PeriodID,
			File:     req.File,
			SiteID:   req.SiteID,
			Sheets:   req.Sheets,
		})
		out = r
	case ModeSmart:
		var r *SmartImportResult
		r, err = c.backend.SmartImport(ctx, req.PeriodID, req.File)
		out = r
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown import mode %q", req.Mode)}
	}
	if err != nil {
		return nil, &CommitError{Mode: req.Mode, Err: err}
	}
	if isNilOutcome(out) {
		return nil, &CommitError{Mode: req.Mode, Err: fmt.Errorf("empty import response")}
	}
	return out, nil
}

// isNilOutcome catches typed nil pointers stored in the interface.
func isNilOutcome(o Outcome) bool {
	switch v := o.(type) {
	case nil:
		return true
	case *StandardPreview:
		return v == nil
	case *UnifiedPreview:
		return v == nil
	case *SmartImportResult:
		return v == nil
	case *ImportResult:
		return v == nil
	case *UnifiedImportResult:
		return v == nil
	}
	return false
}
