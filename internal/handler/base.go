// Package handler turns workflow operations into bubbletea commands for the
// terminal importer. Every command runs under its own timeout and reports
// back with one of the message types below.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

// ImportTimeout bounds a preview or commit, which may wait on slow AI mapping.
// Can be overridden for testing.
var ImportTimeout = 5 * time.Minute

// LedgerTimeout bounds a batch list, detail or template request.
var LedgerTimeout = time.Minute

// DeleteTimeout bounds a batch deletion. It includes the time the
// confirmation dialog is open.
var DeleteTimeout = 5 * time.Minute

// WdMsg is an informational status line.
type WdMsg string

// DoneMsg reports a completed operation.
type DoneMsg string

// ErrMsg reports a failed operation.
type ErrMsg struct{ Err error }

// StateMsg reports that the workflow moved and its view must be re-read.
type StateMsg struct{ Note string }

// BatchesMsg carries a fetched batch list.
type BatchesMsg struct {
	PeriodID string
	Batches  []core.ImportBatch
}

// DetailMsg carries the activities of an expanded batch.
type DetailMsg struct{ Detail *core.BatchActivities }

// Importer runs workflow and ledger operations for the terminal importer.
type Importer struct {
	Workflow    *core.Workflow
	Shared      *core.StaticState
	ExportDir   string
	MaxFileSize int64
	BatchLimit  int
}

// NewImporter creates an Importer over wf. shared is the period and site
// state the workflow snapshots when a file is selected.
func NewImporter(wf *core.Workflow, shared *core.StaticState, exportDir string, maxFileSize int64, batchLimit int) *Importer {
	return &Importer{
		Workflow:    wf,
		Shared:      shared,
		ExportDir:   exportDir,
		MaxFileSize: maxFileSize,
		BatchLimit:  batchLimit,
	}
}

// run executes fn under a timeout and converts its error into an ErrMsg.
// A declined confirmation is not an error.
func run(timeout time.Duration, fn func(ctx context.Context) (tea.Msg, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg, err := fn(ctx)
		if err != nil {
			if errors.Is(err, core.ErrNotConfirmed) {
				return WdMsg("Cancelled")
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrMsg{Err: fmt.Errorf("request timed out after %v", timeout)}
			}
			return ErrMsg{Err: err}
		}
		return msg
	}
}
