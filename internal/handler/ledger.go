package handler

import (
	"context"

	"github.com/JonMunkholm/activity-import/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	Batch Ledger Actions
---------------------------------------- */

// ListBatches fetches the recent batches of the selected period.
func (i *Importer) ListBatches() tea.Cmd {
	periodID := i.Shared.Period()
	return run(LedgerTimeout, func(ctx context.Context) (tea.Msg, error) {
		batches, err := i.Workflow.Ledger().List(ctx, periodID, i.BatchLimit)
		if err != nil {
			return nil, err
		}
		return BatchesMsg{PeriodID: periodID, Batches: batches}, nil
	})
}

// ExpandBatch fetches the activities of a batch.
func (i *Importer) ExpandBatch(batchID string) tea.Cmd {
	return run(LedgerTimeout, func(ctx context.Context) (tea.Msg, error) {
		detail, err := i.Workflow.ExpandBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		return DetailMsg{Detail: detail}, nil
	})
}

// ExportBatch writes the expanded activities of a batch to the export
// directory.
func (i *Importer) ExportBatch(batchID string) tea.Cmd {
	return func() tea.Msg {
		a, err := i.Workflow.ExportBatch(batchID)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return i.save(a)
	}
}

// DeleteBatch deletes a batch, and its activities with cascade, once
// confirmer accepts.
func (i *Importer) DeleteBatch(batchID string, cascade bool, confirmer core.Confirmer) tea.Cmd {
	return run(DeleteTimeout, func(ctx context.Context) (tea.Msg, error) {
		if err := i.Workflow.Ledger().Delete(ctx, batchID, cascade, confirmer); err != nil {
			return nil, err
		}
		if cascade {
			return DoneMsg("Batch and its activities deleted"), nil
		}
		return DoneMsg("Batch record deleted"), nil
	})
}
