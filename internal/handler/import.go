package handler

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/activity-import/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	Workflow Actions
---------------------------------------- */

// SelectFile reads path from disk and hands it to the workflow, which
// validates it and fetches a preview (or, in smart mode, imports it).
func (i *Importer) SelectFile(path string) tea.Cmd {
	return run(ImportTimeout, func(ctx context.Context) (tea.Msg, error) {
		f, err := ReadFile(path, i.MaxFileSize)
		if err != nil {
			return nil, err
		}
		if err := i.Workflow.SelectFile(ctx, f); err != nil {
			return nil, err
		}
		return StateMsg{Note: Summarize(i.Workflow.Outcome())}, nil
	})
}

// Commit persists the previewed file.
func (i *Importer) Commit() tea.Cmd {
	return run(ImportTimeout, func(ctx context.Context) (tea.Msg, error) {
		if err := i.Workflow.Commit(ctx); err != nil {
			return nil, err
		}
		return StateMsg{Note: Summarize(i.Workflow.Outcome())}, nil
	})
}

// ExportErrors writes the failed rows of the last import to the export
// directory.
func (i *Importer) ExportErrors() tea.Cmd {
	return func() tea.Msg {
		a, err := i.Workflow.ExportErrors()
		if err != nil {
			return ErrMsg{Err: err}
		}
		return i.save(a)
	}
}

// Template downloads the import template for scope into the export
// directory.
func (i *Importer) Template(scope core.TemplateScope) tea.Cmd {
	return run(LedgerTimeout, func(ctx context.Context) (tea.Msg, error) {
		a, err := i.Workflow.Ledger().Template(ctx, scope)
		if err != nil {
			return nil, err
		}
		return i.save(a), nil
	})
}

func (i *Importer) save(a *core.Artifact) tea.Msg {
	path, err := SaveArtifact(i.ExportDir, a)
	if err != nil {
		return ErrMsg{Err: err}
	}
	return DoneMsg("Saved " + path)
}

// Summarize describes an outcome in one line.
func Summarize(o core.Outcome) string {
	switch o := o.(type) {
	case *core.StandardPreview:
		return fmt.Sprintf("Preview: %d of %d rows valid", o.ValidRows, o.TotalRows)
	case *core.UnifiedPreview:
		return fmt.Sprintf("Preview: %d of %d sheets importable, %d activities",
			o.ImportableSheets, o.TotalSheets, o.TotalActivities)
	case *core.SmartImportResult:
		if o.Message != "" {
			return o.Message
		}
		return "Smart import submitted"
	case *core.ImportResult:
		return fmt.Sprintf("Imported %d of %d rows, %d failed", o.Imported, o.TotalRows, o.Failed)
	case *core.UnifiedImportResult:
		s := fmt.Sprintf("Imported %d of %d activities, %d failed", o.Imported, o.TotalActivities, o.Failed)
		if o.TotalCO2eKg != nil {
			s += fmt.Sprintf(" (%.2f kg CO2e)", *o.TotalCO2eKg)
		}
		return s
	default:
		return ""
	}
}
