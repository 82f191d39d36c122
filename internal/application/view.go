package application

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/handler"
	"github.com/charmbracelet/lipgloss"
)

// maxListed caps preview rows, errors and activities shown inline; the CSV
// exports carry the full lists.
const maxListed = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("40"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.statusPanel())
	b.WriteString("\n\n")

	switch m.screen {
	case screenInput:
		b.WriteString(titleStyle.Render(m.label))
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("enter: submit • esc: cancel"))
	case screenOutcome:
		b.WriteString(m.outcomeView())
	case screenBatches:
		b.WriteString(m.batchesView())
	default:
		b.WriteString(m.menuView())
	}

	b.WriteString("\n\n")
	b.WriteString(m.statusLine())

	if m.modal != nil {
		b.WriteString("\n\n")
		b.WriteString(m.modalView())
	}

	return b.String()
}

func (m *Model) statusPanel() string {
	v := m.importer.Workflow.View()

	mode := string(v.Mode)
	if def, ok := core.LookupMode(v.Mode); ok {
		mode = def.Label
	}
	period := m.importer.Shared.Period()
	if period == "" {
		period = "(none)"
	}
	site := v.SiteID
	if site == "" {
		site = "(none)"
	}

	lines := []string{
		fmt.Sprintf("Mode: %s   Period: %s   Site: %s", mode, period, site),
		fmt.Sprintf("State: %s", v.State),
	}
	if v.FileName != "" {
		lines[1] += "   File: " + v.FileName
	}
	if summary := handler.Summarize(v.Outcome); summary != "" {
		lines = append(lines, summary)
	}
	if v.Error != "" {
		lines = append(lines, errorStyle.Render(v.Error))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) statusLine() string {
	switch {
	case m.busy:
		return m.spinner.View() + " " + m.busyLabel + "..."
	case m.status == "":
		return ""
	case m.statusErr:
		return errorStyle.Render(m.status)
	default:
		return successStyle.Render(m.status)
	}
}

func (m *Model) menuView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.menu.Title))
	b.WriteString("\n")

	for i, item := range m.menu.Items {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("↑/↓: move • enter: select • esc: back • q: quit"))
	return b.String()
}

func (m *Model) modalView() string {
	p := m.modal.req.Prompt

	var b strings.Builder
	b.WriteString(errorStyle.Bold(true).Render(p.Title))
	b.WriteString("\n\n")
	b.WriteString(p.Message)
	b.WriteString("\n\n")
	if p.RequireTyped != "" {
		b.WriteString(fmt.Sprintf("Type %s to confirm:\n", p.RequireTyped))
		b.WriteString(m.modal.input.View())
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("enter: confirm • esc: cancel"))
	} else {
		b.WriteString(mutedStyle.Render("y: confirm • n/esc: cancel"))
	}
	return modalStyle.Render(b.String())
}

/* ----------------------------------------
	OUTCOME
---------------------------------------- */

func (m *Model) outcomeView() string {
	v := m.importer.Workflow.View()

	var b strings.Builder
	switch o := v.Outcome.(type) {
	case *core.StandardPreview:
		b.WriteString(titleStyle.Render("Preview"))
		b.WriteString("\n")
		writeStandardPreview(&b, o)
	case *core.UnifiedPreview:
		b.WriteString(titleStyle.Render("Workbook Preview"))
		b.WriteString("\n")
		m.writeUnifiedPreview(&b, o, v)
	case *core.SmartImportResult:
		b.WriteString(titleStyle.Render("Smart Import"))
		b.WriteString("\n")
		writeSmartResult(&b, o)
	case *core.ImportResult:
		b.WriteString(titleStyle.Render("Import Result"))
		b.WriteString("\n")
		b.WriteString(handler.Summarize(o) + "\n")
		writeImportErrors(&b, o.Errors)
	case *core.UnifiedImportResult:
		b.WriteString(titleStyle.Render("Import Result"))
		b.WriteString("\n")
		b.WriteString(handler.Summarize(o) + "\n")
		for _, scope := range []string{"1", "2", "3"} {
			if kg, ok := o.ByScope[scope]; ok {
				b.WriteString(fmt.Sprintf("  Scope %s: %.2f kg CO2e\n", scope, kg))
			}
		}
		writeImportErrors(&b, o.Errors)
	default:
		b.WriteString(mutedStyle.Render("Nothing to review yet. Select a file first."))
	}

	b.WriteString("\n")
	help := "esc: back"
	if v.CanCommit {
		help += " • c: commit"
	}
	if _, ok := v.Outcome.(*core.UnifiedPreview); ok {
		help += " • space: toggle sheet • enter: details"
	}
	if len(m.importer.Workflow.ImportErrors()) > 0 {
		help += " • x: export errors"
	}
	b.WriteString(mutedStyle.Render(help))
	return b.String()
}

func writeStandardPreview(b *strings.Builder, p *core.StandardPreview) {
	b.WriteString(fmt.Sprintf("%d rows: %d valid, %d invalid\n", p.TotalRows, p.ValidRows, p.InvalidRows))
	if len(p.ColumnsMissing) > 0 {
		b.WriteString(errorStyle.Render("Missing columns: "+strings.Join(p.ColumnsMissing, ", ")) + "\n")
	}
	b.WriteString("\n")

	for i, row := range p.Rows {
		if i == maxListed {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d more rows", len(p.Rows)-maxListed)) + "\n")
			break
		}
		mark := successStyle.Render("ok ")
		if !row.IsValid {
			mark = errorStyle.Render("err")
		}
		line := fmt.Sprintf("  %s row %-4d %s", mark, row.RowNumber, row.ActivityKey)
		if row.Quantity != nil {
			line += fmt.Sprintf("  %g", *row.Quantity)
			if row.Unit != nil {
				line += " " + *row.Unit
			}
		}
		if len(row.Errors) > 0 {
			line += "  " + errorStyle.Render(strings.Join(row.Errors, "; "))
		}
		b.WriteString(line + "\n")
	}
}

func (m *Model) writeUnifiedPreview(b *strings.Builder, p *core.UnifiedPreview, v core.View) {
	selected := toSet(v.SelectedSheets)
	expanded := toSet(v.ExpandedSheets)

	b.WriteString(fmt.Sprintf("%d of %d sheets importable • %d activities selected\n\n",
		p.ImportableSheets, p.TotalSheets, v.ActivitiesToImport))

	for i, s := range p.Sheets {
		box := "[ ]"
		switch {
		case !s.IsImportable:
			box = "[-]"
		case selected[s.SheetName]:
			box = "[x]"
		}

		line := fmt.Sprintf("%s %s  (%d rows, %d activities)", box, s.SheetName, s.TotalRows, len(s.ActivitiesPreview))
		if s.DetectedScope != nil {
			line += fmt.Sprintf("  scope %d", *s.DetectedScope)
		}
		if !s.IsImportable && s.SkipReason != nil {
			line += "  " + mutedStyle.Render(*s.SkipReason)
		}
		if i == m.sheetCursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")

		if expanded[s.SheetName] {
			writeSheetDetail(b, s)
		}
	}

	for _, w := range p.Warnings {
		b.WriteString(mutedStyle.Render("warning: "+w) + "\n")
	}
}

func writeSheetDetail(b *strings.Builder, s core.SheetPreview) {
	for _, cm := range s.ColumnMappings {
		target := cm.ColumnType
		if cm.ActivityKey != nil {
			target += " → " + *cm.ActivityKey
		}
		b.WriteString(mutedStyle.Render(fmt.Sprintf("      %s: %s (%.0f%%)", cm.OriginalHeader, target, cm.Confidence*100)) + "\n")
	}
	for i, a := range s.ActivitiesPreview {
		if i == maxListed {
			break
		}
		b.WriteString(fmt.Sprintf("      %s  %g %s\n", a.ActivityKey, a.Quantity, a.Unit))
	}
	for _, w := range s.Warnings {
		b.WriteString(mutedStyle.Render("      warning: "+w) + "\n")
	}
}

func writeSmartResult(b *strings.Builder, r *core.SmartImportResult) {
	b.WriteString(handler.Summarize(r) + "\n")
	mp := r.AIMappingPreview
	if mp.DetectedStructure != "" {
		b.WriteString("Detected structure: " + mp.DetectedStructure + "\n")
	}
	if len(mp.DetectedColumns) > 0 {
		b.WriteString("Columns: " + strings.Join(mp.DetectedColumns, ", ") + "\n")
	}
	if mp.DateColumn != nil {
		b.WriteString("Date column: " + *mp.DateColumn + "\n")
	}
	for _, w := range mp.Warnings {
		b.WriteString(mutedStyle.Render("warning: "+w) + "\n")
	}
}

func writeImportErrors(b *strings.Builder, errs []core.ImportError) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%d rows failed:", len(errs))) + "\n")
	for i, e := range errs {
		if i == maxListed {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d more", len(errs)-maxListed)) + "\n")
			break
		}
		where := fmt.Sprintf("row %d", e.Row)
		if e.Sheet != nil {
			where = *e.Sheet + " " + where
		}
		b.WriteString(fmt.Sprintf("  %s: %s\n", where, e.Errors.Join()))
	}
}

/* ----------------------------------------
	BATCHES
---------------------------------------- */

func (m *Model) batchesView() string {
	var b strings.Builder

	title := "Import Batches"
	if m.batchPeriod != "" {
		title += " • period " + m.batchPeriod
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if len(m.batches) == 0 {
		b.WriteString(mutedStyle.Render("No imports yet."))
		b.WriteString("\n")
	}

	ledger := m.importer.Workflow.Ledger()
	for i, batch := range m.batches {
		line := fmt.Sprintf("%s  %-30s %-10s %d/%d rows",
			batch.UploadedAt.Local().Format("2006-01-02 15:04"),
			batch.FileName, batch.Status, batch.SuccessfulRows, batch.TotalRows)
		if batch.FailedRows > 0 {
			line += errorStyle.Render(fmt.Sprintf("  %d failed", batch.FailedRows))
		}
		if i == m.batchCursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")

		if detail, ok := ledger.Detail(batch.ID); ok {
			writeActivities(&b, detail)
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter: expand/collapse • x: export • d: delete record • D: delete with activities • r: refresh • esc: back"))
	return b.String()
}

func writeActivities(b *strings.Builder, detail *core.BatchActivities) {
	for i, a := range detail.Activities {
		if i == maxListed {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("      ... %d more", len(detail.Activities)-maxListed)) + "\n")
			break
		}
		line := fmt.Sprintf("      %s  %g %s  scope %d", a.ActivityKey, a.Quantity, a.Unit, a.Scope)
		if a.CO2eKg != nil {
			line += fmt.Sprintf("  %.2f kg CO2e", *a.CO2eKg)
		}
		b.WriteString(line + "\n")
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
