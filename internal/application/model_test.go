package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/core/coretest"
	"github.com/JonMunkholm/activity-import/internal/handler"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func newModel(t *testing.T, b *coretest.Backend, mode core.ImportMode) *Model {
	t.Helper()
	shared := core.NewStaticState("p-2024")
	wf, err := coretest.Workflow(b, shared, mode)
	if err != nil {
		t.Fatalf("Workflow() error = %v", err)
	}
	imp := handler.NewImporter(wf, shared, t.TempDir(), 1<<20, 20)
	return New(imp, NewConfirmer())
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// press sends keys in order and returns the command of the last one.
func press(m *Model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(key(k))
	}
	return cmd
}

// settle runs cmd and feeds its messages back into the model until nothing
// is left. Spinner ticks are dropped so the loop ends.
func settle(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil, spinner.TickMsg, tea.QuitMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			settle(m, c)
		}
	default:
		_, next := m.Update(msg)
		settle(m, next)
	}
}

// selectItem moves the cursor to the item with label and presses enter.
func selectItem(t *testing.T, m *Model, label string) tea.Cmd {
	t.Helper()
	for i, item := range m.menu.Items {
		if item.Label == label {
			m.cursor = i
			return press(m, "enter")
		}
	}
	t.Fatalf("menu %q has no item %q", m.menu.Title, label)
	return nil
}

func TestMenuTree_BackLinks(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)

	selectItem(t, m, "Import ->")
	if m.menu.Title != "Import" {
		t.Fatalf("menu = %q, want Import", m.menu.Title)
	}
	selectItem(t, m, "Mode ->")
	if m.menu.Title != "Import Mode" {
		t.Fatalf("menu = %q, want Import Mode", m.menu.Title)
	}

	selectItem(t, m, "Back")
	if m.menu.Title != "Import" {
		t.Errorf("Back went to %q, want Import", m.menu.Title)
	}
	press(m, "esc")
	if m.menu != m.root {
		t.Errorf("esc went to %q, want root", m.menu.Title)
	}
}

func TestSetMode(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)
	selectItem(t, m, "Import ->")
	selectItem(t, m, "Mode ->")

	def, _ := core.LookupMode(core.ModeUnified)
	settle(m, selectItem(t, m, def.Label))

	if got := m.importer.Workflow.Mode(); got != core.ModeUnified {
		t.Errorf("Mode() = %q, want unified", got)
	}
	if m.busy {
		t.Error("model still busy after the action finished")
	}
	if m.status != "Mode: "+def.Label {
		t.Errorf("status = %q", m.status)
	}
}

func TestPromptPeriod(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)
	selectItem(t, m, "Import ->")
	settle(m, selectItem(t, m, "Set reporting period"))

	if m.screen != screenInput {
		t.Fatalf("screen = %v, want input", m.screen)
	}
	if m.input.Value() != "p-2024" {
		t.Errorf("input prefilled with %q, want current period", m.input.Value())
	}

	m.input.SetValue("p-2025")
	settle(m, press(m, "enter"))

	if got := m.importer.Shared.Period(); got != "p-2025" {
		t.Errorf("Period() = %q, want p-2025", got)
	}
	if m.screen != screenMenu {
		t.Errorf("screen = %v, want menu", m.screen)
	}
}

func TestPromptSite(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)
	selectItem(t, m, "Import ->")
	settle(m, selectItem(t, m, "Set site"))

	m.input.SetValue("site-7")
	settle(m, press(m, "enter"))

	if got := m.importer.Workflow.View().SiteID; got != "site-7" {
		t.Errorf("SiteID = %q, want site-7", got)
	}
}

func TestPromptCancel(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)
	selectItem(t, m, "Import ->")
	settle(m, selectItem(t, m, "Set reporting period"))

	m.input.SetValue("p-other")
	press(m, "esc")

	if m.screen != screenMenu {
		t.Errorf("screen = %v, want menu", m.screen)
	}
	if got := m.importer.Shared.Period(); got != "p-2024" {
		t.Errorf("Period() = %q, want unchanged", got)
	}
}

func TestUnifiedPreview_ToggleAndCommit(t *testing.T) {
	b := &coretest.Backend{
		UnifiedPreview: &core.UnifiedPreview{
			TotalSheets:      2,
			ImportableSheets: 2,
			Sheets: []core.SheetPreview{
				{SheetName: "Fuel", IsImportable: true, ActivitiesPreview: make([]core.ActivityCandidate, 2)},
				{SheetName: "Power", IsImportable: true, ActivitiesPreview: make([]core.ActivityCandidate, 3)},
			},
		},
		UnifiedResult: &core.UnifiedImportResult{TotalActivities: 3, Imported: 3, Success: true},
	}
	m := newModel(t, b, core.ModeUnified)

	if err := m.importer.Workflow.SelectFile(context.Background(), core.File{Name: "book.xlsx", Data: []byte("x")}); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	m.Update(handler.StateMsg{Note: "preview"})
	if m.screen != screenOutcome {
		t.Fatalf("screen = %v, want outcome after a unified preview", m.screen)
	}

	// Deselect the first sheet; only Power remains.
	press(m, " ")
	if got := m.importer.Workflow.View().SelectedSheets; len(got) != 1 || got[0] != "Power" {
		t.Fatalf("SelectedSheets = %v, want [Power]", got)
	}

	press(m, "down", "enter")
	if got := m.importer.Workflow.View().ExpandedSheets; len(got) != 1 || got[0] != "Power" {
		t.Errorf("ExpandedSheets = %v, want [Power]", got)
	}
	if !strings.Contains(m.View(), "[x] Power") {
		t.Error("view should mark Power as selected")
	}

	settle(m, press(m, "c"))
	if got := b.LastSheets(); len(got) != 1 || got[0] != "Power" {
		t.Errorf("committed sheets = %v, want [Power]", got)
	}
	if m.status != "Imported 3 of 3 activities, 0 failed" {
		t.Errorf("status = %q", m.status)
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeStandard)
	m.busy = true

	press(m, "down")
	if m.cursor != 0 {
		t.Errorf("cursor moved to %d while busy", m.cursor)
	}

	m.Update(handler.ErrMsg{Err: errors.New("backend down")})
	if m.busy {
		t.Error("ErrMsg should clear busy")
	}
	if !m.statusErr || m.status != "backend down" {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
}

func TestBatches_DeleteConfirmed(t *testing.T) {
	b := &coretest.Backend{
		Batches: []core.ImportBatch{
			{ID: "b1", FileName: "fuel.csv", Status: core.BatchCompleted, UploadedAt: time.Now()},
			{ID: "b2", FileName: "power.csv", Status: core.BatchPartial, UploadedAt: time.Now()},
		},
	}
	m := newModel(t, b, core.ModeStandard)

	settle(m, selectItem(t, m, "Batches"))
	if m.screen != screenBatches || len(m.batches) != 2 {
		t.Fatalf("screen = %v with %d batches, want batch list", m.screen, len(m.batches))
	}

	press(m, "down")
	batch, ok := press(m, "D")().(tea.BatchMsg)
	if !ok {
		t.Fatal("delete should start a command")
	}

	done := make(chan tea.Msg, 1)
	go func() { done <- batch[0]() }()

	req, ok := m.confirmer.Listen()().(ConfirmRequestMsg)
	if !ok {
		t.Fatal("delete should ask for confirmation")
	}
	m.Update(req)
	if m.modal == nil {
		t.Fatal("confirmation dialog not open")
	}
	if !strings.Contains(m.View(), req.Prompt.Title) {
		t.Error("view should show the dialog title")
	}

	press(m, "y")
	if m.modal != nil {
		t.Error("dialog should close after answering")
	}

	msg := <-done
	if msg != handler.DoneMsg("Batch and its activities deleted") {
		t.Fatalf("msg = %#v", msg)
	}
	if !b.LastCascade() {
		t.Error("D should delete the batch's activities")
	}
}

func TestConfirmer_TypedToken(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		typed string
		want  bool
	}{
		{"typed token", []string{"enter"}, "DELETE", true},
		{"wrong token", []string{"enter"}, "delete", false},
		{"cancelled", []string{"esc"}, "DELETE", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, &coretest.Backend{}, core.ModeStandard)
			prompt := core.Prompt{Title: "Delete all", RequireTyped: core.OrganizationWipeToken}

			result := make(chan core.Confirmation, 1)
			go func() {
				c, _ := m.confirmer.Confirm(context.Background(), prompt)
				result <- c
			}()

			m.Update(m.confirmer.Listen()())
			if m.modal == nil {
				t.Fatal("dialog not open")
			}

			// Letters go to the token field, not to the y/n shortcuts.
			m.modal.input.SetValue(tt.typed)
			press(m, tt.keys...)

			if got := (<-result).Satisfies(prompt); got != tt.want {
				t.Errorf("Satisfies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirmer_ContextEnds(t *testing.T) {
	c := NewConfirmer()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.Confirm(ctx, core.Prompt{Title: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Confirm() error = %v, want deadline exceeded", err)
	}
}

func TestConfirmRequest_AnswerNeverBlocks(t *testing.T) {
	req := ConfirmRequestMsg{reply: make(chan core.Confirmation, 1)}
	req.Answer(core.Confirmation{Confirmed: true})
	req.Answer(core.Confirmation{})

	if got := <-req.reply; !got.Confirmed {
		t.Error("first answer should win")
	}
}

func TestView_StatusPanel(t *testing.T) {
	m := newModel(t, &coretest.Backend{}, core.ModeSmart)
	out := m.View()

	def, _ := core.LookupMode(core.ModeSmart)
	for _, want := range []string{def.Label, "p-2024", "Activity Import"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
