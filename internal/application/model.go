// Package application is the terminal importer: a bubbletea program that
// drives the import workflow through a menu tree, shows previews and the
// batch history, and asks for confirmation before anything is deleted.
package application

import (
	"fmt"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/handler"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenMenu screen = iota
	screenInput
	screenOutcome
	screenBatches
)

// showScreenMsg switches to a screen.
type showScreenMsg screen

// inputRequestMsg opens the text prompt. submit receives the entered value.
type inputRequestMsg struct {
	label  string
	value  string
	submit func(string) tea.Cmd
}

// modal is an open confirmation dialog.
type modal struct {
	req   ConfirmRequestMsg
	input textinput.Model
}

// Model is the root bubbletea model of the terminal importer.
type Model struct {
	importer  *handler.Importer
	confirmer *Confirmer

	root   *Menu
	menu   *Menu
	cursor int
	screen screen

	input    textinput.Model
	label    string
	onSubmit func(string) tea.Cmd

	modal *modal

	sheetCursor int
	batchCursor int
	batches     []core.ImportBatch
	batchPeriod string

	spinner   spinner.Model
	busy      bool
	busyLabel string

	status    string
	statusErr bool

	width  int
	height int
}

// New creates the model. confirmer must be the one the importer's ledger
// operations are given, so their prompts reach this model.
func New(importer *handler.Importer, confirmer *Confirmer) *Model {
	in := textinput.New()
	in.CharLimit = 512
	in.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := &Model{
		importer:  importer,
		confirmer: confirmer,
		input:     in,
		spinner:   sp,
	}
	m.root = buildMenuTree(m)
	m.menu = m.root
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.confirmer.Listen()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConfirmRequestMsg:
		m.openModal(msg)
		return m, tea.Batch(textinput.Blink, m.confirmer.Listen())

	case inputRequestMsg:
		m.finish("", false)
		m.openInput(msg)
		return m, textinput.Blink

	case showScreenMsg:
		m.finish("", false)
		m.screen = screen(msg)
		m.sheetCursor = 0
		return m, nil

	case handler.WdMsg:
		m.finish(string(msg), false)
		return m, nil

	case handler.DoneMsg:
		m.finish(string(msg), false)
		return m, nil

	case handler.ErrMsg:
		m.finish(describe(msg.Err), true)
		return m, nil

	case handler.StateMsg:
		m.finish(msg.Note, false)
		if _, ok := m.importer.Workflow.Outcome().(*core.UnifiedPreview); ok {
			m.screen = screenOutcome
			m.sheetCursor = 0
		}
		return m, nil

	case handler.BatchesMsg:
		m.finish(fmt.Sprintf("%d batches", len(msg.Batches)), false)
		m.batches = msg.Batches
		m.batchPeriod = msg.PeriodID
		m.batchCursor = clamp(m.batchCursor, len(m.batches))
		m.screen = screenBatches
		return m, nil

	case handler.DetailMsg:
		if msg.Detail == nil {
			m.finish("", false)
			return m, nil
		}
		m.finish(fmt.Sprintf("%d activities", msg.Detail.ActivityCount), false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// start marks the model busy while cmd runs.
func (m *Model) start(label string, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	m.busy = true
	m.busyLabel = label
	m.status = ""
	m.statusErr = false
	return tea.Batch(cmd, m.spinner.Tick)
}

// finish clears the busy state and sets the status line. An empty status
// keeps the previous one.
func (m *Model) finish(status string, isErr bool) {
	m.busy = false
	m.busyLabel = ""
	if status != "" {
		m.status = status
		m.statusErr = isErr
	}
}

func (m *Model) openInput(req inputRequestMsg) {
	m.label = req.label
	m.onSubmit = req.submit
	m.input.Placeholder = req.label
	m.input.SetValue(req.value)
	m.input.CursorEnd()
	m.input.Focus()
	m.screen = screenInput
}

func (m *Model) openModal(req ConfirmRequestMsg) {
	in := textinput.New()
	in.CharLimit = 32
	in.Width = 20
	if req.Prompt.RequireTyped != "" {
		in.Placeholder = req.Prompt.RequireTyped
		in.Focus()
	}
	m.modal = &modal{req: req, input: in}
}

// closeModal answers the open dialog.
func (m *Model) closeModal(c core.Confirmation) {
	if m.modal == nil {
		return
	}
	m.modal.req.Answer(c)
	m.modal = nil
}

/* ----------------------------------------
	KEY HANDLING
---------------------------------------- */

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.closeModal(core.Confirmation{})
		return m, tea.Quit
	}

	// The dialog opens while its operation is still running.
	if m.modal != nil {
		return m.handleModalKeys(msg)
	}
	if m.busy {
		return m, nil
	}

	switch m.screen {
	case screenInput:
		return m.handleInputKeys(msg)
	case screenOutcome:
		return m.handleOutcomeKeys(msg)
	case screenBatches:
		return m.handleBatchKeys(msg)
	default:
		return m.handleMenuKeys(msg)
	}
}

func (m *Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	typed := m.modal.req.Prompt.RequireTyped != ""

	switch msg.String() {
	case "esc":
		m.closeModal(core.Confirmation{})
		return m, nil
	case "enter":
		m.closeModal(core.Confirmation{Confirmed: true, Typed: m.modal.input.Value()})
		return m, nil
	}

	if typed {
		var cmd tea.Cmd
		m.modal.input, cmd = m.modal.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "y", "Y":
		m.closeModal(core.Confirmation{Confirmed: true})
	case "n", "N":
		m.closeModal(core.Confirmation{})
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.screen = screenMenu
		return m, nil

	case "enter":
		value := m.input.Value()
		m.input.Blur()
		m.screen = screenMenu
		submit := m.onSubmit
		m.onSubmit = nil
		if submit == nil {
			return m, nil
		}
		return m, m.start(m.label, submit(value))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}

	case "esc", "backspace", "left", "h":
		if m.menu.Parent != nil {
			m.menu = m.menu.Parent
			m.cursor = 0
		}

	case "enter", "right", "l":
		item := m.menu.Items[m.cursor]
		if item.Submenu != nil {
			m.menu = item.Submenu
			m.cursor = 0
			return m, nil
		}
		if item.Action != nil {
			return m, m.start(item.Label, item.Action())
		}
	}

	return m, nil
}

func (m *Model) handleOutcomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	wf := m.importer.Workflow
	preview, _ := wf.Outcome().(*core.UnifiedPreview)

	switch msg.String() {
	case "esc", "q":
		m.screen = screenMenu
		return m, nil

	case "up", "k":
		if m.sheetCursor > 0 {
			m.sheetCursor--
		}

	case "down", "j":
		if preview != nil && m.sheetCursor < len(preview.Sheets)-1 {
			m.sheetCursor++
		}

	case " ":
		if preview != nil && m.sheetCursor < len(preview.Sheets) {
			if err := wf.ToggleSheet(preview.Sheets[m.sheetCursor].SheetName); err != nil {
				m.finish(describe(err), true)
			}
		}

	case "enter", "e":
		if preview != nil && m.sheetCursor < len(preview.Sheets) {
			if err := wf.ToggleExpanded(preview.Sheets[m.sheetCursor].SheetName); err != nil {
				m.finish(describe(err), true)
			}
		}

	case "c":
		return m, m.start("Committing", m.importer.Commit())

	case "x":
		return m, m.start("Exporting errors", m.importer.ExportErrors())
	}

	return m, nil
}

func (m *Model) handleBatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ledger := m.importer.Workflow.Ledger()

	switch msg.String() {
	case "esc", "q":
		m.screen = screenMenu
		return m, nil

	case "r":
		return m, m.start("Loading batches", m.importer.ListBatches())

	case "up", "k":
		if m.batchCursor > 0 {
			m.batchCursor--
		}
		return m, nil

	case "down", "j":
		if m.batchCursor < len(m.batches)-1 {
			m.batchCursor++
		}
		return m, nil
	}

	if len(m.batches) == 0 {
		return m, nil
	}
	id := m.batches[m.batchCursor].ID

	switch msg.String() {
	case "enter":
		if _, ok := ledger.Detail(id); ok {
			ledger.Collapse(id)
			return m, nil
		}
		return m, m.start("Loading activities", m.importer.ExpandBatch(id))

	case "x":
		return m, m.start("Exporting batch", m.importer.ExportBatch(id))

	case "d":
		return m, m.start("Deleting batch", m.importer.DeleteBatch(id, false, m.confirmer))

	case "D":
		return m, m.start("Deleting batch", m.importer.DeleteBatch(id, true, m.confirmer))
	}

	return m, nil
}

// describe renders err for the status line.
func describe(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	return core.FormatUserError(err)
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
