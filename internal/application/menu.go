package application

import (
	"strings"

	"github.com/JonMunkholm/activity-import/internal/admin"
	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

func buildMenuTree(m *Model) *Menu {
	root := &Menu{
		Title: "Activity Import",
		Items: []MenuItem{
			{Label: "Import ->", Submenu: loadImport(m)},
			{Label: "Batches", Action: m.importer.ListBatches},
			{Label: "Templates ->", Submenu: loadTemplates(m)},
			{Label: "Danger zone ->", Submenu: loadDangerZone(m)},
			{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
		},
	}

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadImport(m *Model) *Menu {
	return &Menu{
		Title: "Import",
		Items: []MenuItem{
			{Label: "Mode ->", Submenu: loadModes(m)},
			{Label: "Set reporting period", Action: m.promptPeriod},
			{Label: "Set site", Action: m.promptSite},
			{Label: "Select file", Action: m.promptFile},
			{Label: "Review preview / result", Action: show(screenOutcome)},
			{Label: "Commit", Action: m.importer.Commit},
			{Label: "Export errors", Action: m.importer.ExportErrors},
			{Label: "Reset", Action: m.reset},
			{Label: "Back"},
		},
	}
}

func loadModes(m *Model) *Menu {
	items := make([]MenuItem, 0, len(core.Modes())+1)
	for _, def := range core.Modes() {
		items = append(items, MenuItem{Label: def.Label, Action: m.setMode(def)})
	}
	items = append(items, MenuItem{Label: "Back"})

	return &Menu{Title: "Import Mode", Items: items}
}

func loadTemplates(m *Model) *Menu {
	template := func(scope core.TemplateScope) func() tea.Cmd {
		return func() tea.Cmd { return m.importer.Template(scope) }
	}

	return &Menu{
		Title: "Templates",
		Items: []MenuItem{
			{Label: "Download Scope 1 & 2 template", Action: template(core.TemplateScope12)},
			{Label: "Download Scope 3 template", Action: template(core.TemplateScope3)},
			{Label: "Back"},
		},
	}
}

func loadDangerZone(m *Model) *Menu {
	wipe := &admin.Wipe{
		Ledger:    m.importer.Workflow.Ledger(),
		Confirmer: m.confirmer,
		Period:    m.importer.Shared.Period,
	}

	return &Menu{
		Title: "Danger Zone",
		Items: []MenuItem{
			{Label: "Delete period activities", Action: wipe.WipePeriod},
			{Label: "Delete all organization activities", Action: wipe.WipeOrganization},
			{Label: "Back"},
		},
	}
}

/* ----------------------------------------
	ACTIONS
---------------------------------------- */

func show(s screen) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return showScreenMsg(s) }
	}
}

func (m *Model) setMode(def core.ModeDefinition) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			if err := m.importer.Workflow.SetMode(def.Mode); err != nil {
				return handler.ErrMsg{Err: err}
			}
			return handler.StateMsg{Note: "Mode: " + def.Label}
		}
	}
}

func (m *Model) reset() tea.Cmd {
	return func() tea.Msg {
		m.importer.Workflow.Reset()
		return handler.StateMsg{Note: "Import reset"}
	}
}

func (m *Model) promptPeriod() tea.Cmd {
	return prompt("Reporting period ID", m.importer.Shared.Period(), func(v string) tea.Cmd {
		return func() tea.Msg {
			m.importer.Shared.SetPeriod(strings.TrimSpace(v))
			return handler.StateMsg{Note: "Period: " + m.importer.Shared.Period()}
		}
	})
}

func (m *Model) promptSite() tea.Cmd {
	return prompt("Site ID (empty for none)", m.importer.Workflow.View().SiteID, func(v string) tea.Cmd {
		return func() tea.Msg {
			id := strings.TrimSpace(v)
			if id != "" {
				addSite(m.importer.Shared, id)
			}
			if err := m.importer.Workflow.SetSite(id); err != nil {
				return handler.ErrMsg{Err: err}
			}
			if id == "" {
				return handler.StateMsg{Note: "Site cleared"}
			}
			return handler.StateMsg{Note: "Site: " + id}
		}
	})
}

func (m *Model) promptFile() tea.Cmd {
	return prompt("Spreadsheet path", "", m.importer.SelectFile)
}

func prompt(label, value string, submit func(string) tea.Cmd) tea.Cmd {
	return func() tea.Msg {
		return inputRequestMsg{label: label, value: value, submit: submit}
	}
}

// addSite registers id with the shared state so the workflow accepts it.
// The terminal has no site directory; any id the user types is offered.
func addSite(shared *core.StaticState, id string) {
	sites := shared.Sites()
	for _, s := range sites {
		if s.ID == id {
			return
		}
	}
	shared.SetSites(append(sites, core.Site{ID: id, Name: id}))
}
