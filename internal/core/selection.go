package core

import "sort"

// Selection tracks, for a unified preview, which sheets the user opted into
// importing and which are expanded for inspection. The two sets are
// independent.
//
// Selection is not safe for concurrent use; the Workflow guards it.
type Selection struct {
	selectable map[string]bool // sheets importable at seed time
	selected   map[string]bool
	expanded   map[string]bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	s := &Selection{}
	s.Clear()
	return s
}

// Seed initializes the selection to exactly the importable sheets of p.
// Expansion state is cleared.
func (s *Selection) Seed(p *UnifiedPreview) {
	s.Clear()
	if p == nil {
		return
	}
	for _, sheet := range p.Sheets {
		if sheet.IsImportable {
			s.selectable[sheet.SheetName] = true
			s.selected[sheet.SheetName] = true
		}
	}
}

// Clear empties both sets. Only file replacement and reset call this.
func (s *Selection) Clear() {
	s.selectable = make(map[string]bool)
	s.selected = make(map[string]bool)
	s.expanded = make(map[string]bool)
}

// Toggle flips the selection of a sheet. Sheets that were not importable at
// seed time cannot be selected; Toggle reports false for them and changes
// nothing.
func (s *Selection) Toggle(name string) bool {
	if !s.selectable[name] {
		return false
	}
	if s.selected[name] {
		delete(s.selected, name)
	} else {
		s.selected[name] = true
	}
	return true
}

// ToggleExpanded flips whether a sheet is expanded for inspection.
func (s *Selection) ToggleExpanded(name string) {
	if s.expanded[name] {
		delete(s.expanded, name)
	} else {
		s.expanded[name] = true
	}
}

// IsSelected reports whether a sheet is selected for import.
func (s *Selection) IsSelected(name string) bool { return s.selected[name] }

// IsExpanded reports whether a sheet is expanded.
func (s *Selection) IsExpanded(name string) bool { return s.expanded[name] }

// Selectable reports whether the sheet can be toggled.
func (s *Selection) Selectable(name string) bool { return s.selectable[name] }

// Len returns the number of selected sheets.
func (s *Selection) Len() int { return len(s.selected) }

// Empty reports whether nothing is selected. Commit is disabled when true.
func (s *Selection) Empty() bool { return len(s.selected) == 0 }

// Selected returns the selected sheet names in sorted order.
func (s *Selection) Selected() []string { return sortedKeys(s.selected) }

// Expanded returns the expanded sheet names in sorted order.
func (s *Selection) Expanded() []string { return sortedKeys(s.expanded) }

// ActivitiesToImport estimates how many activities the selection covers: the
// number of previewed activities over selected, importable sheets. The
// server's final counts may differ.
func (s *Selection) ActivitiesToImport(p *UnifiedPreview) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, sheet := range p.Sheets {
		if sheet.IsImportable && s.selected[sheet.SheetName] {
			n += len(sheet.ActivitiesPreview)
		}
	}
	return n
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
