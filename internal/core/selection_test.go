package core

import (
	"reflect"
	"testing"
)

func TestSelection_SeedSelectsImportableOnly(t *testing.T) {
	p := &UnifiedPreview{Sheets: []SheetPreview{
		{SheetName: "Fuel", IsImportable: true, ActivitiesPreview: activities(3)},
		{SheetName: "Notes", IsImportable: false, ActivitiesPreview: activities(5)},
		{SheetName: "Power", IsImportable: true, ActivitiesPreview: activities(1)},
	}}

	s := NewSelection()
	s.Seed(p)

	if got := s.Selected(); !reflect.DeepEqual(got, []string{"Fuel", "Power"}) {
		t.Errorf("Selected() = %v", got)
	}
	if s.Selectable("Notes") {
		t.Error("non-importable sheet is selectable")
	}
	if got := s.ActivitiesToImport(p); got != 4 {
		t.Errorf("ActivitiesToImport() = %d, want 4", got)
	}
}

func TestSelection_Toggle(t *testing.T) {
	p := &UnifiedPreview{Sheets: []SheetPreview{
		{SheetName: "Fuel", IsImportable: true, ActivitiesPreview: activities(3)},
		{SheetName: "Notes"},
	}}
	s := NewSelection()
	s.Seed(p)

	if !s.Toggle("Fuel") || s.IsSelected("Fuel") {
		t.Fatal("Toggle did not deselect Fuel")
	}
	if !s.Empty() || s.ActivitiesToImport(p) != 0 {
		t.Errorf("Len() = %d after deselecting everything", s.Len())
	}
	if s.Toggle("Notes") || s.IsSelected("Notes") {
		t.Error("non-importable sheet was toggled")
	}
	if s.Toggle("Missing") {
		t.Error("unknown sheet was toggled")
	}
	if !s.Toggle("Fuel") || !s.IsSelected("Fuel") {
		t.Error("Toggle did not reselect Fuel")
	}
}

func TestSelection_ExpansionIsIndependent(t *testing.T) {
	p := &UnifiedPreview{Sheets: []SheetPreview{{SheetName: "Fuel", IsImportable: true}}}
	s := NewSelection()
	s.Seed(p)

	s.ToggleExpanded("Fuel")
	s.Toggle("Fuel")
	if !s.IsExpanded("Fuel") {
		t.Error("deselecting collapsed the sheet")
	}
	s.ToggleExpanded("Fuel")
	if s.IsExpanded("Fuel") || s.IsSelected("Fuel") {
		t.Error("collapsing changed the selection")
	}
}

func TestSelection_SeedReplacesPreviousState(t *testing.T) {
	s := NewSelection()
	s.Seed(&UnifiedPreview{Sheets: []SheetPreview{{SheetName: "Old", IsImportable: true}}})
	s.ToggleExpanded("Old")

	s.Seed(&UnifiedPreview{Sheets: []SheetPreview{{SheetName: "New", IsImportable: true}}})
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"New"}) {
		t.Errorf("Selected() = %v", got)
	}
	if len(s.Expanded()) != 0 {
		t.Errorf("Expanded() = %v, want none", s.Expanded())
	}

	s.Seed(nil)
	if !s.Empty() {
		t.Error("Seed(nil) left a selection")
	}
}
