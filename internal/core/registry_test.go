package core

import (
	"errors"
	"strings"
	"testing"
)

func TestModes_Registered(t *testing.T) {
	modes := Modes()
	if len(modes) != 3 {
		t.Fatalf("Modes() = %d definitions, want 3", len(modes))
	}
	// Sorted by name.
	want := []ImportMode{ModeSmart, ModeStandard, ModeUnified}
	for i, m := range want {
		if modes[i].Mode != m {
			t.Errorf("Modes()[%d] = %s, want %s", i, modes[i].Mode, m)
		}
	}

	smart, _ := LookupMode(ModeSmart)
	if smart.HasPreview {
		t.Error("smart mode must not have a preview step")
	}
}

func TestRegisterMode_PanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("RegisterMode did not panic on duplicate")
		}
	}()
	RegisterMode(ModeDefinition{Mode: ModeStandard})
}

func TestCheckFile(t *testing.T) {
	data := []byte("x")
	tests := []struct {
		name    string
		mode    ImportMode
		file    File
		wantErr string
	}{
		{"csv standard", ModeStandard, File{Name: "a.csv", Data: data}, ""},
		{"upper-case extension", ModeSmart, File{Name: "A.XLSX", Data: data}, ""},
		{"xls unified", ModeUnified, File{Name: "old.xls", Data: data}, ""},
		{"xls standard", ModeStandard, File{Name: "old.xls", Data: data}, "unsupported file type"},
		{"xls smart", ModeSmart, File{Name: "old.xls", Data: data}, "unsupported file type"},
		{"no extension", ModeUnified, File{Name: "README", Data: data}, "unsupported file type"},
		{"no name", ModeStandard, File{Data: data}, "no file provided"},
		{"empty", ModeStandard, File{Name: "a.csv"}, "empty file"},
		{"too large", ModeStandard, File{Name: "a.csv", Data: []byte("0123456789")}, "file too large"},
		{"unknown mode", "fancy", File{Name: "a.csv", Data: data}, "unknown import mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFile(tt.mode, tt.file, 8)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckFile() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckFile() = %v, want ValidationError containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseImportMode(t *testing.T) {
	if m, err := ParseImportMode(" Unified "); err != nil || m != ModeUnified {
		t.Errorf("ParseImportMode() = %q, %v", m, err)
	}
	if _, err := ParseImportMode("magic"); err == nil {
		t.Error("ParseImportMode accepted unknown mode")
	}
}

func TestDetectFormat(t *testing.T) {
	if ext, ok := DetectFormat("book.XLS"); !ok || ext != ".xls" {
		t.Errorf("DetectFormat(book.XLS) = %q, %v", ext, ok)
	}
	if _, ok := DetectFormat("scan.pdf"); ok {
		t.Error("pdf detected as importable")
	}
}

func TestOutcomeKind(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{&StandardPreview{}, "standard_preview"},
		{&UnifiedPreview{}, "unified_preview"},
		{&SmartImportResult{}, "smart_result"},
		{&ImportResult{}, "import_result"},
		{&UnifiedImportResult{}, "unified_result"},
	}
	for _, tt := range tests {
		if got := OutcomeKind(tt.o); got != tt.want {
			t.Errorf("OutcomeKind(%T) = %q, want %q", tt.o, got, tt.want)
		}
	}
}
