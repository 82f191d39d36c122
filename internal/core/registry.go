package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ModeDefinition describes how one import mode negotiates with the backend.
type ModeDefinition struct {
	Mode       ImportMode
	Label      string
	Extensions []string // accepted file extensions, lowercase with leading dot
	HasPreview bool     // false when analysis and commit are a single request

	// Fallback messages when a failure carries no message of its own.
	PreviewFallback string
	CommitFallback  string
}

// Accepts reports whether fileName has one of the mode's extensions.
// The comparison is case-insensitive.
func (d ModeDefinition) Accepts(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range d.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var (
	modes   = make(map[ImportMode]ModeDefinition)
	modesMu sync.RWMutex
)

func init() {
	RegisterMode(ModeDefinition{
		Mode:            ModeStandard,
		Label:           "Standard template",
		Extensions:      []string{".csv", ".xlsx"},
		HasPreview:      true,
		PreviewFallback: "Failed to preview file",
		CommitFallback:  "Import failed",
	})
	RegisterMode(ModeDefinition{
		Mode:            ModeSmart,
		Label:           "Smart import (AI mapping)",
		Extensions:      []string{".csv", ".xlsx"},
		HasPreview:      false,
		PreviewFallback: "Smart import failed",
		CommitFallback:  "Smart import failed",
	})
	RegisterMode(ModeDefinition{
		Mode:            ModeUnified,
		Label:           "Multi-sheet workbook",
		Extensions:      []string{".csv", ".xlsx", ".xls"},
		HasPreview:      true,
		PreviewFallback: "Failed to analyze workbook",
		CommitFallback:  "Unified import failed",
	})
}

// RegisterMode adds a mode definition to the registry.
// Panics if the mode is already registered.
func RegisterMode(def ModeDefinition) {
	modesMu.Lock()
	defer modesMu.Unlock()

	if _, exists := modes[def.Mode]; exists {
		panic(fmt.Sprintf("import mode already registered: %s", def.Mode))
	}
	modes[def.Mode] = def
}

// LookupMode returns the definition of a mode.
func LookupMode(m ImportMode) (ModeDefinition, bool) {
	modesMu.RLock()
	defer modesMu.RUnlock()

	def, ok := modes[m]
	return def, ok
}

// Modes returns all registered definitions sorted by mode name.
func Modes() []ModeDefinition {
	modesMu.RLock()
	defer modesMu.RUnlock()

	result := make([]ModeDefinition, 0, len(modes))
	for _, def := range modes {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Mode < result[j].Mode
	})
	return result
}

// DetectFormat returns the lowercase extension of fileName and whether any
// registered mode accepts it.
func DetectFormat(fileName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, def := range Modes() {
		if def.Accepts(fileName) {
			return ext, true
		}
	}
	return ext, false
}

// CheckFile validates a candidate file for a mode before any request is made.
// maxSize <= 0 disables the size check.
func CheckFile(m ImportMode, f File, maxSize int64) error {
	def, ok := LookupMode(m)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("unknown import mode %q", m)}
	}
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Reason: "no file provided"}
	}
	if !def.Accepts(f.Name) {
		return &ValidationError{Reason: fmt.Sprintf("unsupported file type %q: %s mode accepts %s",
			filepath.Ext(f.Name), m, strings.Join(def.Extensions, ", "))}
	}
	if f.Size() == 0 {
		return &ValidationError{Reason: "empty file"}
	}
	if maxSize > 0 && f.Size() > maxSize {
		return &ValidationError{Reason: fmt.Sprintf("file too large: %d bytes exceeds limit of %d", f.Size(), maxSize)}
	}
	return nil
}
