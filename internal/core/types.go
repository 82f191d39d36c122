// Package core provides the activity-data import workflow.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ImportMode selects one of the three ingestion strategies.
type ImportMode string

const (
	ModeStandard ImportMode = "standard" // deterministic template matching
	ModeSmart    ImportMode = "smart"    // AI-assisted single table, analyze and commit in one request
	ModeUnified  ImportMode = "unified"  // AI-assisted multi-sheet mapping
)

// ParseImportMode converts a string to an ImportMode.
func ParseImportMode(s string) (ImportMode, error) {
	m := ImportMode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := LookupMode(m); !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("unknown import mode %q", s)}
	}
	return m, nil
}

// File is a candidate spreadsheet held in memory so a failed commit can be
// retried without re-uploading.
type File struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// PreviewRow is one row of a standard dry-run analysis.
// Validity is decided by the backend; the client never re-validates.
type PreviewRow struct {
	RowNumber   int      `json:"row_number"`
	IsValid     bool     `json:"is_valid"`
	Scope       *int     `json:"scope,omitempty"`
	ActivityKey string   `json:"activity_key"`
	Description *string  `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
}

// StandardPreview is the dry-run result of a template-matched import.
type StandardPreview struct {
	TotalRows      int          `json:"total_rows"`
	ValidRows      int          `json:"valid_rows"`
	InvalidRows    int          `json:"invalid_rows"`
	ColumnsFound   []string     `json:"columns_found"`
	ColumnsMissing []string     `json:"columns_missing"`
	Rows           []PreviewRow `json:"rows"`
}

// ColumnMapping describes how one detected header maps to the activity model.
type ColumnMapping struct {
	OriginalHeader string  `json:"original_header"`
	ColumnType     string  `json:"column_type"`
	ActivityKey    *string `json:"activity_key,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// ActivityCandidate is one previewed activity detected in a sheet.
type ActivityCandidate struct {
	ActivityKey string  `json:"activity_key"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Confidence  float64 `json:"confidence"`
}

// SheetPreview is the analysis of a single workbook tab.
type SheetPreview struct {
	SheetName         string              `json:"sheet_name"`
	IsImportable      bool                `json:"is_importable"`
	SkipReason        *string             `json:"skip_reason,omitempty"`
	DetectedScope     *int                `json:"detected_scope,omitempty"`
	DetectedCategory  *string             `json:"detected_category,omitempty"`
	TotalRows         int                 `json:"total_rows"`
	HeaderRow         int                 `json:"header_row"` // 0-indexed
	Columns           []string            `json:"columns"`
	ColumnMappings    []ColumnMapping     `json:"column_mappings"`
	ActivitiesPreview []ActivityCandidate `json:"activities_preview"`
	Warnings          []string            `json:"warnings"`
}

// UnifiedPreview is the dry-run result of a multi-sheet import.
type UnifiedPreview struct {
	FileType         string         `json:"file_type"`
	TotalSheets      int            `json:"total_sheets"`
	ImportableSheets int            `json:"importable_sheets"`
	TotalActivities  int            `json:"total_activities"`
	Warnings         []string       `json:"warnings"`
	Sheets           []SheetPreview `json:"sheets"`
}

// Sheet returns the named sheet, or false if it is not part of the preview.
func (p *UnifiedPreview) Sheet(name string) (SheetPreview, bool) {
	for _, s := range p.Sheets {
		if s.SheetName == name {
			return s, true
		}
	}
	return SheetPreview{}, false
}

// AIMappingPreview carries the structure diagnostics of a smart import.
type AIMappingPreview struct {
	DetectedStructure string   `json:"detected_structure"`
	DetectedColumns   []string `json:"detected_columns"`
	DateColumn        *string  `json:"date_column,omitempty"`
	Warnings          []string `json:"warnings"`
}

// SmartImportResult acknowledges a smart import. The backend may process it
// asynchronously, so there is no per-row tally.
type SmartImportResult struct {
	Message          string           `json:"message"`
	AIMappingPreview AIMappingPreview `json:"ai_mapping_preview"`
}

// Messages is a list of error messages that decodes from either a JSON
// string or a JSON array of strings.
type Messages []string

// UnmarshalJSON accepts "msg" as well as ["a", "b"].
func (m *Messages) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = Messages{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("errors: expected string or string array: %w", err)
	}
	*m = many
	return nil
}

// Join returns all messages joined with "; ".
func (m Messages) Join() string {
	return strings.Join(m, "; ")
}

// ImportError describes one row that failed to import.
type ImportError struct {
	Row          int      `json:"row"`
	Sheet        *string  `json:"sheet,omitempty"`
	ActivityKey  *string  `json:"activity_key,omitempty"`
	CategoryCode *string  `json:"category_code,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	Errors       Messages `json:"errors"`
}

// ImportResult is the terminal outcome of a standard import.
// Partial failure (Imported > 0 and Failed > 0) is a normal result.
type ImportResult struct {
	TotalRows     int           `json:"total_rows"`
	Imported      int           `json:"imported"`
	Failed        int           `json:"failed"`
	ImportBatchID *string       `json:"import_batch_id,omitempty"`
	Errors        []ImportError `json:"errors"`
	Success       bool          `json:"success"`
}

// ScopeTotals maps a GHG scope label ("1", "2", "3") to kg CO2e.
type ScopeTotals map[string]float64

// UnifiedImportResult is the terminal outcome of a unified import.
type UnifiedImportResult struct {
	TotalActivities int           `json:"total_activities"`
	Imported        int           `json:"imported"`
	Failed          int           `json:"failed"`
	ImportBatchID   *string       `json:"import_batch_id,omitempty"`
	Errors          []ImportError `json:"errors"`
	ByScope         ScopeTotals   `json:"by_scope,omitempty"`
	TotalCO2eKg     *float64      `json:"total_co2e_kg,omitempty"`
	Success         bool          `json:"success"`
}

// UnifiedImportRequest is the commit payload of a unified import.
// Sheets carries the user's selection; the backend imports only those sheets.
type UnifiedImportRequest struct {
	PeriodID string
	File     File
	SiteID   string
	Sheets   []string
}

// BatchStatus is the server-driven lifecycle state of an import batch.
// The client observes it and never sets it.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether the backend has finished with the batch.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchCompleted, BatchPartial, BatchFailed:
		return true
	default:
		return false
	}
}

// ImportBatch is one persisted ledger entry.
type ImportBatch struct {
	ID             string      `json:"id"`
	FileName       string      `json:"file_name"`
	UploadedAt     time.Time   `json:"uploaded_at"`
	Status         BatchStatus `json:"status"`
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
}

// BatchActivity is the materialized emission detail of one imported row.
type BatchActivity struct {
	ID           string   `json:"id"`
	ActivityKey  string   `json:"activity_key"`
	Description  string   `json:"description"`
	Quantity     float64  `json:"quantity"`
	Unit         string   `json:"unit"`
	Scope        int      `json:"scope"`
	CategoryCode string   `json:"category_code"`
	ActivityDate string   `json:"activity_date,omitempty"`
	CO2eKg       *float64 `json:"co2e_kg,omitempty"`
	FactorValue  *float64 `json:"factor_value,omitempty"`
	FactorUnit   *string  `json:"factor_unit,omitempty"`
	FactorSource *string  `json:"factor_source,omitempty"`
}

// BatchActivities is the response of a batch detail fetch.
type BatchActivities struct {
	BatchID       string          `json:"batch_id,omitempty"`
	ActivityCount int             `json:"activity_count"`
	Activities    []BatchActivity `json:"activities"`
}

// DeletionSummary reports what a bulk delete removed.
type DeletionSummary struct {
	DeletedActivities int `json:"deleted_activities"`
	DeletedEmissions  int `json:"deleted_emissions"`
}

// TemplateScope selects which import template to download.
type TemplateScope string

const (
	TemplateScope12 TemplateScope = "1-2"
	TemplateScope3  TemplateScope = "3"
)

// Valid reports whether the scope is one the backend serves.
func (s TemplateScope) Valid() bool {
	return s == TemplateScope12 || s == TemplateScope3
}

// Artifact is a downloadable document produced locally or by the backend.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Site is an organizational site activities can be attributed to.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
