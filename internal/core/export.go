package core

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Export column layouts. The order is fixed.
var (
	ResultsHeader = []string{
		"Activity Key", "Description", "Quantity", "Unit", "Scope", "Category",
		"Date", "CO2e (kg)", "Factor Value", "Factor Unit", "Factor Source",
	}
	ErrorsHeader = []string{
		"Row", "Sheet", "Activity Key", "Category", "Quantity", "Unit", "Errors",
	}
)

const csvContentType = "text/csv; charset=utf-8"

// ExportResults serializes the activities of an expanded batch to
// import_results_<date>.csv. Free-text columns are always quoted.
func ExportResults(detail *BatchActivities, now time.Time) (*Artifact, error) {
	if detail == nil {
		return nil, ErrDetailNotLoaded
	}

	var b bytes.Buffer
	writeRow(&b, ResultsHeader, nil)
	for _, a := range detail.Activities {
		writeRow(&b, []string{
			a.ActivityKey,
			a.Description,
			formatFloat(a.Quantity),
			a.Unit,
			strconv.Itoa(a.Scope),
			a.CategoryCode,
			a.ActivityDate,
			formatOptFloat(a.CO2eKg),
			formatOptFloat(a.FactorValue),
			deref(a.FactorUnit),
			deref(a.FactorSource),
		}, resultsQuoted)
	}

	return &Artifact{
		FileName:    "import_results_" + now.Format("2006-01-02") + ".csv",
		ContentType: csvContentType,
		Data:        b.Bytes(),
	}, nil
}

// ExportErrors serializes a commit's error list to import_errors_<date>.csv.
// The errors column joins every message of an entry with "; ".
func ExportErrors(errs []ImportError, now time.Time) (*Artifact, error) {
	if len(errs) == 0 {
		return nil, ErrNoErrors
	}

	var b bytes.Buffer
	writeRow(&b, ErrorsHeader, nil)
	for _, e := range errs {
		writeRow(&b, []string{
			strconv.Itoa(e.Row),
			deref(e.Sheet),
			deref(e.ActivityKey),
			deref(e.CategoryCode),
			formatOptFloat(e.Quantity),
			deref(e.Unit),
			e.Errors.Join(),
		}, errorsQuoted)
	}

	return &Artifact{
		FileName:    "import_errors_" + now.Format("2006-01-02") + ".csv",
		ContentType: csvContentType,
		Data:        b.Bytes(),
	}, nil
}

// Column positions that hold free text and are always quoted.
var (
	resultsQuoted = map[int]bool{1: true, 10: true}
	errorsQuoted  = map[int]bool{6: true}
)

func writeRow(b *bytes.Buffer, fields []string, quoted map[int]bool) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		// Identifier columns stay bare unless they would break the row.
		if quoted[i] || strings.ContainsAny(f, ",\"\r\n") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(f)
	}
	b.WriteByte('\n')
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
