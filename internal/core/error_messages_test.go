package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// backendErr mimics an API error carrying the service's own message.
type backendErr struct{ msg string }

func (e backendErr) Error() string       { return "backend: " + e.msg }
func (e backendErr) UserMessage() string { return e.msg }

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unsupported extension",
			err:         CheckFile(ModeStandard, File{Name: "report.pdf", Data: []byte("x")}, 0),
			wantCode:    "VAL001",
			wantMessage: "This file type is not supported for the selected import mode",
		},
		{
			name:        "file too large",
			err:         CheckFile(ModeStandard, File{Name: "a.csv", Data: []byte("abcdef")}, 3),
			wantCode:    "VAL002",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "missing period",
			err:         &PreconditionError{Reason: "no reporting period selected"},
			wantCode:    "PRE001",
			wantMessage: "No reporting period is selected",
		},
		{
			name:        "busy workflow",
			err:         fmt.Errorf("select file: %w", ErrBusy),
			wantCode:    "UPL001",
			wantMessage: "A request is already in progress",
		},
		{
			name:        "gate exhausted inside commit",
			err:         &CommitError{Mode: ModeStandard, Err: ErrTooManyRequests},
			wantCode:    "UPL002",
			wantMessage: "The import service is busy",
		},
		{
			name:        "period conflict",
			err:         &ConflictError{Captured: "p1", Current: "p2"},
			wantCode:    "CNF001",
			wantMessage: "The reporting period changed after the preview",
		},
		{
			name:        "declined dialog",
			err:         ErrNotConfirmed,
			wantCode:    "CNF002",
			wantMessage: "The operation was not confirmed",
		},
		{
			name:        "commit rejection surfaces backend detail",
			err:         &CommitError{Mode: ModeUnified, Err: backendErr{"Period is locked"}},
			wantCode:    "IMP001",
			wantMessage: "Period is locked",
		},
		{
			name:        "analysis rejection surfaces backend detail",
			err:         &AnalysisError{Mode: ModeStandard, Err: backendErr{"Missing required column: quantity"}},
			wantCode:    "ANL001",
			wantMessage: "Missing required column: quantity",
		},
		{
			name:        "ledger failure",
			err:         &LedgerError{Op: "delete", Err: backendErr{"Batch not found"}},
			wantCode:    "LED001",
			wantMessage: "Batch not found",
		},
		{
			name:        "backend text mentioning timeout stays verbatim",
			err:         &AnalysisError{Mode: ModeUnified, Err: backendErr{"AI column mapping timeout: sheet 'Fuel' exceeded 60s"}},
			wantCode:    "ANL001",
			wantMessage: "AI column mapping timeout: sheet 'Fuel' exceeded 60s",
		},
		{
			name:        "backend text mentioning empty file stays verbatim",
			err:         &CommitError{Mode: ModeStandard, Err: backendErr{"Row 4: empty file reference in Evidence column"}},
			wantCode:    "IMP001",
			wantMessage: "Row 4: empty file reference in Evidence column",
		},
		{
			name:        "client-side timeout uses canned message",
			err:         &CommitError{Mode: ModeStandard, Err: errors.New("request timeout")},
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "cancelled request",
			err:         &CommitError{Mode: ModeStandard, Err: context.Canceled},
			wantCode:    "UPL004",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("RATE LIMIT exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"nil", nil, "Import failed", ""},
		{"backend message verbatim", &CommitError{Err: backendErr{"Import failed"}}, "x", "Import failed"},
		{"empty backend message uses fallback", &CommitError{Err: backendErr{""}}, "Import failed", "Import failed"},
		{"wrappers stripped", &AnalysisError{Err: errors.New("bad header")}, "x", "bad header"},
		{"empty inner error uses fallback", &CommitError{Err: errors.New("")}, "Unified import failed", "Unified import failed"},
		{"validation reason", &ValidationError{Reason: "empty file"}, "x", "empty file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err, tt.fallback); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNoErrors)

	expected := "There are no import errors to export (Code: LED003). Nothing to do"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrDetailNotLoaded, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("commit in result: %w", ErrInvalidState)
		userErr := NewUserError(techErr)

		if userErr.Error() != "That action is not available at this step" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrInvalidState) {
			t.Error("Unwrap() should return original error")
		}
	})
}
