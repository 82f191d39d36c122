package core

// error_messages.go maps workflow and backend failures to user-facing
// messages carrying a short code for support reference.
//
// # Codes
//
//	VAL001 - Unsupported file type      (ValidationError, "unsupported file type")
//	VAL002 - File too large             ("file too large")
//	VAL003 - Empty file                 ("empty file")
//	VAL004 - No file selected           ("no file provided")
//	VAL005 - Unknown import mode        ("unknown import mode")
//	PRE001 - No reporting period        ("no reporting period")
//	PRE002 - Nothing selected           ("no sheets selected")
//	PRE003 - Nothing importable         ("no valid rows")
//	PRE004 - Unknown site               ("unknown site")
//	ANL001 - Analysis rejected          (AnalysisError)
//	IMP001 - Import rejected            (CommitError)
//	LED001 - Ledger operation failed    (LedgerError)
//	LED002 - Batch detail not loaded    (ErrDetailNotLoaded)
//	LED003 - Nothing to export          (ErrNoErrors)
//	CNF001 - Period changed             (ConflictError)
//	CNF002 - Not confirmed              (ErrNotConfirmed)
//	UPL001 - Request in progress        (ErrBusy)
//	UPL002 - Backend busy               (ErrTooManyRequests)
//	UPL003 - Invalid step               (ErrInvalidState)
//	UPL004 - Request cancelled          ("context canceled")
//	UPL005 - Request timed out          ("context deadline exceeded", "timeout")
//	UPL006 - Response discarded         (ErrStale)
//	RATE001 - Rate limited              ("rate limit")
//	ERR000 - Unknown error
//
// Typed errors are matched first via errors.Is/As; the remaining patterns are
// matched case-insensitively with strings.Contains and the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File checks
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported for the selected import mode",
			Action:  "Upload a .csv or .xlsx file (.xls is accepted for multi-sheet workbooks)",
			Code:    "VAL001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook into smaller files",
			Code:    "VAL002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a spreadsheet with data rows",
			Code:    "VAL003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Select a spreadsheet to import",
			Code:    "VAL004",
		},
	},
	{
		pattern: "unknown import mode",
		msg: UserMessage{
			Message: "Unknown import mode",
			Action:  "Choose standard, smart or unified",
			Code:    "VAL005",
		},
	},

	// Preconditions
	{
		pattern: "no reporting period",
		msg: UserMessage{
			Message: "No reporting period is selected",
			Action:  "Select a reporting period before importing",
			Code:    "PRE001",
		},
	},
	{
		pattern: "no sheets selected",
		msg: UserMessage{
			Message: "No sheets are selected for import",
			Action:  "Select at least one importable sheet",
			Code:    "PRE002",
		},
	},
	{
		pattern: "no valid rows",
		msg: UserMessage{
			Message: "The file has no valid rows to import",
			Action:  "Fix the errors shown in the preview and upload again",
			Code:    "PRE003",
		},
	},
	{
		pattern: "unknown site",
		msg: UserMessage{
			Message: "The selected site does not belong to this organization",
			Action:  "Pick a site from the list",
			Code:    "PRE004",
		},
	},

	// Transport
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var (
	msgAnalysis = UserMessage{
		Message: "The file could not be analyzed",
		Action:  "Check the file against the import template and try again",
		Code:    "ANL001",
	}
	msgCommit = UserMessage{
		Message: "The import was rejected",
		Action:  "Review the preview and retry; the file is kept",
		Code:    "IMP001",
	}
	msgLedger = UserMessage{
		Message: "Import history could not be updated",
		Action:  "Refresh the batch list and try again",
		Code:    "LED001",
	}
	msgDetailNotLoaded = UserMessage{
		Message: "Batch activities have not been loaded",
		Action:  "Expand the batch before exporting",
		Code:    "LED002",
	}
	msgNoErrors = UserMessage{
		Message: "There are no import errors to export",
		Action:  "Nothing to do",
		Code:    "LED003",
	}
	msgConflict = UserMessage{
		Message: "The reporting period changed after the preview",
		Action:  "Reset the import and preview the file again",
		Code:    "CNF001",
	}
	msgNotConfirmed = UserMessage{
		Message: "The operation was not confirmed",
		Action:  "Confirm the dialog to proceed",
		Code:    "CNF002",
	}
	msgBusy = UserMessage{
		Message: "A request is already in progress",
		Action:  "Wait for the current step to finish",
		Code:    "UPL001",
	}
	msgBackendBusy = UserMessage{
		Message: "The import service is busy",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgInvalidState = UserMessage{
		Message: "That action is not available at this step",
		Action:  "Reset the import and start again",
		Code:    "UPL003",
	}
	msgStale = UserMessage{
		Message: "The import was reset before the response arrived",
		Action:  "Select the file again",
		Code:    "UPL006",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrBusy):
		return msgBusy
	case errors.Is(err, ErrTooManyRequests):
		return msgBackendBusy
	case errors.Is(err, ErrInvalidState):
		return msgInvalidState
	case errors.Is(err, ErrStale):
		return msgStale
	case errors.Is(err, ErrNotConfirmed):
		return msgNotConfirmed
	case errors.Is(err, ErrDetailNotLoaded):
		return msgDetailNotLoaded
	case errors.Is(err, ErrNoErrors):
		return msgNoErrors
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return msgConflict
	}

	// The service's own message wins over any pattern match on its text.
	var m messenger
	if errors.As(err, &m) && m.UserMessage() != "" {
		if base, ok := wrapperMessage(err); ok {
			return withDetail(base, err)
		}
		return withDetail(msgAnalysis, err)
	}

	// Patterns before wrapper types so a cancelled commit reads as cancelled.
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if base, ok := wrapperMessage(err); ok {
		return withDetail(base, err)
	}
	return defaultMessage
}

// wrapperMessage returns the message for the workflow wrapper around err.
func wrapperMessage(err error) (UserMessage, bool) {
	var (
		analysisErr *AnalysisError
		commitErr   *CommitError
		ledgerErr   *LedgerError
	)
	switch {
	case errors.As(err, &analysisErr):
		return msgAnalysis, true
	case errors.As(err, &commitErr):
		return msgCommit, true
	case errors.As(err, &ledgerErr):
		return msgLedger, true
	}
	return UserMessage{}, false
}

// withDetail replaces the generic message with the backend's own message
// when one is available.
func withDetail(base UserMessage, err error) UserMessage {
	if detail := Message(err, ""); detail != "" {
		base.Message = detail
	}
	return base
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
