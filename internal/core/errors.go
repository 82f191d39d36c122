package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a primary request is already in flight for the workflow.
	ErrBusy = errors.New("request already in progress")

	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrNotConfirmed is returned when a destructive operation was not confirmed.
	ErrNotConfirmed = errors.New("operation not confirmed")

	// ErrDetailNotLoaded is returned when exporting a batch whose activities were never fetched.
	ErrDetailNotLoaded = errors.New("batch detail not loaded")

	// ErrNoErrors is returned when exporting an error log with nothing to export.
	ErrNoErrors = errors.New("no import errors to export")

	// ErrStale is returned when a response arrives after the workflow moved on.
	ErrStale = errors.New("response discarded: workflow was reset")
)

// ValidationError is a client-side rejection raised before any request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PreconditionError is raised when required context (period, selection) is
// missing before a request can be built.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// AnalysisError is raised when the backend rejects a dry-run analysis.
type AnalysisError struct {
	Mode ImportMode
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s preview: %v", e.Mode, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// CommitError is raised when the backend rejects an import.
type CommitError struct {
	Mode ImportMode
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s import: %v", e.Mode, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// LedgerError wraps failures of batch ledger operations.
type LedgerError struct {
	Op  string // list, activities, delete, delete_period, delete_organization, template
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// ConflictError is raised when the shared reporting period changed between
// preview and commit.
type ConflictError struct {
	Captured string
	Current  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("period conflict: file was previewed for period %q but the selected period is now %q; reset and preview again",
		e.Captured, e.Current)
}

// messenger is implemented by errors that carry a message meant for users,
// such as backend API errors.
type messenger interface {
	UserMessage() string
}

// Message extracts the user-visible banner text for err.
// Backend messages are surfaced verbatim; wrapped workflow errors surface
// their innermost message. fallback is used when nothing else is available.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var m messenger
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
		return fallback
	}

	// Strip our own wrappers so the banner shows the underlying message.
	for {
		var inner error
		switch e := err.(type) {
		case *AnalysisError:
			inner = e.Err
		case *CommitError:
			inner = e.Err
		case *LedgerError:
			inner = e.Err
		}
		if inner == nil {
			break
		}
		err = inner
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
