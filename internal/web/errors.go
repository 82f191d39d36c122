package web

// errors.go turns workflow, ledger and backend failures into responses.
//
// The flow:
//  1. A handler gets an error and calls s.fail(w, r, err)
//  2. statusFor picks the HTTP status from the error type
//  3. core.MapError supplies the user message, action and code
//  4. The technical error is logged with the request id
//  5. The message is rendered as JSON, an HTMX fragment or plain text

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/activity-import/internal/analysis"
	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/logging"
	"github.com/JonMunkholm/activity-import/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// fail responds with the status derived from err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs the technical error and writes the user-facing message
// in the format the client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation   *core.ValidationError
		precondition *core.PreconditionError
		conflict     *core.ConflictError
		analysisErr  *core.AnalysisError
		commitErr    *core.CommitError
		ledgerErr    *core.LedgerError
	)

	switch {
	case errors.Is(err, core.ErrBusy),
		errors.Is(err, core.ErrStale),
		errors.Is(err, core.ErrInvalidState),
		errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotConfirmed):
		return http.StatusPreconditionFailed
	case errors.Is(err, core.ErrDetailNotLoaded),
		errors.Is(err, core.ErrNoErrors):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.As(err, &validation):
		if strings.Contains(validation.Reason, "file too large") {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.As(err, &precondition):
		return http.StatusUnprocessableEntity
	case analysis.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &analysisErr),
		errors.As(err, &commitErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ledgerErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// badRequest wraps a malformed request as a validation failure.
func badRequest(reason string) error {
	return &core.ValidationError{Reason: reason}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
