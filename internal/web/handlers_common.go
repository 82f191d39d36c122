package web

// Request parsing and response helpers shared across handlers.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/web/templates"
)

// maxJSONBody bounds the small JSON bodies of the workflow endpoints.
const maxJSONBody = 1 << 20

// stateResponse is the JSON form of a session's workflow.
type stateResponse struct {
	core.View
	CurrentPeriod string      `json:"current_period,omitempty"`
	Sites         []core.Site `json:"sites"`
}

// respondState renders the session's workflow after a successful action.
func respondState(w http.ResponseWriter, r *http.Request, sess *session) {
	view := sess.wf.View()
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		templates.WorkflowStatus(view).Render(r.Context(), w)
		return
	}

	sites := sess.shared.Sites()
	if sites == nil {
		sites = []core.Site{}
	}
	writeJSON(w, stateResponse{
		View:          view,
		CurrentPeriod: sess.shared.Period(),
		Sites:         sites,
	})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v
// unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// decodeConfirmation reads {"confirmed": bool, "typed": string}. A missing
// body declines.
func decodeConfirmation(w http.ResponseWriter, r *http.Request) (core.Answer, error) {
	var c core.Confirmation
	if err := decodeJSON(w, r, &c); err != nil {
		return core.Decline(), err
	}
	return core.Answer(c), nil
}

// pathParam returns the unescaped chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
