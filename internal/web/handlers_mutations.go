package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/activity-import/internal/logging"
)

// Destructive ledger operations. Each takes the user's answer to the
// confirmation dialog as {"confirmed": true, "typed": "..."}; a missing or
// declined answer is rejected before any request reaches the backend.

// handleDeleteBatch deletes an import batch, and its activities when
// delete_activities=true.
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := pathParam(r, "batchID")
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("delete_activities"))

	answer, err := decodeConfirmation(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := sessionFrom(r).wf.Ledger().Delete(r.Context(), batchID, cascade, answer); err != nil {
		s.fail(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("batch deleted via api", "batch_id", batchID, "cascade", cascade)
	writeJSON(w, map[string]any{"status": "deleted", "batch_id": batchID, "cascade": cascade})
}

// handleDeletePeriodActivities deletes every activity of a reporting period.
func (s *Server) handleDeletePeriodActivities(w http.ResponseWriter, r *http.Request) {
	answer, err := decodeConfirmation(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sum, err := sessionFrom(r).wf.Ledger().DeletePeriodActivities(r.Context(), pathParam(r, "periodID"), answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sum)
}

// handleDeleteOrganizationActivities deletes every activity of the
// organization. The answer must carry the typed confirmation token.
func (s *Server) handleDeleteOrganizationActivities(w http.ResponseWriter, r *http.Request) {
	answer, err := decodeConfirmation(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sum, err := sessionFrom(r).wf.Ledger().DeleteOrganizationActivities(r.Context(), answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sum)
}
