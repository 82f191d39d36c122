package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/activity-import/internal/cache"
	"github.com/JonMunkholm/activity-import/internal/core"
)

// handleListBatches returns the recent import batches. The list is served
// from the query cache, which commits and deletions invalidate.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	periodID := r.URL.Query().Get("period_id")
	if periodID == "" {
		periodID = sess.shared.Period()
	}
	limit := parseIntParam(r, "limit", s.cfg.Import.BatchListLimit)
	if limit == 0 {
		limit = s.cfg.Import.BatchListLimit
	}

	variant := periodID + "|" + strconv.Itoa(limit)
	batches, err := cache.Get(r.Context(), s.cache, core.KeyImportBatches, variant,
		func(ctx context.Context) ([]core.ImportBatch, error) {
			return sess.wf.Ledger().List(ctx, periodID, limit)
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if batches == nil {
		batches = []core.ImportBatch{}
	}

	writeJSON(w, map[string]any{
		"period_id": periodID,
		"batches":   batches,
	})
}

// handleBatchActivities expands a batch, fetching its activities and keeping
// them for export.
func (s *Server) handleBatchActivities(w http.ResponseWriter, r *http.Request) {
	detail, err := sessionFrom(r).wf.ExpandBatch(r.Context(), pathParam(r, "batchID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, detail)
}

// handleCollapseBatch forgets the fetched activities of a batch.
func (s *Server) handleCollapseBatch(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).wf.Ledger().Collapse(pathParam(r, "batchID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleExportBatch downloads the expanded activities of a batch as CSV.
func (s *Server) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	a, err := sessionFrom(r).wf.ExportBatch(pathParam(r, "batchID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, a)
}
