package web

import (
	"net/http"

	"github.com/JonMunkholm/activity-import/internal/core"
)

// handleDownloadTemplate proxies the import template for a scope ("1-2" or
// "3") from the analysis service.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	scope := core.TemplateScope(pathParam(r, "scope"))

	a, err := sessionFrom(r).wf.Ledger().Template(r.Context(), scope)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, a)
}
