package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/logging"
)

// multipartMemory is how much of a multipart upload is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// handleState returns the session's workflow.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondState(w, r, sessionFrom(r))
}

// handleSetMode switches the import mode, discarding any in-progress import.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	mode, err := core.ParseImportMode(req.Mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := sess.wf.SetMode(mode); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleSetContext records the period and sites chosen on the host page.
// A period change after a preview is detected at commit time.
func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req struct {
		PeriodID string      `json:"period_id"`
		Sites    []core.Site `json:"sites"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess.shared.SetPeriod(req.PeriodID)
	sess.shared.SetSites(req.Sites)
	respondState(w, r, sess)
}

// handleSetSite picks the optional site new activities are attributed to.
func (s *Server) handleSetSite(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req struct {
		SiteID string `json:"site_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := sess.wf.SetSite(req.SiteID); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleSelectFile reads the uploaded spreadsheet and hands it to the
// workflow, which previews it (standard, unified) or imports it (smart).
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	maxSize := s.cfg.Import.MaxFileSize

	// Leave room for the multipart envelope; the workflow enforces the
	// exact file limit.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, badRequest("file too large"))
			return
		}
		s.fail(w, r, badRequest("invalid upload form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, badRequest("no file provided"))
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the size check to reject it.
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	logger := logging.WithFields(r.Context(), "file", header.Filename, "size", len(data))
	logger.Debug("file received", "mode", sess.wf.Mode())

	if err := sess.wf.SelectFile(r.Context(), core.File{Name: header.Filename, Data: data}); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleToggleSheet adds or removes an importable sheet from the selection.
func (s *Server) handleToggleSheet(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.wf.ToggleSheet(pathParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleToggleExpanded shows or hides a sheet's detail.
func (s *Server) handleToggleExpanded(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.wf.ToggleExpanded(pathParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleCommit imports the previewed file.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.wf.Commit(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	respondState(w, r, sess)
}

// handleReset returns the workflow to the upload step.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.wf.Reset()
	respondState(w, r, sess)
}

// handleExportErrors downloads the failed rows of the current result.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	a, err := sessionFrom(r).wf.ExportErrors()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, a)
}
