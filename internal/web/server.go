// Package web provides the HTTP server for the activity import workflow.
//
// Every browser session owns one core.Workflow. The server exposes it as a
// JSON API (HTML fragments for HTMX requests) and adds the batch ledger,
// CSV downloads and the audit log on top.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/activity-import/internal/audit"
	"github.com/JonMunkholm/activity-import/internal/cache"
	"github.com/JonMunkholm/activity-import/internal/config"
	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/web/middleware"
)

// AuditLister reads the audit trail. *audit.Store implements it.
type AuditLister interface {
	List(ctx context.Context, opts audit.ListOptions) ([]core.AuditEntry, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Backend  core.Backend       // required
	Cache    *cache.Store       // required
	Gate     *core.RequestGate  // optional
	Audit    core.AuditRecorder // optional
	AuditLog AuditLister        // optional; nil disables /api/audit-log
}

// Server is the HTTP server for the import workflow.
type Server struct {
	cfg      *config.Config
	cache    *cache.Store
	gate     *core.RequestGate
	auditLog AuditLister
	sessions *sessionStore
	general  *middleware.RateLimiter
	uploads  *middleware.RateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server with its routes registered.
func NewServer(cfg *config.Config, deps Deps) *Server {
	mode, err := core.ParseImportMode(cfg.Import.DefaultMode)
	if err != nil {
		mode = core.ModeStandard
	}

	s := &Server{
		cfg:      cfg,
		cache:    deps.Cache,
		gate:     deps.Gate,
		auditLog: deps.AuditLog,
		general:  middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute),
		uploads:  middleware.NewRateLimiter(cfg.Rate.UploadLimit),
		router:   chi.NewRouter(),
	}
	s.sessions = newSessionStore(cfg.Import.SessionTTL, func(shared *core.StaticState) (*core.Workflow, error) {
		return core.NewWorkflow(core.Options{
			Backend:     deps.Backend,
			Shared:      shared,
			Invalidator: deps.Cache,
			Audit:       deps.Audit,
			Gate:        deps.Gate,
			MaxFileSize: cfg.Import.MaxFileSize,
			Mode:        mode,
		})
	})

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.general.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))
		r.Use(s.withSession)

		r.Route("/import", func(r chi.Router) {
			r.Get("/state", s.handleState)
			r.Post("/mode", s.handleSetMode)
			r.Post("/context", s.handleSetContext)
			r.Post("/site", s.handleSetSite)
			r.Post("/sheets/{name}/toggle", s.handleToggleSheet)
			r.Post("/sheets/{name}/expand", s.handleToggleExpanded)
			r.Post("/reset", s.handleReset)
			r.Get("/errors.csv", s.handleExportErrors)
			r.Get("/template/{scope}", s.handleDownloadTemplate)

			// File analysis and commit reach the backend.
			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.uploads.Handler)
				}
				r.Post("/file", s.handleSelectFile)
				r.Post("/commit", s.handleCommit)
			})
		})

		r.Get("/batches", s.handleListBatches)
		r.Get("/batches/{batchID}/activities", s.handleBatchActivities)
		r.Delete("/batches/{batchID}/activities", s.handleCollapseBatch)
		r.Get("/batches/{batchID}/export", s.handleExportBatch)
		r.Delete("/batches/{batchID}", s.handleDeleteBatch)
		r.Delete("/periods/{periodID}/activities", s.handleDeletePeriodActivities)
		r.Delete("/organization/activities", s.handleDeleteOrganizationActivities)

		r.Get("/audit-log", s.handleAuditLog)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight backend calls to
// drain and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.gate == nil {
		return nil
	}
	return s.gate.WaitForDrain(ctx)
}

// RunJanitor expires idle sessions and forgets idle rate-limit clients until
// ctx is cancelled.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.sweep(); n > 0 {
				slog.Debug("expired import sessions", "count", n)
			}
			s.general.Cleanup(middleware.DefaultVisitorTTL)
			s.uploads.Cleanup(middleware.DefaultVisitorTTL)
		}
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports liveness plus gate and session counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"sessions": s.sessions.len(),
	}
	if s.gate != nil {
		resp["gate"] = s.gate.Status()
	}
	writeJSON(w, resp)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}

// writeArtifact sends a generated or downloaded file as an attachment.
func writeArtifact(w http.ResponseWriter, a *core.Artifact) {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+a.FileName+`"`)
	w.Write(a.Data)
}
