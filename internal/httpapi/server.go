// Package httpapi is the HTTP API (spec §4.4): maps the URL surface of
// spec.md §6.1 onto the Key-Store Engine and DNS Scanner, enforcing
// per-flow routing. Successful responses are JSON; error responses are
// plain text.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/house-of-vanity/khm/internal/dnsscan"
	"github.com/house-of-vanity/khm/internal/keystore"
)

// Version is the KHM release string returned by GET /api/version.
const Version = "1.0.0"

// Server bundles the Engine, Scanner, and configured flow allow-list behind
// an http.Handler. All fields are set once at construction and never
// mutated afterward — the process-wide immutable configuration pattern of
// spec.md §5/§9.
type Server struct {
	engine    *keystore.Engine
	scanner   *dnsscan.Scanner
	flows     []string
	basicUser string
	basicPass string

	router chi.Router
}

// Config configures a new Server.
type Config struct {
	Engine    *keystore.Engine
	Scanner   *dnsscan.Scanner
	Flows     []string
	BasicUser string // empty disables Basic auth
	BasicPass string
}

// New builds the chi router, following the same
// chi.NewRouter()+middleware+route-group shape as claworc's main.go.
func New(cfg Config) *Server {
	s := &Server{
		engine:    cfg.Engine,
		scanner:   cfg.Scanner,
		flows:     cfg.Flows,
		basicUser: cfg.BasicUser,
		basicPass: cfg.BasicPass,
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestIDMiddleware)
	if s.basicUser != "" {
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/flows", s.handleListFlows)
		r.Get("/version", s.handleVersion)
	})

	r.Route("/{flow}", func(r chi.Router) {
		r.Use(s.flowResolver)

		r.Get("/keys", s.handleGetKeys)
		r.Post("/keys", s.handlePostKeys)
		r.Delete("/keys/{host}", s.handleDeprecateHost)
		r.Post("/keys/{host}/restore", s.handleRestoreHost)
		r.Delete("/keys/{host}/delete", s.handlePermanentDelete)
		r.Post("/bulk-deprecate", s.handleBulkDeprecate)
		r.Post("/bulk-restore", s.handleBulkRestore)
		r.Post("/scan-dns", s.handleScanDNS)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.enginePing(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.flows)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) enginePing(ctx context.Context) error {
	return s.engine.Ping(ctx)
}
