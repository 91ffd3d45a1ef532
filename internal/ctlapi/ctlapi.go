// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ctlapi exposes the daemon's localhost status/compile/metrics
// surface, the single control-plane entry point this tool carries in
// place of the teacher's much larger ctlplane (spec.md's scope is one
// operator-facing daemon, not a multi-tenant control plane).
package ctlapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the JSON body served by GET /status.
type Status struct {
	LastCycleTime   string         `json:"last_cycle_time,omitempty"`
	LastCycleError  string         `json:"last_cycle_error,omitempty"`
	ChainsManaged   int            `json:"chains_managed"`
	ChainActions    map[string]int `json:"chain_actions,omitempty"`
	RuleDirectories []string       `json:"rule_directories"`
}

// StatusProvider reports the daemon's current view of the world. The
// daemon's reconciliation loop (cmd/pvefw) implements this; ctlapi
// depends only on the interface so it never imports the daemon's main
// package.
type StatusProvider interface {
	Status() Status
}

// Compiler triggers an out-of-band compile/reconcile cycle, honoring
// dryRun the same way the CLI's "compile --dry-run" does.
type Compiler interface {
	Compile(dryRun bool) (*Status, error)
}

// Server is the localhost HTTP surface: GET /status, POST /compile,
// GET /metrics.
type Server struct {
	router   *mux.Router
	provider StatusProvider
}

// New builds a Server routing to provider and compiler.
func New(provider StatusProvider, compiler Compiler) *Server {
	s := &Server{router: mux.NewRouter(), provider: provider}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/compile", s.handleCompile(compiler)).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.provider.Status())
}

func (s *Server) handleCompile(compiler Compiler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dryRun := r.URL.Query().Get("dry_run") == "1" || r.URL.Query().Get("dry_run") == "true"
		status, err := compiler.Compile(dryRun)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, status)
	}
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
