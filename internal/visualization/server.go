package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/orderlattice/internal/export"
	"github.com/nvandessel/orderlattice/internal/store"
)

// Server serves stored sweep runs over a small read-only HTTP API.
type Server struct {
	store      store.ResultStore
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a new results server backed by rs.
func NewServer(rs store.ResultStore) *Server {
	return &Server{store: rs}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the routing table. Exposed for tests that use httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/csv", s.handleCSV)
	return mux
}

// ListenAndServe starts the HTTP server on addr (an OS-assigned port when
// empty) and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler()}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"runs": "/api/runs",
		"run":  "/api/runs/{id}",
		"csv":  "/api/runs/{id}/csv",
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 0)
	if err != nil {
		http.Error(w, "list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolve(w, r)
	if !ok {
		return
	}
	res, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "get run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolve(w, r)
	if !ok {
		return
	}
	rows, err := s.store.Rows(r.Context(), id)
	if err != nil {
		http.Error(w, "get rows: "+err.Error(), http.StatusInternalServerError)
		return
	}
	cfg := export.DefaultCSVConfig()
	cfg.IncludeExtended = r.URL.Query().Get("extended") == "true"

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if err := export.ExportRowsToCSV(w, rows, cfg); err != nil {
		http.Error(w, "write csv: "+err.Error(), http.StatusInternalServerError)
	}
}

// resolve expands the {id} path value, writing 404/409 on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.store.ResolveID(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		http.Error(w, "run not found: "+r.PathValue("id"), http.StatusNotFound)
		return "", false
	case errors.Is(err, store.ErrAmbiguousID):
		http.Error(w, err.Error(), http.StatusConflict)
		return "", false
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
