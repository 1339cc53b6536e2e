// Package server exposes row's read-only status surface over HTTP, for
// `row serve`: a liveness probe, a JSON snapshot of the project's current
// four-status breakdown, and a version endpoint, routed through chi the
// way gonimbus's internal/server routes its own health/version endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rowhpc/row/pkg/project"
)

// errorResponse matches the {"error":{"code","message"}} shape gonimbus's
// apperrors.HTTPErrorResponse uses for 404/405 responses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server serves row's status HTTP API. The zero value is not usable; build
// one with New.
type Server struct {
	host    string
	port    int
	project *project.Project
	version string
	router  chi.Router
}

// New builds a Server bound to host:port. project may be nil, in which
// case /status reports a service-unavailable error instead of a snapshot
// (used by tests that only exercise routing and error shapes).
func New(host string, port int, proj *project.Project, version string) *Server {
	s := &Server{host: host, port: port, project: proj, version: version}
	s.router = s.buildRouter()
	return s
}

// Port reports the port the Server was constructed with.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the http.Handler serving every registered route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe binds host:port and serves until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.addr(),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return httpServer.Close()
	case err := <-errCh:
		return err
	}
}

func (s *Server) addr() string {
	return s.host + ":" + strconv.Itoa(s.port)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/version", s.handleVersion)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.project == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "project not open")
		return
	}

	report, err := s.project.Status(r.Context(), nil, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}
