// Package server exposes the read-only monitoring API over HTTP. It serves
// snapshots of the open book, the pattern ledger and injected memories;
// all mutation goes through the pipeline, never through HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/pipeline"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server is the monitoring HTTP server.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *logger.Logger
	srv      *http.Server
}

// NewServer creates a monitoring server bound to addr.
func NewServer(p *pipeline.Pipeline, log *logger.Logger, addr string) *Server {
	server := &Server{
		pipeline: p,
		logger:   log,
	}

	server.srv = &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/patterns", s.handlePatterns).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/memories/{pattern}", s.handleMemories).Methods(http.MethodGet)

	return router
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Monitoring server listening", zap.String("addr", s.srv.Addr))

		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.pipeline.ActiveSnapshots(nil, time.Now().UTC())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, snapshots)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.pipeline.Store().PatternSummaries()
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, summaries)
}

// summaryResponse is the /api/summary payload.
type summaryResponse struct {
	OpenPositions int                    `json:"open_positions"`
	Patterns      []types.PatternSummary `json:"patterns"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	count, err := s.pipeline.Store().CountOpenPositions()
	if err != nil {
		s.writeError(w, err)

		return
	}

	summaries, err := s.pipeline.Store().PatternSummaries()
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, summaryResponse{
		OpenPositions: count,
		Patterns:      summaries,
	})
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["pattern"]

	key, err := types.ParsePatternKey(raw)
	if err != nil {
		s.writeError(w, err)

		return
	}

	memories, err := s.pipeline.Memories().Select(key)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if memories == nil {
		memories = []types.PatternMemory{}
	}

	s.writeJSON(w, memories)
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// errorResponse is the JSON error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.IsValidationError(err) {
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(errorResponse{
		Code:    int(errors.GetCode(err)),
		Message: err.Error(),
	})
}
