// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpapi exposes the pipeline over HTTP: a synchronous run
// endpoint, an SSE streaming variant, a health probe, and Prometheus
// metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/permit-engine/internal/metrics"
	"github.com/pdiddy/permit-engine/internal/notice"
	"github.com/pdiddy/permit-engine/internal/pipeline"
	"github.com/pdiddy/permit-engine/pkg/types"
)

// Runner is the pipeline seam the server drives.
type Runner interface {
	Run(ctx context.Context, session types.PermitSession, items []types.DeficiencyItem, reporter pipeline.Reporter) (types.PipelineResult, error)
}

// Server handles pipeline HTTP requests.
type Server struct {
	runner Runner
	logger *slog.Logger
}

// NewHandler builds the HTTP handler for the pipeline API.
func NewHandler(runner Runner, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: runner, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/api/v1/pipeline", func(r chi.Router) {
		r.Post("/run", s.run)
		r.Post("/stream", s.stream)
	})
	return r
}

// runRequest is the body both pipeline endpoints accept: a materialized
// notice with pre-extracted deficiency items.
type runRequest struct {
	PropertyAddress string                 `json:"property_address"`
	SuiteType       string                 `json:"suite_type"`
	Items           []types.DeficiencyItem `json:"items"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// run executes the pipeline synchronously and returns the full result.
func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	session, items, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	result, err := s.runner.Run(r.Context(), session, items, pipeline.NopReporter{})
	if err != nil {
		s.logger.Error("pipeline run failed", "session", session.ID, "err", err)
		http.Error(w, fmt.Sprintf("pipeline run failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("result encode failed", "session", session.ID, "err", err)
	}
}

// stream executes the pipeline while pushing progress events over SSE.
// Pipeline-level failures surface as a terminal error event on the stream,
// not as an HTTP status: by then the 200 header is already written.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	session, items, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	flusher, flushable := w.(http.Flusher)
	if !flushable {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	reporter := &sseReporter{w: w, flusher: flusher}
	reporter.Emit(pipeline.Event{Type: pipeline.EventProgress, Data: pipeline.ProgressData{
		Stage:       pipeline.StageUpload,
		Description: "Notice received",
		Percent:     10,
	}})
	reporter.Emit(pipeline.Event{Type: pipeline.EventProgress, Data: pipeline.ProgressData{
		Stage:       pipeline.StageParse,
		Description: fmt.Sprintf("Found %d deficiency item(s)", len(items)),
		Percent:     40,
	}})

	if _, err := s.runner.Run(r.Context(), session, items, reporter); err != nil {
		// The orchestrator already emitted the error event.
		s.logger.Error("pipeline stream failed", "session", session.ID, "err", err)
	}
}

func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (types.PermitSession, []types.DeficiencyItem, bool) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return types.PermitSession{}, nil, false
	}

	suite, err := notice.ParseSuiteType(req.SuiteType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return types.PermitSession{}, nil, false
	}

	session := types.NewSession(req.PropertyAddress, suite)
	items := make([]types.DeficiencyItem, len(req.Items))
	for i, item := range req.Items {
		item.SessionID = session.ID
		item.OrderIndex = i
		items[i] = item
	}
	return session, items, true
}

// sseReporter writes pipeline events as server-sent events, flushing after
// each one so clients observe progress live.
type sseReporter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (r *sseReporter) Emit(event pipeline.Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	fmt.Fprintf(r.w, "event: %s\ndata: %s\n\n", event.Type, data)
	r.flusher.Flush()
}
