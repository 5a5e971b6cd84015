// Package httpapi exposes the Responses HTTP surface over the Orchestrator:
// routing, request-id propagation, and error-body rendering. It is an
// external collaborator around the translation/streaming core, not part of
// it — swapping this package for a different router or framework should
// never touch orchestrator, translate, stream, or store.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"goa.design/responses-bridge/apperr"
	"goa.design/responses-bridge/orchestrator"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/telemetry"
)

// Server wires the Orchestrator to net/http's ServeMux, using Go 1.22+
// method-and-path routing patterns rather than a third-party router: this
// surface is explicitly an external collaborator the core never depends on.
type Server struct {
	orch   *orchestrator.Orchestrator
	logger telemetry.Logger
	mux    *http.ServeMux

	version string
}

// New constructs a Server ready to be used as an http.Handler.
func New(orch *orchestrator.Orchestrator, logger telemetry.Logger, version string) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	s := &Server{orch: orch, logger: logger, mux: http.NewServeMux(), version: version}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/responses", s.handleCreateResponse)
	s.mux.HandleFunc("GET /v1/responses/{id}", s.handleGetResponse)
	s.mux.HandleFunc("DELETE /v1/responses/{id}", s.handleDeleteResponse)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /version", s.handleVersion)
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	ctx := r.Context()

	var req responses.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, reqID, apperr.New(apperr.InvalidRequest, "malformed_json", err.Error(), err))
		return
	}

	if req.Stream {
		s.handleStreamingResponse(ctx, w, reqID, &req)
		return
	}

	start := time.Now()
	obj, err := s.orch.HandleNonStream(ctx, &req)
	if err != nil {
		s.logger.Error(ctx, "responses.create failed", "request_id", reqID, "error", err.Error())
		writeError(w, reqID, err)
		return
	}
	s.logger.Info(ctx, "responses.create succeeded", "request_id", reqID, "duration", time.Since(start).String())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", reqID)
	_ = json.NewEncoder(w).Encode(obj)
}

func (s *Server) handleStreamingResponse(ctx context.Context, w http.ResponseWriter, reqID string, req *responses.Request) {
	writer, ok := newSSEWriter(w, reqID)
	if !ok {
		writeError(w, reqID, apperr.New(apperr.Internal, "", "response writer does not support streaming", nil))
		return
	}
	if err := s.orch.HandleStream(ctx, req, writer); err != nil {
		// Upstream read failures after the first event are reported
		// in-stream by stream.Bridge.Fail and come back as nil. A non-nil
		// error means either no event was written yet, or writing an event
		// (or building the final response) failed after the stream started;
		// in that case the status line is already sent and the JSON error
		// cannot replace the stream.
		s.logger.Error(ctx, "responses.create (stream) failed", "request_id", reqID, "error", err.Error())
		writeError(w, reqID, err)
		return
	}
	s.logger.Info(ctx, "responses.create (stream) succeeded", "request_id", reqID)
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id := r.PathValue("id")
	obj, err := s.orch.GetResponse(r.Context(), id)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", reqID)
	_ = json.NewEncoder(w).Encode(obj)
}

func (s *Server) handleDeleteResponse(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id := r.PathValue("id")
	if err := s.orch.DeleteResponse(r.Context(), id); err != nil {
		writeError(w, reqID, err)
		return
	}
	w.Header().Set("X-Request-Id", reqID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}
