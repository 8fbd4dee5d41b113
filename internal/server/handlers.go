package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/render"
	"github.com/agentic-research/skilltree/internal/source"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoadRequest is the optional body of POST /api/tree/load.
type LoadRequest struct {
	Source string `json:"source"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getTree(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, render.View(s.store.Snapshot()))
}

func (s *Server) loadTree(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	location := s.resolveSource(req.Source)
	if location == "" {
		s.respondError(w, http.StatusBadRequest, "no tree source configured")
		return
	}
	if !s.sources.Allows(location) {
		s.logger.Warn("refused tree source", zap.String("source", location))
		s.metrics.Loads.WithLabelValues("forbidden").Inc()
		s.respondError(w, http.StatusForbidden, "source not allowed: "+location)
		return
	}
	if s.fetcher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "loading is disabled")
		return
	}

	err := s.store.Load(r.Context(), s.fetcher, location)
	view := render.View(s.store.Snapshot())
	switch {
	case err == nil:
		s.metrics.Loads.WithLabelValues("ok").Inc()
		s.respondJSON(w, http.StatusOK, view)
	case errors.Is(err, source.ErrMalformed):
		s.metrics.Loads.WithLabelValues("malformed").Inc()
		s.respondJSON(w, http.StatusUnprocessableEntity, view)
	default:
		s.metrics.Loads.WithLabelValues("error").Inc()
		s.respondJSON(w, http.StatusBadGateway, view)
	}
}

// resolveSource picks the requested source, then the current one, then the
// configured default.
func (s *Server) resolveSource(requested string) string {
	if requested != "" {
		return requested
	}
	if cur := s.store.Snapshot().Source; cur != "" {
		return cur
	}
	return s.defaultSource
}

func (s *Server) resetTree(w http.ResponseWriter, _ *http.Request) {
	s.store.Reset()
	s.metrics.Operations.WithLabelValues("reset", completion.Applied.String()).Inc()
	s.respondJSON(w, http.StatusOK, render.View(s.store.Snapshot()))
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	st := s.store.Snapshot()
	n, err := st.Nodes.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "achievement not found: "+id)
		return
	}
	s.respondJSON(w, http.StatusOK, render.NodeView(st.Nodes, n))
}

func (s *Server) toggleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	s.respondOutcome(w, "toggle", id, s.store.Toggle(id))
}

func (s *Server) completeNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	s.respondOutcome(w, "complete_with_parents", id, s.store.CompleteWithParents(id))
}

func (s *Server) respondOutcome(w http.ResponseWriter, op, id string, outcome completion.Outcome) {
	s.metrics.Operations.WithLabelValues(op, outcome.String()).Inc()
	switch outcome {
	case completion.NotFound:
		s.respondError(w, http.StatusNotFound, "achievement not found: "+id)
	case completion.Locked:
		s.respondError(w, http.StatusConflict, "achievement is locked until its parent is completed: "+id)
	default:
		s.respondJSON(w, http.StatusOK, render.View(s.store.Snapshot()))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
