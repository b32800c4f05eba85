package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/catalog"
	"github.com/tansa-search/tansa/internal/controller"
	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/internal/query"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("page", req.Page))
	resp, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		var pe *query.ParseError
		if errors.As(err, &pe) {
			// A bad query is the caller's error, distinguishable from an
			// empty result set.
			s.respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": pe.Error(),
				"type":  "parse_error",
			})
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type startRequest struct {
	// Root optionally authorizes one more directory before starting.
	Root string `json:"root,omitempty"`
}

func (s *Server) handleIndexStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Root != "" {
		if _, err := s.ctrl.AddRoot(r.Context(), req.Root); err != nil && !errors.Is(err, catalog.ErrRootExists) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid root: %v", err))
			return
		}
	}

	id, err := s.ctrl.Start(r.Context())
	if err != nil {
		if errors.Is(err, controller.ErrSessionActive) {
			s.respondError(w, http.StatusConflict, "session already active")
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"session_id": id,
		"state":      s.ctrl.State().String(),
	})
}

// lifecycle translates pause/resume/cancel outcomes: a request with no
// session to act on is reported as a no-op, not an error.
func (s *Server) lifecycle(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, controller.ErrNoSession) {
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status": "noop",
			"reason": "no active session",
		})
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": action,
		"state":  s.ctrl.State().String(),
	})
}

func (s *Server) handleIndexPause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, "paused", s.ctrl.Pause())
}

func (s *Server) handleIndexResume(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, "resumed", s.ctrl.Resume())
}

func (s *Server) handleIndexCancel(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, "cancelled", s.ctrl.Cancel())
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ctrl.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleIndexProgress(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.ctrl.Progress())
}

func (s *Server) handleRootsList(w http.ResponseWriter, r *http.Request) {
	roots, err := s.ctrl.Roots(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if roots == nil {
		roots = []*catalog.Root{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"roots": roots})
}

type rootRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleRootsAdd(w http.ResponseWriter, r *http.Request) {
	var req rootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	root, err := s.ctrl.AddRoot(r.Context(), req.Path)
	if err != nil {
		if errors.Is(err, catalog.ErrRootExists) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, root)
}

func (s *Server) handleRootsRemove(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		var req rootRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Path != "" {
			path = req.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	s.logger.Debug("root remove request", zap.String("path", path))
	if err := s.ctrl.RemoveRoot(r.Context(), path); err != nil {
		if errors.Is(err, catalog.ErrRootNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "status": "removed"})
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.ctrl.Sessions(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*catalog.Session{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleSessionErrors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	errs, err := s.ctrl.FileErrors(r.Context(), id, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if errs == nil {
		errs = []*catalog.FileError{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"errors": errs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
