package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/catalog"
	"github.com/hyperjump/musubu/internal/hdql"
)

type queryRequest struct {
	Query json.RawMessage `json:"query"`
	TopK  int             `json:"top_k,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	root, err := hdql.UnmarshalNode(req.Query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.engine.CompileTopK(root, req.TopK)
	if err != nil {
		var cerr *hdql.CompilationError
		if errors.As(err, &cerr) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("compilation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("query request",
		zap.Int("operations", len(plan.Operations)),
		zap.Float64("estimated_cost", plan.Cost),
	)

	result, err := s.engine.Run(plan)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"kind":   result.Kind(),
		"result": result,
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	root, err := hdql.UnmarshalNode(req.Query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := s.engine.CompileTopK(root, req.TopK)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"plan":           plan.Explain(),
		"estimated_cost": plan.Cost,
		"operations":     len(plan.Operations),
		"kind":           plan.Kind,
		"index_hints":    plan.IndexHints,
		"flags":          plan.Flags,
	})
}

func (s *Server) handlePutEntity(w http.ResponseWriter, r *http.Request) {
	var e hdql.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if e.Type == "" || e.Name == "" {
		s.respondError(w, http.StatusBadRequest, "type and name are required")
		return
	}
	s.logger.Debug("put entity request", zap.String("key", e.Key()))
	s.store.Add(e)
	if s.catalog != nil {
		if err := s.catalog.Index(e); err != nil {
			s.logger.Warn("catalog indexing failed", zap.String("key", e.Key()), zap.Error(err))
		}
	}
	if s.sqlite != nil {
		if err := s.sqlite.PutEntity(r.Context(), e); err != nil {
			s.logger.Error("entity persistence failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"key": e.Key(), "status": "stored"})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	var entities []hdql.Entity
	var err error
	if entityType != "" {
		entities, err = s.store.EntitiesByType(entityType)
	} else {
		entities, err = s.store.AllEntities()
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entities == nil {
		entities = []hdql.Entity{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	e, ok := s.store.Get(key)
	if !ok {
		s.respondError(w, http.StatusNotFound, "entity not found")
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.logger.Debug("delete entity request", zap.String("key", key))
	s.store.Remove(key)
	if s.catalog != nil {
		if err := s.catalog.Delete(key); err != nil {
			s.logger.Warn("catalog delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if s.sqlite != nil {
		if err := s.sqlite.DeleteEntity(r.Context(), key); err != nil {
			s.logger.Error("entity deletion failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	hits, err := s.catalog.Search(q, r.URL.Query().Get("type"), limit)
	if err != nil {
		s.logger.Error("catalog search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []catalog.Hit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"entities":   s.store.Len(),
		"types":      s.store.Types(),
		"dimensions": s.store.Dimensions(),
		"strategy":   s.store.Strategy(),
	}
	if s.catalog != nil {
		if count, err := s.catalog.Count(); err == nil {
			resp["catalog_entities"] = count
		}
	}
	if s.sqlite != nil {
		if count, err := s.sqlite.CountEntities(r.Context()); err == nil {
			resp["persisted_entities"] = count
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
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
