package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/catalog"
	"github.com/hyperjump/musubu/internal/config"
	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
	"github.com/hyperjump/musubu/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.New(256, hdc.L2, nil)
	st.AddAll([]hdql.Entity{
		{Type: "persona", Name: "developer", Description: "writes production software"},
		{Type: "persona", Name: "designer", Description: "shapes the product"},
		{Type: "solution", Name: "search", Attributes: map[string]float64{"outcome_coverage": 0.9}},
	})
	cat, err := catalog.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	entities, _ := st.AllEntities()
	if err := cat.IndexAll(entities); err != nil {
		t.Fatal(err)
	}
	engine := hdql.NewEngine(st, 10, nil)
	return NewServer(engine, st, cat, nil, &config.ServerConfig{Port: 8080}, zap.NewNop())
}

func TestHandleQuery(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"query": map[string]string{
			"node":        "atomic",
			"entity_type": "persona",
			"identifier":  "developer",
		},
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Kind   string `json:"kind"`
		Result struct {
			Matches []struct {
				Entity hdql.Entity `json:"entity"`
			} `json:"matches"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Kind != string(hdql.KindVectorQuery) {
		t.Errorf("kind: got %s", out.Kind)
	}
	if len(out.Result.Matches) != 1 || out.Result.Matches[0].Entity.Name != "developer" {
		t.Errorf("matches: got %+v", out.Result.Matches)
	}
}

func TestHandleQuery_InvalidAST(t *testing.T) {
	srv := newTestServer(t)
	body := []byte(`{"query": {"node": "mystery"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery_InvalidBody(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleExplain(t *testing.T) {
	srv := newTestServer(t)
	body := []byte(`{"query": {"node": "atomic", "entity_type": "persona", "identifier": "developer"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/explain", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleExplain(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Plan          string  `json:"plan"`
		EstimatedCost float64 `json:"estimated_cost"`
		Operations    int     `json:"operations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Plan == "" {
		t.Error("expected rendered plan")
	}
	if out.EstimatedCost != 2.0 {
		t.Errorf("estimated_cost: got %v, want 2.0", out.EstimatedCost)
	}
	if out.Operations != 2 {
		t.Errorf("operations: got %d, want 2", out.Operations)
	}
}

func TestHandlePutEntity(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(hdql.Entity{Type: "solution", Name: "alerts"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/entities", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handlePutEntity(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if _, ok := srv.store.Get("solution:alerts"); !ok {
		t.Error("entity not stored")
	}
}

func TestHandlePutEntity_MissingFields(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(hdql.Entity{Type: "solution"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/entities", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handlePutEntity(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestEntityRoutes(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/entities/persona:developer")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var e hdql.Entity
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if e.Name != "developer" {
		t.Errorf("entity: got %+v", e)
	}

	resp, err = http.Get(ts.URL + "/api/v1/entities/persona:nobody")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/entities/persona:designer", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status: got %d", resp.StatusCode)
	}
	if _, ok := srv.store.Get("persona:designer"); ok {
		t.Error("entity still present after delete")
	}
}

func TestHandleListEntities(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/entities?type=persona", nil)
	w := httptest.NewRecorder()
	srv.handleListEntities(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Entities []hdql.Entity `json:"entities"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Entities) != 2 {
		t.Errorf("entities: got %d, want 2", len(out.Entities))
	}
}

func TestHandleCatalogSearch(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search?q=software", nil)
	w := httptest.NewRecorder()
	srv.handleCatalogSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Hits []catalog.Hit `json:"hits"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Hits) != 1 || out.Hits[0].Key != "persona:developer" {
		t.Errorf("hits: got %v", out.Hits)
	}
}

func TestHandleCatalogSearch_MissingQuery(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/search", nil)
	w := httptest.NewRecorder()
	srv.handleCatalogSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Entities   int      `json:"entities"`
		Types      []string `json:"types"`
		Dimensions int      `json:"dimensions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Entities != 3 {
		t.Errorf("entities: got %d, want 3", out.Entities)
	}
	if out.Dimensions != 256 {
		t.Errorf("dimensions: got %d, want 256", out.Dimensions)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
