package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/catalog"
	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/controller"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/query"
)

func newTestServer(t *testing.T, roots ...string) (*Server, *controller.Controller) {
	t.Helper()
	dir := t.TempDir()

	store, err := index.Open(filepath.Join(dir, "index.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })

	watchOff := false
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Scan.FlushIntervalMS = 50
	cfg.Watch.Enabled = &watchOff

	ctrl, err := controller.New(cfg, store, cat)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range roots {
		if _, err := ctrl.AddRoot(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	engine := query.New(store, cfg.Search)
	return NewServer(engine, ctrl, &cfg.Server, zap.NewNop()), ctrl
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: %d", w.Code)
	}
}

func TestIndexStartAndConflict(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello searchable world"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, ctrl := newTestServer(t, root)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/v1/index/start", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["session_id"] == "" {
		t.Error("missing session_id")
	}

	// A second start while active conflicts; if the tiny session already
	// finished, it is accepted instead.
	w = doJSON(t, router, http.MethodPost, "/api/v1/index/start", nil)
	if w.Code != http.StatusConflict && w.Code != http.StatusAccepted {
		t.Errorf("second start: %d", w.Code)
	}

	ctrl.WaitIdle()
}

func TestIndexStartInvalidRoot(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/index/start",
		map[string]string{"root": "/does/not/exist"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLifecycleNoOpsWhenIdle(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, action := range []string{"pause", "resume", "cancel"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/index/"+action, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d", action, w.Code)
			continue
		}
		var out map[string]string
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if out["status"] != "noop" {
			t.Errorf("%s while idle: %v", action, out)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("unmistakable content"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, ctrl := newTestServer(t, root)
	router := srv.Router()

	if _, err := ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.WaitIdle()

	w := doJSON(t, router, http.MethodPost, "/api/v1/search",
		map[string]string{"query": "unmistakable"})
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Total   uint64 `json:"total"`
		Results []struct {
			Path string `json:"path"`
		} `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearchParseErrorIs400(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/search",
		map[string]string{"query": "/([bad/"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["type"] != "parse_error" {
		t.Errorf("parse errors must be typed: %v", out)
	}
}

func TestRootsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	dir := t.TempDir()

	w := doJSON(t, router, http.MethodPost, "/api/v1/roots", map[string]string{"path": dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add root: %d %s", w.Code, w.Body.String())
	}

	// Duplicate add conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/v1/roots", map[string]string{"path": dir})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate add: %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/roots", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list roots: %d", w.Code)
	}
	var list struct {
		Roots []struct {
			Path string `json:"path"`
		} `json:"roots"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Roots) != 1 || list.Roots[0].Path != dir {
		t.Errorf("roots: %+v", list.Roots)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/roots?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Errorf("remove root: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/roots?path="+dir, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("remove missing root: %d", w.Code)
	}
}

func TestStatsAndProgress(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("xyz"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, ctrl := newTestServer(t, root)
	router := srv.Router()

	if _, err := ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.WaitIdle()

	w := doJSON(t, router, http.MethodGet, "/api/v1/index/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	var stats struct {
		TotalDocuments int64 `json:"total_documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("total_documents = %d", stats.TotalDocuments)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/index/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress: %d", w.Code)
	}
	var p struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.State != "complete" {
		t.Errorf("state = %s", p.State)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("xyz"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, ctrl := newTestServer(t, root)
	if _, err := ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.WaitIdle()

	w := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sessions: %d", w.Code)
	}
	var out struct {
		Sessions []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"sessions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sessions) != 1 || out.Sessions[0].State != "complete" {
		t.Errorf("sessions: %+v", out.Sessions)
	}

	w = doJSON(t, srv.Router(), http.MethodGet, "/api/v1/sessions/"+out.Sessions[0].ID+"/errors", nil)
	if w.Code != http.StatusOK {
		t.Errorf("session errors: %d", w.Code)
	}
}
