package api

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"siaguard/internal/account"
	"siaguard/internal/config"
	"siaguard/internal/counter"
	"siaguard/internal/events"
	"siaguard/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siaguard.yaml")
	if err := os.WriteFile(path, []byte("accounts:\n  - id: \"1111\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	a, err := account.New("1111", "")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	counts := counter.NewSet()
	counts.Increment(counter.Events)
	store := events.NewStore(10)
	store.Add(model.Event{AccountID: "1111", Code: "CL", Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)})
	return &Server{
		cfg:      mgr,
		accounts: account.NewRegistry(a),
		counts:   counts,
		events:   store,
		version:  "test",
		started:  time.Now(),
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || len(resp.Accounts) != 1 || resp.Accounts[0] != "1111" {
		t.Fatalf("response = %+v", resp)
	}
	if !resp.Server.TCP {
		t.Fatal("tcp transport not reported")
	}
}

func TestHandleCounters(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/counters", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Counters map[string]int64 `json:"counters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Counters["events"] != 1 {
		t.Fatalf("counters = %v", resp.Counters)
	}
}

func TestHandleEvents(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/events?limit=5", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Events []model.Event `json:"events"`
		Count  int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Events[0].Code != "CL" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHandleEventsBadSince(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/events?since=notatime", nil))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/counters", nil))
	if rec.Code != 405 {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
