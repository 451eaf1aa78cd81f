package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"spiritual-shorts-pipeline/engine"
	"spiritual-shorts-pipeline/store"
	"spiritual-shorts-pipeline/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, n int) *Server {
	t.Helper()
	dir := t.TempDir()
	st := store.NewFileStore(filepath.Join(dir, "content.json"), filepath.Join(dir, "stats.json"))
	for i := 0; i < n; i++ {
		piece := &types.ContentPiece{
			ID:                string(rune('A' + i)),
			Title:             "title",
			Status:            types.StatusPublished,
			AuthenticityScore: 90,
			CreatedAt:         time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
		}
		if err := st.AppendContent(context.Background(), piece); err != nil {
			t.Fatal(err)
		}
	}
	return New(engine.NewState(), st)
}

func get(t *testing.T, s *Server, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: decode body %q: %v", path, rec.Body.String(), err)
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	code, body := get(t, newTestServer(t, 0), "/healthz")
	if code != http.StatusOK || body["status"] != "healthy" || body["phase"] != "idle" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestStats(t *testing.T) {
	code, body := get(t, newTestServer(t, 3), "/stats")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	summary, ok := body["content"].(map[string]interface{})
	if !ok {
		t.Fatalf("body = %v", body)
	}
	if summary["total_content"] != float64(3) || summary["published"] != float64(3) || summary["latest_content_id"] != "C" {
		t.Errorf("summary = %v", summary)
	}
	if _, ok := body["engine"].(map[string]interface{}); !ok {
		t.Errorf("engine snapshot missing: %v", body)
	}
}

func TestContent(t *testing.T) {
	s := newTestServer(t, 5)

	tests := []struct {
		path  string
		code  int
		count float64
	}{
		{"/content", http.StatusOK, 5},
		{"/content?limit=2", http.StatusOK, 2},
		{"/content?limit=0", http.StatusBadRequest, 0},
		{"/content?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		code, body := get(t, s, tt.path)
		if code != tt.code {
			t.Errorf("%s: status %d, want %d", tt.path, code, tt.code)
			continue
		}
		if code == http.StatusOK && body["count"] != tt.count {
			t.Errorf("%s: count %v, want %v", tt.path, body["count"], tt.count)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
