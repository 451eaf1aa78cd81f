package visuals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spiritual-shorts-pipeline/config"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Frame(0, 10, 64, 64)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeBackend struct {
	data   []byte
	err    error
	prompt string
	w, h   int
}

func (f *fakeBackend) Generate(_ context.Context, prompt string, w, h int) ([]byte, error) {
	f.prompt, f.w, f.h = prompt, w, h
	return f.data, f.err
}

func TestImageSourceSavesBackground(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{data: pngBytes(t)}
	src := NewImageSource(backend, 1080, 1920)

	v, err := src.Acquire(context.Background(), "lotus on a still lake", dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if v.Animated || v.Path != filepath.Join(dir, "background.png") {
		t.Errorf("visual = %+v", v)
	}
	if _, err := os.Stat(v.Path); err != nil {
		t.Errorf("background not written: %v", err)
	}
	if !strings.HasPrefix(backend.prompt, "lotus on a still lake, ") || backend.w != 1080 || backend.h != 1920 {
		t.Errorf("backend got %q %dx%d", backend.prompt, backend.w, backend.h)
	}
}

func TestImageSourceRejects(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		prompt  string
	}{
		{"backend error", &fakeBackend{err: errors.New("quota exceeded")}, "sky"},
		{"not an image", &fakeBackend{data: []byte("<html>rate limited</html>")}, "sky"},
		{"empty prompt", &fakeBackend{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if _, err := NewImageSource(tt.backend, 1080, 1920).Acquire(context.Background(), tt.prompt, dir); err == nil {
				t.Error("expected error")
			}
			if entries, _ := os.ReadDir(dir); len(entries) != 0 {
				t.Errorf("files left behind: %v", entries)
			}
		})
	}
}

func TestPollinationsGenerate(t *testing.T) {
	img := pngBytes(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/prompt/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("width") != "1080" || q.Get("height") != "1920" || q.Get("nologo") != "true" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write(img)
	}))
	defer srv.Close()

	p := NewPollinationsBackend(5 * time.Second)
	p.baseURL = srv.URL + "/prompt/"
	p.backoff = time.Millisecond

	data, err := p.Generate(context.Background(), "golden temple at dawn", 1080, 1920)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Error("image bytes differ")
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestPollinationsTooSmall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("error"))
	}))
	defer srv.Close()

	p := NewPollinationsBackend(5 * time.Second)
	p.baseURL = srv.URL + "/prompt/"
	p.backoff = time.Millisecond
	if _, err := p.Generate(context.Background(), "x", 10, 10); err == nil {
		t.Error("tiny response accepted")
	}
}

func TestPromptSeedStable(t *testing.T) {
	if promptSeed("a calm sea") != promptSeed("a calm sea") {
		t.Error("seed is not stable")
	}
}

func TestFrameDeterministic(t *testing.T) {
	a := Frame(7, 40, 32, 48)
	b := Frame(7, 40, 32, 48)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same frame index rendered differently")
	}
	c := Frame(17, 40, 32, 48)
	if bytes.Equal(a.Pix, c.Pix) {
		t.Error("frames 7 and 17 are identical, expected motion")
	}
	if a.Bounds().Dx() != 32 || a.Bounds().Dy() != 48 {
		t.Errorf("bounds = %v", a.Bounds())
	}
}

func TestProceduralAcquire(t *testing.T) {
	dir := t.TempDir()
	src := NewProceduralSource(config.VideoConfig{Width: 64, Height: 128, FPS: 5}, config.VisualsConfig{LoopSeconds: 2})

	v, err := src.Acquire(context.Background(), "ignored", dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !v.Animated || v.FrameRate != 5 || v.Frames != 10 {
		t.Errorf("visual = %+v", v)
	}
	if v.Path != filepath.Join(dir, "frames", "frame_%04d.png") {
		t.Errorf("Path = %s", v.Path)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "frames"))
	if len(entries) != 10 {
		t.Errorf("wrote %d frames, want 10", len(entries))
	}

	// a shorter loop replaces the earlier frames
	short := NewProceduralSource(config.VideoConfig{Width: 64, Height: 128, FPS: 5}, config.VisualsConfig{LoopSeconds: 1})
	if _, err := short.Acquire(context.Background(), "", dir); err != nil {
		t.Fatal(err)
	}
	entries, _ = os.ReadDir(filepath.Join(dir, "frames"))
	if len(entries) != 5 {
		t.Errorf("found %d frames after rerun, want 5", len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "frames", fmt.Sprintf("frame_%04d.png", 4))); err != nil {
		t.Error(err)
	}
}

func TestProceduralAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewProceduralSource(config.VideoConfig{Width: 64, Height: 64, FPS: 5}, config.VisualsConfig{LoopSeconds: 1})
	if _, err := src.Acquire(ctx, "", t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	cfg.Visuals.Source = "procedural"
	if s, err := NewSource(cfg); err != nil {
		t.Fatal(err)
	} else if _, ok := s.(*ProceduralSource); !ok {
		t.Errorf("NewSource() = %T", s)
	}

	cfg.Visuals.Source = "image"
	cfg.Visuals.ImageBackend = "pollinations"
	if s, err := NewSource(cfg); err != nil {
		t.Fatal(err)
	} else if _, ok := s.(*ImageSource); !ok {
		t.Errorf("NewSource() = %T", s)
	}
}
