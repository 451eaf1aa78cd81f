package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spiritual-shorts-pipeline/authenticity"
	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/content"
	"spiritual-shorts-pipeline/render"
	"spiritual-shorts-pipeline/store"
	"spiritual-shorts-pipeline/types"
)

type fakePicker struct{}

func (fakePicker) Pick(context.Context) (string, types.ContentType) {
	return "meditation and inner peace", types.ContentMeditation
}

// scriptedGenerator returns pieces titled by attempt; scores are looked up by the fake gate
type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (g *scriptedGenerator) Generate(ctx context.Context, req content.Request) (*types.ContentPiece, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return &types.ContentPiece{
		ID:          fmt.Sprintf("piece-%d", n),
		Title:       fmt.Sprintf("attempt %d", n),
		Script:      "script",
		Theme:       req.Theme,
		ContentType: req.ContentType,
		Source:      types.SourceGenerated,
		Status:      types.StatusGenerated,
	}, nil
}

// blockingTrends hangs until its context ends, like an unresponsive Reddit API
type blockingTrends struct{}

func (blockingTrends) Titles(ctx context.Context) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeFallback struct{}

func (fakeFallback) Piece(req content.Request) *types.ContentPiece {
	return &types.ContentPiece{
		ID:          "fallback",
		Title:       "fallback",
		Script:      "script",
		Theme:       req.Theme,
		ContentType: req.ContentType,
		Source:      types.SourceFallback,
		Status:      types.StatusGenerated,
	}
}

// fakeGate scores generated pieces in call order and the fallback separately
type fakeGate struct {
	scores   []float64
	fallback float64
	next     int
}

func (g *fakeGate) Score(piece *types.ContentPiece) float64 {
	if piece.Source == types.SourceFallback {
		return g.fallback
	}
	s := g.scores[len(g.scores)-1]
	if g.next < len(g.scores) {
		s = g.scores[g.next]
	}
	g.next++
	return s
}

func (g *fakeGate) Passes(score float64) bool { return score >= 85 }

type fakeSynth struct {
	dir   string
	err   error
	calls []*types.ContentPiece
}

func (s *fakeSynth) Synthesize(_ context.Context, piece *types.ContentPiece) (*render.Bundle, error) {
	s.calls = append(s.calls, piece)
	if s.err != nil {
		return nil, s.err
	}
	path := filepath.Join(s.dir, "spiritual_short.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return nil, err
	}
	return &render.Bundle{VideoPath: path, Duration: 20 * time.Second}, nil
}

type fakePublisher struct {
	err   error
	calls []*types.VideoMetadata
}

func (p *fakePublisher) Publish(_ context.Context, _ string, meta *types.VideoMetadata) (string, error) {
	p.calls = append(p.calls, meta)
	if p.err != nil {
		return "", p.err
	}
	return "vid123", nil
}

type fakeNotifier struct {
	events []interface{}
}

func (n *fakeNotifier) Notify(_ context.Context, event interface{}) error {
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

type harness struct {
	engine *Engine
	gen    *scriptedGenerator
	gate   *fakeGate
	synth  *fakeSynth
	pub    *fakePublisher
	store  *store.FileStore
	events *fakeNotifier
}

func newHarness(t *testing.T, scores []float64, fallback float64) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Quality.MaxAttempts = 3
	cfg.Paths.Output = dir
	cfg.Paths.Logs = filepath.Join(dir, "logs")

	h := &harness{
		gen:    &scriptedGenerator{},
		gate:   &fakeGate{scores: scores, fallback: fallback},
		synth:  &fakeSynth{dir: dir},
		pub:    &fakePublisher{},
		store:  store.NewFileStore(filepath.Join(dir, "content.json"), filepath.Join(dir, "stats.json")),
		events: &fakeNotifier{},
	}
	h.engine = New(cfg, Deps{
		Picker:      fakePicker{},
		Generator:   h.gen,
		Fallback:    fakeFallback{},
		Gate:        h.gate,
		Synthesizer: h.synth,
		Publisher:   h.pub,
		Store:       h.store,
		Notifier:    h.events,
	})
	return h
}

func (h *harness) content(t *testing.T) []types.ContentPiece {
	t.Helper()
	pieces, err := h.store.ListContent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return pieces
}

func TestRegeneratesUntilPass(t *testing.T) {
	h := newHarness(t, []float64{60, 70, 90}, 0)

	report, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if h.gen.calls != 3 {
		t.Errorf("generator called %d times, want 3", h.gen.calls)
	}
	if report.Regenerations != 2 || report.Attempts != 3 {
		t.Errorf("regenerations=%d attempts=%d, want 2 and 3", report.Regenerations, report.Attempts)
	}
	if report.Outcome != OutcomePublished || report.ExternalID != "vid123" || report.Score != 90 {
		t.Errorf("report = %+v", report)
	}
	if len(h.synth.calls) != 1 || h.synth.calls[0].Title != "attempt 3" {
		t.Errorf("synthesized %d pieces", len(h.synth.calls))
	}

	stats := h.engine.State().Stats()
	if stats.TotalCycles != 1 || stats.TotalPublished != 1 || stats.TotalRegenerations != 2 || stats.LastVideoID != "vid123" {
		t.Errorf("stats = %+v", stats)
	}

	pieces := h.content(t)
	if len(pieces) != 3 {
		t.Fatalf("content log has %d pieces, want 3", len(pieces))
	}
	if pieces[0].Status != types.StatusPublished || pieces[0].ExternalID != "vid123" || pieces[0].VideoPath == "" {
		t.Errorf("published piece = %+v", pieces[0])
	}
	for _, p := range pieces[1:] {
		if p.Status != types.StatusRejected {
			t.Errorf("piece %s status = %s, want rejected", p.ID, p.Status)
		}
	}

	if matches, _ := filepath.Glob(filepath.Join(h.engine.cfg.Paths.Logs, "upload_*.json")); len(matches) != 1 {
		t.Errorf("upload logs = %v", matches)
	}
	if len(h.events.events) != 1 {
		t.Errorf("events = %d, want 1", len(h.events.events))
	}
	if h.engine.State().Phase() != PhaseIdle {
		t.Errorf("phase = %s after cycle", h.engine.State().Phase())
	}
}

func TestBelowThresholdNeverPublishes(t *testing.T) {
	h := newHarness(t, []float64{50}, 40)

	report, err := h.engine.RunCycle(context.Background())
	if !errors.Is(err, authenticity.ErrBelowThreshold) {
		t.Fatalf("err = %v, want ErrBelowThreshold", err)
	}
	if types.StageOf(err) != types.StageScore {
		t.Errorf("stage = %q", types.StageOf(err))
	}
	if h.gen.calls != 3 {
		t.Errorf("generator called %d times, want max attempts 3", h.gen.calls)
	}
	if len(h.synth.calls) != 0 || len(h.pub.calls) != 0 {
		t.Error("below-threshold content reached synthesis or publishing")
	}
	if report.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s", report.Outcome)
	}

	for _, p := range h.content(t) {
		if p.Status == types.StatusPublished {
			t.Errorf("piece %s published with score %.1f", p.ID, p.AuthenticityScore)
		}
	}
	stats := h.engine.State().Stats()
	if stats.TotalCycles != 1 || stats.TotalFailed != 1 || stats.TotalPublished != 0 || stats.LastStage != types.StageScore {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFallbackAfterExhaustion(t *testing.T) {
	h := newHarness(t, []float64{50}, 92)

	report, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Source != types.SourceFallback || report.Attempts != 4 {
		t.Errorf("source=%s attempts=%d, want fallback and 4", report.Source, report.Attempts)
	}
	if report.Regenerations != 2 {
		t.Errorf("regenerations = %d, want 2", report.Regenerations)
	}
	if len(h.pub.calls) != 1 {
		t.Fatalf("publish calls = %d", len(h.pub.calls))
	}
	if stats := h.engine.State().Stats(); stats.TotalFallbacks != 1 || stats.TotalPublished != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGenerationFailureEndsCycle(t *testing.T) {
	h := newHarness(t, []float64{90}, 92)
	h.gen.err = errors.New("provider down")

	_, err := h.engine.RunCycle(context.Background())
	if types.StageOf(err) != types.StageGenerate {
		t.Fatalf("err = %v, want generate stage", err)
	}
	if h.gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", h.gen.calls)
	}
	if len(h.synth.calls) != 0 {
		t.Error("synthesis ran after generation failure")
	}
	if stats := h.engine.State().Stats(); stats.TotalFallbacks != 0 || stats.LastError == "" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSynthesisFailureSkipsPublish(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	h.synth.err = &types.StageError{Stage: types.StageSynthesize, Step: render.StepCompose, Err: errors.New("ffmpeg: not found")}

	report, err := h.engine.RunCycle(context.Background())
	if types.StageOf(err) != types.StageSynthesize {
		t.Fatalf("err = %v", err)
	}
	if report.Step != render.StepCompose {
		t.Errorf("step = %q", report.Step)
	}
	if len(h.pub.calls) != 0 {
		t.Error("publish attempted after synthesis failure")
	}
	pieces := h.content(t)
	if len(pieces) != 1 || pieces[0].Status != types.StatusGenerated {
		t.Errorf("content = %+v", pieces)
	}
}

func TestPublishFailureKeepsVideo(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	h.pub.err = errors.New("quota exceeded")

	report, err := h.engine.RunCycle(context.Background())
	if types.StageOf(err) != types.StagePublish {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(report.VideoPath); statErr != nil {
		t.Errorf("video removed after publish failure: %v", statErr)
	}
	pieces := h.content(t)
	if len(pieces) != 1 || pieces[0].Status == types.StatusPublished || pieces[0].VideoPath != report.VideoPath {
		t.Errorf("content = %+v", pieces)
	}
	if stats := h.engine.State().Stats(); stats.LastStage != types.StagePublish || stats.TotalPublished != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGenerationTimeout(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	h.engine.cfg.Content.Timeout = 20 * time.Millisecond
	h.gen.block = true

	_, err := h.engine.RunCycle(context.Background())
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if types.StageOf(err) != types.StageGenerate {
		t.Errorf("stage = %q", types.StageOf(err))
	}
}

func TestHungTrendSourceFallsBackToRotation(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	themes := []string{"gratitude and grace", "karma and dharma"}
	h.engine.deps.Picker = content.NewThemePicker(themes, blockingTrends{})
	h.engine.cfg.Content.Timeout = 50 * time.Millisecond

	type result struct {
		report *Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := h.engine.RunCycle(context.Background())
		done <- result{report, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("RunCycle: %v", r.err)
		}
		if r.report.Outcome != OutcomePublished || r.report.Theme != themes[0] {
			t.Errorf("report = %+v, want published %q", r.report, themes[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cycle still blocked in the theme picker")
	}
}

func TestCancelledCycleStillRecords(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	h.gen.block = true
	h.engine.cfg.Content.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := h.engine.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}

	stats, err := h.store.LoadStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCycles != 1 || stats.TotalFailed != 1 {
		t.Errorf("persisted stats = %+v", stats)
	}
}

func TestRestoreContinuesCounters(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	ctx := context.Background()
	if err := h.store.SaveStats(ctx, types.CycleStats{TotalCycles: 10, TotalPublished: 8}); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := h.store.LoadStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCycles != 11 || stats.TotalPublished != 9 {
		t.Errorf("stats = %+v", stats)
	}
	snap := h.engine.State().Snapshot()
	if snap.LastReport == nil || snap.LastReport.Outcome != OutcomePublished {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPublishedMetadata(t *testing.T) {
	h := newHarness(t, []float64{90}, 0)
	if _, err := h.engine.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	meta := h.pub.calls[0]
	if meta.Title != "attempt 1 #Shorts" || meta.CategoryID != "22" {
		t.Errorf("meta = %+v", meta)
	}
}
