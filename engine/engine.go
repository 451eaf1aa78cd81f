// Package engine runs publishing cycles: generate, score, synthesize,
// publish, record. It owns the run stats and drives the schedule.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"spiritual-shorts-pipeline/authenticity"
	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/content"
	"spiritual-shorts-pipeline/notify"
	"spiritual-shorts-pipeline/render"
	"spiritual-shorts-pipeline/store"
	"spiritual-shorts-pipeline/types"
	"spiritual-shorts-pipeline/upload"
)

// Picker chooses the theme and content type of the next cycle
type Picker interface {
	Pick(ctx context.Context) (string, types.ContentType)
}

// Scorer is the authenticity gate
type Scorer interface {
	Score(piece *types.ContentPiece) float64
	Passes(score float64) bool
}

// Fallback produces deterministic content once the generator has used up its attempts
type Fallback interface {
	Piece(req content.Request) *types.ContentPiece
}

// Synthesizer turns an approved piece into a finished video
type Synthesizer interface {
	Synthesize(ctx context.Context, piece *types.ContentPiece) (*render.Bundle, error)
}

// Deps are the collaborators of an Engine. Notifier may be nil.
type Deps struct {
	Picker      Picker
	Generator   content.Generator
	Fallback    Fallback
	Gate        Scorer
	Synthesizer Synthesizer
	Publisher   upload.Publisher
	Store       store.Store
	Notifier    notify.Notifier
	Now         func() time.Time
}

// Outcome of a cycle
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// Report summarizes one cycle; it is logged and sent as the cycle event
type Report struct {
	RunID         string            `json:"run_id"`
	Outcome       string            `json:"outcome"`
	Stage         types.Stage       `json:"stage,omitempty"`
	Step          string            `json:"step,omitempty"`
	Error         string            `json:"error,omitempty"`
	Theme         string            `json:"theme"`
	ContentType   types.ContentType `json:"content_type"`
	ContentID     string            `json:"content_id,omitempty"`
	Source        types.Source      `json:"source,omitempty"`
	Score         float64           `json:"score"`
	Attempts      int               `json:"attempts"`
	Regenerations int               `json:"regenerations"`
	VideoPath     string            `json:"video_path,omitempty"`
	ExternalID    string            `json:"external_id,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	Elapsed       time.Duration     `json:"elapsed"`
}

// Engine runs one cycle at a time
type Engine struct {
	cfg   *config.Config
	deps  Deps
	state *State
}

// New creates an Engine with fresh state
func New(cfg *config.Config, deps Deps) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{cfg: cfg, deps: deps, state: NewState()}
}

// State exposes the engine state for readers
func (e *Engine) State() *State { return e.state }

// Restore loads persisted stats so counters survive restarts
func (e *Engine) Restore(ctx context.Context) error {
	stats, err := e.deps.Store.LoadStats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	e.state.setStats(stats)
	log.Printf("[engine] Restored stats: %d cycles, %d published", stats.TotalCycles, stats.TotalPublished)
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// RunCycle runs a full cycle. The returned error is the stage error that
// ended the cycle, if any; it never means the process should stop.
func (e *Engine) RunCycle(ctx context.Context) (*Report, error) {
	start := e.deps.Now()
	report := &Report{RunID: uuid.NewString(), StartedAt: start}

	pctx, cancel := withTimeout(ctx, e.cfg.Content.Timeout)
	theme, contentType := e.deps.Picker.Pick(pctx)
	cancel()
	report.Theme, report.ContentType = theme, contentType
	log.Printf("[engine] 🌀 Cycle %s starting: %q (%s)", report.RunID[:8], theme, contentType)

	req := content.Request{
		Theme:       theme,
		ContentType: contentType,
		TargetWords: content.TargetWords(e.cfg.Video.TargetDuration),
	}

	piece, err := e.approve(ctx, req, report)
	if err != nil {
		return e.finish(ctx, report, piece, err)
	}

	// Synthesis
	e.state.setPhase(PhaseSynthesizing)
	bundle, err := e.deps.Synthesizer.Synthesize(ctx, piece)
	if err != nil {
		return e.finish(ctx, report, piece, types.NewStageError(types.StageSynthesize, "", err))
	}
	piece.VideoPath = bundle.VideoPath
	report.VideoPath = bundle.VideoPath

	// Publishing
	e.state.setPhase(PhasePublishing)
	meta := upload.BuildMetadata(e.cfg.Upload, piece)
	uctx, cancel := withTimeout(ctx, e.cfg.Upload.Timeout)
	id, err := e.deps.Publisher.Publish(uctx, bundle.VideoPath, meta)
	cancel()
	if err != nil {
		log.Printf("[engine] Video kept at %s for a later publish", bundle.VideoPath)
		return e.finish(ctx, report, piece, types.NewStageError(types.StagePublish, "", err))
	}
	piece.Status = types.StatusPublished
	piece.ExternalID = id
	report.ExternalID = id

	if _, err := upload.LogUpload(e.cfg.Paths.Logs, id, bundle.VideoPath, piece, meta); err != nil {
		log.Printf("[engine] ⚠️  Upload log failed: %v", err)
	}

	return e.finish(ctx, report, piece, nil)
}

// approve runs the generate/score loop, bounded by quality.max_attempts,
// then tries the fallback template once
func (e *Engine) approve(ctx context.Context, req content.Request, report *Report) (*types.ContentPiece, error) {
	maxAttempts := e.cfg.Quality.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last *types.ContentPiece
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.state.setPhase(PhaseRegenerating)
			report.Regenerations++
		}

		e.state.setPhase(PhaseGenerating)
		gctx, cancel := withTimeout(ctx, e.cfg.Content.Timeout)
		piece, err := e.deps.Generator.Generate(gctx, req)
		cancel()
		if err != nil {
			return last, types.NewStageError(types.StageGenerate, "", err)
		}

		e.state.setPhase(PhaseScoring)
		if e.score(piece, attempt, report) {
			return piece, nil
		}
		e.recordRejected(ctx, piece)
		last = piece
	}

	if e.deps.Fallback == nil {
		return last, types.NewStageError(types.StageScore, "", authenticity.ErrBelowThreshold)
	}

	log.Printf("[engine] %d attempts below threshold, using fallback template", maxAttempts)
	piece := e.deps.Fallback.Piece(req)
	if e.score(piece, maxAttempts+1, report) {
		return piece, nil
	}
	e.recordRejected(ctx, piece)
	return piece, types.NewStageError(types.StageScore, "fallback", authenticity.ErrBelowThreshold)
}

// score stamps the gate result on piece and reports whether it passed
func (e *Engine) score(piece *types.ContentPiece, attempt int, report *Report) bool {
	score := e.deps.Gate.Score(piece)
	piece.AuthenticityScore = score
	piece.Attempt = attempt
	report.Attempts = attempt
	report.Score = score
	report.ContentID = piece.ID
	report.Source = piece.Source

	if e.deps.Gate.Passes(score) {
		log.Printf("[engine] ✅ Authenticity %.1f (attempt %d, %s)", score, attempt, piece.Source)
		return true
	}
	piece.Status = types.StatusRejected
	log.Printf("[engine] Authenticity %.1f below threshold (attempt %d, %s)", score, attempt, piece.Source)
	return false
}

func (e *Engine) recordRejected(ctx context.Context, piece *types.ContentPiece) {
	if err := e.deps.Store.AppendContent(context.WithoutCancel(ctx), piece); err != nil {
		log.Printf("[engine] ⚠️  Could not record rejected piece: %v", err)
	}
}

// finish updates the stats, persists the piece and stats, and emits the
// cycle event. Recording runs even when ctx was cancelled.
func (e *Engine) finish(ctx context.Context, report *Report, piece *types.ContentPiece, cycleErr error) (*Report, error) {
	e.state.setPhase(PhaseRecording)
	defer e.state.setPhase(PhaseIdle)
	rctx := context.WithoutCancel(ctx)

	report.Elapsed = e.deps.Now().Sub(report.StartedAt)
	stats := e.state.Stats()
	stats.TotalCycles++
	stats.LastCycleAt = report.StartedAt
	stats.TotalRegenerations += report.Regenerations
	if report.Source == types.SourceFallback {
		stats.TotalFallbacks++
	}

	if cycleErr != nil {
		report.Outcome = OutcomeFailed
		report.Error = cycleErr.Error()
		report.Stage = types.StageOf(cycleErr)
		var se *types.StageError
		if errors.As(cycleErr, &se) {
			report.Step = se.Step
		}
		stats.TotalFailed++
		stats.LastError = report.Error
		stats.LastStage = report.Stage
	} else {
		report.Outcome = OutcomePublished
		stats.TotalPublished++
		stats.LastError = ""
		stats.LastStage = ""
		stats.LastVideoID = report.ExternalID
	}
	e.state.setStats(stats)

	if piece != nil && piece.Status != types.StatusRejected {
		if err := e.deps.Store.AppendContent(rctx, piece); err != nil {
			log.Printf("[engine] ⚠️  Could not record content: %v", err)
		}
	}
	if err := e.deps.Store.SaveStats(rctx, stats); err != nil {
		log.Printf("[engine] ⚠️  Could not save stats: %v", err)
	}

	nctx, cancel := context.WithTimeout(rctx, 5*time.Second)
	if err := e.deps.Notifier.Notify(nctx, report); err != nil {
		log.Printf("[engine] ⚠️  Notify failed: %v", err)
	}
	cancel()
	e.state.setReport(report)

	if cycleErr != nil {
		var se *types.StageError
		if errors.As(cycleErr, &se) && se.Output != "" {
			log.Printf("[engine] %s output:\n%s", se.Stage, se.Output)
		}
		log.Printf("[engine] ❌ Cycle %s failed at %s after %d attempt(s), %d regeneration(s): %v",
			report.RunID[:8], report.Stage, report.Attempts, report.Regenerations, cycleErr)
		return report, cycleErr
	}
	log.Printf("[engine] ✅ Cycle %s published %s (score %.1f, %d regeneration(s), %s)",
		report.RunID[:8], report.ExternalID, report.Score, report.Regenerations, report.Elapsed.Round(time.Second))
	return report, nil
}
