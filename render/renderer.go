// Package render turns a ContentPiece into a finished vertical video:
// background, narration, captions and music composed by one ffmpeg call.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spiritual-shorts-pipeline/audio"
	"spiritual-shorts-pipeline/command"
	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/subtitles"
	"spiritual-shorts-pipeline/types"
	"spiritual-shorts-pipeline/visuals"
)

// Synthesis steps, reported in StageError.Step
const (
	StepVisual    = "visual"
	StepNarration = "narration"
	StepDuration  = "duration"
	StepCaptions  = "captions"
	StepCompose   = "compose"
)

// ErrZeroDuration is returned when narration has no measurable length
var ErrZeroDuration = errors.New("narration duration is zero")

// MusicPicker chooses a background track for a theme; "" means no music
type MusicPicker interface {
	Pick(theme string) string
}

// Synthesizer runs the synthesis steps for one piece of content
type Synthesizer struct {
	cfg        *config.Config
	visuals    visuals.Source
	speaker    audio.Speaker
	durations  audio.DurationResolver
	music      MusicPicker
	runner     command.Runner
	compositor *Compositor
}

// NewSynthesizer wires a Synthesizer; music may be nil
func NewSynthesizer(cfg *config.Config, src visuals.Source, speaker audio.Speaker, durations audio.DurationResolver, music MusicPicker, runner command.Runner) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		visuals:    src,
		speaker:    speaker,
		durations:  durations,
		music:      music,
		runner:     runner,
		compositor: NewCompositor(cfg),
	}
}

// NarrationText is what gets spoken: hook, script and call to action
func NarrationText(piece *types.ContentPiece) string {
	var parts []string
	for _, s := range []string{piece.Hook, piece.Script, piece.CallToAction} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func stepErr(step string, err error) error {
	return types.NewStageError(types.StageSynthesize, step, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Synthesize produces the final video for piece and returns its bundle.
// The video only ever appears at its final path through an atomic rename.
func (s *Synthesizer) Synthesize(ctx context.Context, piece *types.ContentPiece) (*Bundle, error) {
	dir := s.cfg.Paths.Output
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, stepErr(StepVisual, fmt.Errorf("create output dir: %w", err))
	}
	b := &Bundle{VideoPath: filepath.Join(dir, s.cfg.Render.OutputName)}

	// Step 1: background
	log.Println("[render] Acquiring background...")
	vctx, cancel := withTimeout(ctx, s.cfg.Visuals.Timeout)
	visual, err := s.visuals.Acquire(vctx, piece.VisualPrompt, dir)
	cancel()
	if err != nil {
		return nil, stepErr(StepVisual, err)
	}
	b.Visual = visual

	// Step 2: narration and its measured length
	text := NarrationText(piece)
	b.Narration = filepath.Join(dir, "narration."+s.cfg.Audio.Format)
	if err := os.Remove(b.Narration); err != nil && !os.IsNotExist(err) {
		return nil, stepErr(StepNarration, fmt.Errorf("remove stale narration: %w", err))
	}
	log.Printf("[render] Generating narration (%d words)...", len(strings.Fields(text)))
	actx, cancel := withTimeout(ctx, s.cfg.Audio.Timeout)
	err = s.speaker.Speak(actx, text, b.Narration)
	cancel()
	if err != nil {
		return nil, stepErr(StepNarration, err)
	}

	b.Duration, err = s.durations.Duration(ctx, b.Narration)
	if err != nil {
		return nil, stepErr(StepDuration, err)
	}
	if b.Duration <= 0 {
		return nil, stepErr(StepDuration, ErrZeroDuration)
	}
	log.Printf("[render] Narration: %.2fs", b.Duration.Seconds())

	// Step 3: captions
	b.SubtitlePath = filepath.Join(dir, "subtitles.srt")
	if s.cfg.Subtitles.Enabled {
		b.Cues = subtitles.Segment(text, b.Duration)
	}
	if len(b.Cues) > 0 {
		if err := subtitles.WriteSRT(b.SubtitlePath, b.Cues); err != nil {
			return nil, stepErr(StepCaptions, err)
		}
		n, err := subtitles.ValidateSRT(b.SubtitlePath)
		if err == nil && n != len(b.Cues) {
			err = fmt.Errorf("srt has %d cues, want %d", n, len(b.Cues))
		}
		if err != nil {
			return nil, stepErr(StepCaptions, err)
		}
		log.Printf("[render] Captions: %d cues", len(b.Cues))
	} else {
		os.Remove(b.SubtitlePath)
		log.Println("[render] No captions, skipping overlay")
	}

	if s.music != nil {
		b.MusicPath = s.music.Pick(piece.Theme)
	}

	// Step 4: composition
	if err := s.compose(ctx, b); err != nil {
		return nil, err
	}

	log.Printf("[render] ✅ Final video ready: %s", b.VideoPath)
	return b, nil
}

// compose renders into a temp file next to the final path and renames it into place
func (s *Synthesizer) compose(ctx context.Context, b *Bundle) error {
	tmp := filepath.Join(filepath.Dir(b.VideoPath), ".tmp-"+filepath.Base(b.VideoPath))
	args := s.compositor.Args(b, tmp)

	log.Println("[render] Composing video...")
	cctx, cancel := withTimeout(ctx, s.cfg.Render.Timeout)
	defer cancel()

	out, err := s.runner.Run(cctx, s.cfg.Render.FFmpeg, args...)
	if err != nil {
		os.Remove(tmp)
		return &types.StageError{
			Stage:  types.StageSynthesize,
			Step:   StepCompose,
			Err:    err,
			Output: command.Tail(out, 20),
		}
	}

	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return stepErr(StepCompose, fmt.Errorf("ffmpeg produced no output"))
	}
	if err := os.Rename(tmp, b.VideoPath); err != nil {
		os.Remove(tmp)
		return stepErr(StepCompose, fmt.Errorf("move video into place: %w", err))
	}
	return nil
}
