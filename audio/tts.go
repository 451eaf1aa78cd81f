// Package audio produces the narration track: text-to-speech, duration
// measurement and background music selection.
package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"spiritual-shorts-pipeline/command"
	"spiritual-shorts-pipeline/config"
)

// Speaker turns narration text into an audio file
type Speaker interface {
	Speak(ctx context.Context, text, outPath string) error
}

// NewSpeaker builds the Speaker selected by cfg.Speaker
func NewSpeaker(cfg config.AudioConfig, runner command.Runner) (Speaker, error) {
	switch cfg.Speaker {
	case "openai":
		return NewOpenAISpeaker(cfg)
	case "command":
		return NewCommandSpeaker(cfg, runner), nil
	default:
		return nil, fmt.Errorf("unknown speaker %q", cfg.Speaker)
	}
}

// CommandSpeaker shells out to a TTS binary. edge-tts is the default;
// a .py path runs through python3; anything else gets --text/--output.
type CommandSpeaker struct {
	cmd      string
	voice    string
	runner   command.Runner
	attempts int
	backoff  time.Duration
}

// NewCommandSpeaker creates a CommandSpeaker
func NewCommandSpeaker(cfg config.AudioConfig, runner command.Runner) *CommandSpeaker {
	return &CommandSpeaker{
		cmd:      strings.TrimSpace(cfg.Command),
		voice:    cfg.Voice,
		runner:   runner,
		attempts: 3,
		backoff:  2 * time.Second,
	}
}

func (s *CommandSpeaker) args(text, outPath string) (string, []string) {
	switch {
	case s.cmd == "edge-tts":
		return "edge-tts", []string{"--voice", s.voice, "--text", text, "--write-media", outPath}
	case strings.HasSuffix(s.cmd, ".py"):
		return "python3", []string{s.cmd, "--text", text, "--output", outPath}
	default:
		return s.cmd, []string{"--text", text, "--output", outPath}
	}
}

// Speak runs the TTS command, retrying up to three times with a growing pause
func (s *CommandSpeaker) Speak(ctx context.Context, text, outPath string) error {
	name, args := s.args(text, outPath)

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var out []byte
		out, err = s.runner.Run(ctx, name, args...)
		if err == nil {
			return checkAudioFile(outPath)
		}
		if ctx.Err() != nil {
			return err
		}
		err = fmt.Errorf("%w: %s", err, command.Tail(out, 5))
		if attempt == s.attempts {
			break
		}
		log.Printf("[audio] TTS attempt %d failed: %v, retrying...", attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
	return err
}

// OpenAISpeaker uses the OpenAI speech endpoint (tts-1)
type OpenAISpeaker struct {
	client openai.Client
	voice  string
	format string
}

// NewOpenAISpeaker creates an OpenAISpeaker reading OPENAI_API_KEY
func NewOpenAISpeaker(cfg config.AudioConfig, opts ...option.RequestOption) (*OpenAISpeaker, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAISpeaker{
		client: openai.NewClient(opts...),
		voice:  cfg.Voice,
		format: cfg.Format,
	}, nil
}

// Speak synthesizes text and streams the audio into outPath
func (s *OpenAISpeaker) Speak(ctx context.Context, text, outPath string) error {
	// voice and format go straight into the request body so any id the API accepts can be configured
	resp, err := s.client.Audio.Speech.New(ctx,
		openai.AudioSpeechNewParams{Model: openai.SpeechModelTTS1, Input: text},
		option.WithJSONSet("voice", s.voice),
		option.WithJSONSet("response_format", s.format),
	)
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create narration file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write narration: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return checkAudioFile(outPath)
}

func checkAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("narration not written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("narration file %s is empty", path)
	}
	return nil
}
