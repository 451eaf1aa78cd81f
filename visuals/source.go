// Package visuals acquires the background of a short: a generated still
// image or a procedurally animated loop of frames.
package visuals

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"

	"spiritual-shorts-pipeline/config"
)

// Visual is the acquired background handed to the compositor
type Visual struct {
	// Path is a still image, or a printf frame pattern when Animated
	Path      string
	Animated  bool
	FrameRate int
	Frames    int
}

// Source produces a background for a visual prompt inside dir
type Source interface {
	Acquire(ctx context.Context, prompt, dir string) (*Visual, error)
}

// ImageBackend generates one image for a prompt
type ImageBackend interface {
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// NewSource builds the Source selected by cfg.Visuals.Source
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.Visuals.Source {
	case "procedural":
		return NewProceduralSource(cfg.Video, cfg.Visuals), nil
	case "image":
		var backend ImageBackend
		switch cfg.Visuals.ImageBackend {
		case "openai":
			b, err := NewOpenAIBackend(cfg.Visuals.ImageModel)
			if err != nil {
				return nil, err
			}
			backend = b
		case "pollinations":
			backend = NewPollinationsBackend(cfg.Visuals.Timeout)
		default:
			return nil, fmt.Errorf("unknown image backend %q", cfg.Visuals.ImageBackend)
		}
		return NewImageSource(backend, cfg.Video.Width, cfg.Video.Height), nil
	default:
		return nil, fmt.Errorf("unknown visual source %q", cfg.Visuals.Source)
	}
}

// ImageSource asks an ImageBackend for a still background
type ImageSource struct {
	backend ImageBackend
	width   int
	height  int
}

// NewImageSource creates an ImageSource for width x height output
func NewImageSource(backend ImageBackend, width, height int) *ImageSource {
	return &ImageSource{backend: backend, width: width, height: height}
}

// Acquire generates the image, checks that it decodes, and saves it as background.<format>
func (s *ImageSource) Acquire(ctx context.Context, prompt, dir string) (*Visual, error) {
	if prompt == "" {
		return nil, fmt.Errorf("empty visual prompt")
	}
	log.Printf("[visuals] Generating background: %q", truncate(prompt, 60))

	data, err := s.backend.Generate(ctx, enhancePrompt(prompt), s.width, s.height)
	if err != nil {
		return nil, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("backend returned an undecodable image (%d bytes): %w", len(data), err)
	}

	outFile := filepath.Join(dir, "background."+format)
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return nil, fmt.Errorf("save background: %w", err)
	}

	log.Printf("[visuals] ✅ Background saved: %s", outFile)
	return &Visual{Path: outFile}, nil
}

// enhancePrompt adds the channel's look to every prompt
func enhancePrompt(base string) string {
	return fmt.Sprintf("%s, ethereal spiritual atmosphere, soft glowing light, vertical composition, "+
		"high detail, no text, no watermark", base)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
