package visuals

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"

	"spiritual-shorts-pipeline/config"
)

// frames are drawn at a quarter of the output size and scaled up by ffmpeg
const proceduralScale = 4

// ProceduralSource draws a seamless animated loop: a dark violet gradient
// with a slowly orbiting golden flare that pulses once per loop. Every
// frame is a pure function of its index, so no external call is made.
type ProceduralSource struct {
	width  int
	height int
	fps    int
	frames int
}

// NewProceduralSource creates a ProceduralSource for the configured video size
func NewProceduralSource(video config.VideoConfig, visuals config.VisualsConfig) *ProceduralSource {
	w := max(video.Width/proceduralScale, 16)
	h := max(video.Height/proceduralScale, 16)
	n := max(int(math.Round(visuals.LoopSeconds*float64(video.FPS))), 1)
	return &ProceduralSource{width: w, height: h, fps: video.FPS, frames: n}
}

// Acquire writes dir/frames/frame_%04d.png, replacing any earlier frames
func (p *ProceduralSource) Acquire(ctx context.Context, _ string, dir string) (*Visual, error) {
	framesDir := filepath.Join(dir, "frames")
	if err := os.RemoveAll(framesDir); err != nil {
		return nil, fmt.Errorf("clear frames: %w", err)
	}
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	log.Printf("[visuals] Drawing %d procedural frames (%dx%d)...", p.frames, p.width, p.height)
	for i := 0; i < p.frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writePNG(filepath.Join(framesDir, fmt.Sprintf("frame_%04d.png", i)), Frame(i, p.frames, p.width, p.height)); err != nil {
			return nil, err
		}
	}

	return &Visual{
		Path:      filepath.Join(framesDir, "frame_%04d.png"),
		Animated:  true,
		FrameRate: p.fps,
		Frames:    p.frames,
	}, nil
}

// Frame draws frame i of an n-frame loop at w x h
func Frame(i, n, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	phase := 2 * math.Pi * float64(i) / float64(n)
	pulse := 0.5 + 0.5*math.Sin(phase)

	cx := float64(w)/2 + 0.25*float64(w)*math.Cos(phase)
	cy := float64(h)/2 + 0.15*float64(h)*math.Sin(2*phase)
	sigma := 0.22 * float64(w)
	glow := 0.6 + 0.4*pulse
	shade := 0.85 + 0.15*pulse

	for y := 0; y < h; y++ {
		v := float64(y) / float64(h)
		baseR := (20 + 40*v) * shade
		baseG := (10 + 10*v) * shade
		baseB := (45 + 35*v) * shade

		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			flare := glow * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))

			img.SetRGBA(x, y, color.RGBA{
				R: channel(baseR + 255*flare),
				G: channel(baseG + 200*flare),
				B: channel(baseB + 120*flare),
				A: 255,
			})
		}
	}
	return img
}

func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
