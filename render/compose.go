package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/subtitles"
	"spiritual-shorts-pipeline/types"
	"spiritual-shorts-pipeline/visuals"
)

// Bundle is everything one composition needs. It lives for a single synthesis.
type Bundle struct {
	Visual       *visuals.Visual
	Narration    string
	Duration     time.Duration
	Cues         []types.CaptionCue
	SubtitlePath string
	MusicPath    string
	VideoPath    string
}

// Compositor builds the single ffmpeg invocation that renders a Bundle
type Compositor struct {
	cfg *config.Config
}

// NewCompositor creates a Compositor
func NewCompositor(cfg *config.Config) *Compositor {
	return &Compositor{cfg: cfg}
}

// FrameCount is the number of output frames for d at fps
func FrameCount(d time.Duration, fps int) int {
	return int(math.Ceil(d.Seconds() * float64(fps)))
}

// KenBurnsFilter zooms from 1.0 to maxZoom over frames output frames, the
// crop window re-centered every frame. Input is expected at twice the
// output size so the zoom does not jitter.
func KenBurnsFilter(width, height, fps, frames int, maxZoom float64) string {
	if frames < 1 {
		frames = 1
	}
	return fmt.Sprintf(
		"zoompan=z='min(1+%.4f*on/%d,%.4f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d",
		maxZoom-1, frames, maxZoom, width, height, fps,
	)
}

// VideoFilter is the video chain: cover-scale and crop to the output size,
// optional Ken Burns on stills, pixel format, optional caption burn-in.
func (c *Compositor) VideoFilter(b *Bundle) string {
	w, h, fps := c.cfg.Video.Width, c.cfg.Video.Height, c.cfg.Video.FPS
	kenBurns := c.cfg.Visuals.KenBurns && !b.Visual.Animated

	var parts []string
	if kenBurns {
		parts = append(parts,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", 2*w, 2*h),
			fmt.Sprintf("crop=%d:%d", 2*w, 2*h),
			KenBurnsFilter(w, h, fps, FrameCount(b.Duration, fps), c.cfg.Visuals.MaxZoom),
		)
	} else {
		parts = append(parts,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
			fmt.Sprintf("crop=%d:%d", w, h),
			fmt.Sprintf("fps=%d", fps),
		)
	}
	parts = append(parts, "setsar=1", "format=yuv420p")
	if len(b.Cues) > 0 && b.SubtitlePath != "" {
		parts = append(parts, subtitles.Filter(c.cfg.Subtitles, b.SubtitlePath))
	}
	return "[0:v]" + strings.Join(parts, ",") + "[v]"
}

// AudioFilter mixes narration at full volume with optional music; the mix
// lasts as long as the narration
func (c *Compositor) AudioFilter(b *Bundle) string {
	if b.MusicPath == "" {
		return "[1:a]volume=1.0[a]"
	}
	return fmt.Sprintf(
		"[1:a]volume=1.0[narr];[2:a]volume=%s[music];[narr][music]amix=inputs=2:duration=first:dropout_transition=0[a]",
		strconv.FormatFloat(c.cfg.Audio.MusicVolume, 'f', -1, 64),
	)
}

// Args returns the ffmpeg arguments rendering b into out
func (c *Compositor) Args(b *Bundle, out string) []string {
	fps := strconv.Itoa(c.cfg.Video.FPS)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	if b.Visual.Animated {
		rate := b.Visual.FrameRate
		if rate <= 0 {
			rate = c.cfg.Video.FPS
		}
		args = append(args, "-stream_loop", "-1", "-framerate", strconv.Itoa(rate), "-i", b.Visual.Path)
	} else {
		args = append(args, "-loop", "1", "-framerate", fps, "-i", b.Visual.Path)
	}
	args = append(args, "-i", b.Narration)
	if b.MusicPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", b.MusicPath)
	}

	args = append(args,
		"-filter_complex", c.VideoFilter(b)+";"+c.AudioFilter(b),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-preset", c.cfg.Render.Preset,
		"-crf", strconv.Itoa(c.cfg.Render.CRF),
		"-r", fps,
		"-c:a", "aac",
		"-b:a", c.cfg.Render.AudioBitrate,
		"-t", fmt.Sprintf("%.3f", b.Duration.Seconds()),
		"-movflags", "+faststart",
		out,
	)
	return args
}
