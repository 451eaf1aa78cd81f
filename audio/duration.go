package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"spiritual-shorts-pipeline/command"
	"spiritual-shorts-pipeline/config"
)

// DurationResolver measures how long an audio file plays
type DurationResolver interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// NewDurationResolver returns the resolver selected by cfg.Duration
func NewDurationResolver(cfg config.AudioConfig, ffprobe string, runner command.Runner) DurationResolver {
	if cfg.Duration == "wav" {
		return WAVDuration{}
	}
	return &ProbeDuration{FFprobe: ffprobe, Runner: runner, Timeout: cfg.ProbeTimeout}
}

// ProbeDuration asks ffprobe for the container duration. It fails closed:
// a missing, zero or unparsable duration is an error.
type ProbeDuration struct {
	FFprobe string
	Runner  command.Runner
	Timeout time.Duration
}

// Duration runs ffprobe on path
func (p *ProbeDuration) Duration(ctx context.Context, path string) (time.Duration, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out, err := p.Runner.Run(ctx, p.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, command.Tail(out, 3))
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, fmt.Errorf("invalid audio duration %q", s)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// WAVDuration reads the RIFF header of a PCM WAV file: data size / byte rate
type WAVDuration struct{}

// Duration parses the header of the WAV file at path
func (WAVDuration) Duration(_ context.Context, path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReadWAVDuration(f)
}

// ReadWAVDuration walks the RIFF chunks of r until it has seen both the
// fmt and data chunks
func ReadWAVDuration(r io.Reader) (time.Duration, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("read wav header: %w", err)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var byteRate uint32
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return 0, fmt.Errorf("wav data chunk not found: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return 0, fmt.Errorf("wav fmt chunk too short (%d bytes)", size)
			}
			fmtChunk := make([]byte, size)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return 0, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			if size%2 == 1 {
				io.CopyN(io.Discard, r, 1)
			}
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("wav data chunk before fmt chunk or zero byte rate")
			}
			if size == 0 {
				return 0, fmt.Errorf("wav data chunk is empty")
			}
			secs := float64(size) / float64(byteRate)
			return time.Duration(math.Round(secs * float64(time.Second))), nil
		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return 0, fmt.Errorf("skip wav %q chunk: %w", id, err)
			}
		}
	}
}
