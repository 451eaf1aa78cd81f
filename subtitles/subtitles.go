package subtitles

import (
	"fmt"
	"os"
	"strings"
	"time"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

const (
	minWordsPerCue = 3
	maxWordsPerCue = 5
)

// Segment splits narration into caption cues of 3-5 words and spreads the
// narration duration evenly across them.
//
// Even spreading does not follow the actual speech timing. A cue that holds a
// long word gets the same screen time as one holding short words; this keeps
// the segmenter independent from any speech-alignment backend.
func Segment(narration string, duration time.Duration) []types.CaptionCue {
	chunks := chunkWords(strings.Fields(narration))
	if len(chunks) == 0 || duration <= 0 {
		return nil
	}

	n := time.Duration(len(chunks))
	cues := make([]types.CaptionCue, len(chunks))
	for i, chunk := range chunks {
		idx := time.Duration(i)
		cues[i] = types.CaptionCue{
			Index: i + 1,
			Start: duration * idx / n,
			End:   duration * (idx + 1) / n,
			Text:  chunk,
		}
	}
	// integer division can leave the last cue a nanosecond short
	cues[len(cues)-1].End = duration
	return cues
}

// chunkWords closes a chunk once it holds at least 3 words and either reaches
// 5 words or its last word ends a clause
func chunkWords(words []string) []string {
	var chunks []string
	var current []string
	for _, word := range words {
		current = append(current, word)
		if len(current) >= minWordsPerCue && (len(current) >= maxWordsPerCue || endsClause(word)) {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

func endsClause(word string) bool {
	return strings.HasSuffix(word, ".") ||
		strings.HasSuffix(word, ",") ||
		strings.HasSuffix(word, "!") ||
		strings.HasSuffix(word, "?")
}

// FormatTimestamp renders an offset as an SRT timestamp (HH:MM:SS,mmm)
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// RenderSRT formats cues as an SRT document
func RenderSRT(cues []types.CaptionCue) string {
	var sb strings.Builder
	for _, cue := range cues {
		sb.WriteString(fmt.Sprintf("%d\n", cue.Index))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", FormatTimestamp(cue.Start), FormatTimestamp(cue.End)))
		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// WriteSRT writes cues to path, replacing any previous file
func WriteSRT(path string, cues []types.CaptionCue) error {
	if err := os.WriteFile(path, []byte(RenderSRT(cues)), 0644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ValidateSRT reads an SRT file back and returns its cue count. Every block
// needs a timing line and text after its index.
func ValidateSRT(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read srt: %w", err)
	}
	body := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if body == "" {
		return 0, fmt.Errorf("srt %s is empty", path)
	}

	blocks := strings.Split(body, "\n\n")
	for i, block := range blocks {
		lines := strings.Split(block, "\n")
		if len(lines) < 3 || !strings.Contains(lines[1], " --> ") || strings.TrimSpace(lines[2]) == "" {
			return i, fmt.Errorf("srt cue %d malformed: %q", i+1, block)
		}
	}
	return len(blocks), nil
}

// Filter builds the ffmpeg subtitles filter that burns the SRT file into the
// frame: white bold text, black outline, semi-opaque backing box, anchored
// bottom-center.
func Filter(cfg config.SubtitlesConfig, srtFile string) string {
	return fmt.Sprintf(
		"subtitles=%s:force_style='FontName=%s,FontSize=%d,Bold=%d,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BackColour=&H80000000,BorderStyle=4,Outline=%d,Shadow=0,Alignment=2,MarginV=%d'",
		escapeSubtitlePath(srtFile),
		cfg.Font,
		cfg.FontSize,
		boolToInt(cfg.Bold),
		cfg.Outline,
		cfg.MarginBottom,
	)
}

func escapeSubtitlePath(path string) string {
	// the subtitles filter needs escaped colons, quotes and forward slashes only
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
