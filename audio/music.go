package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var musicExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true}

// MusicLibrary picks a background track for a theme from a directory of
// tracks. tags.json (file -> tags) steers the choice; the same track is
// never picked twice in a row. Missing music is not an error.
type MusicLibrary struct {
	dir      string
	fallback string
	usageLog string
	tags     map[string][]string

	mu   sync.Mutex
	last string
}

// NewMusicLibrary loads dir/tags.json and the usage log. dir may be empty,
// in which case only fallback (a single file) is used.
func NewMusicLibrary(dir, fallback string) (*MusicLibrary, error) {
	lib := &MusicLibrary{dir: dir, fallback: fallback, tags: make(map[string][]string)}
	if dir == "" {
		return lib, nil
	}

	tracks, err := scanTracks(dir)
	if err != nil {
		return nil, fmt.Errorf("scan music dir: %w", err)
	}
	for _, t := range tracks {
		lib.tags[t] = nil
	}

	tags, err := loadTagsJSON(filepath.Join(dir, "tags.json"))
	if err != nil {
		return nil, fmt.Errorf("load music tags: %w", err)
	}
	for file, t := range tags {
		if _, ok := lib.tags[file]; ok {
			lib.tags[file] = t
		}
	}

	lib.usageLog = filepath.Join(dir, ".music_usage.json")
	lib.last = loadLastUsed(lib.usageLog)
	return lib, nil
}

type scoredTrack struct {
	file  string
	score int
}

// Pick returns the path of the best track for theme, or "" when no music is available
func (m *MusicLibrary) Pick(theme string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tags) == 0 {
		if m.fallback != "" {
			if _, err := os.Stat(m.fallback); err == nil {
				return m.fallback
			}
		}
		return ""
	}

	var candidates []scoredTrack
	for file, tags := range m.tags {
		if file == m.last && len(m.tags) > 1 {
			continue
		}
		candidates = append(candidates, scoredTrack{file, matchScore(theme, tags)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].file < candidates[j].file
	})

	pick := candidates[0]
	m.last = pick.file
	m.saveLastUsed()

	log.Printf("[audio] Music: picked %q for %q (score: %d)", pick.file, theme, pick.score)
	return filepath.Join(m.dir, pick.file)
}

// matchScore counts theme words found among a track's tags
func matchScore(theme string, tags []string) int {
	tagSet := make(map[string]bool)
	for _, t := range tags {
		tagSet[strings.ToLower(t)] = true
	}
	score := 0
	for _, w := range strings.Fields(strings.ToLower(theme)) {
		if tagSet[w] {
			score += 10
		}
	}
	return score
}

func scanTracks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[audio] Warning: music dir %s not found, no music tracks", dir)
			return nil, nil
		}
		return nil, err
	}
	var tracks []string
	for _, e := range entries {
		if e.IsDir() || !musicExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		tracks = append(tracks, e.Name())
	}
	return tracks, nil
}

// loadTagsJSON reads file -> tags, skipping "_" prefixed keys used for notes
func loadTagsJSON(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	result := make(map[string][]string)
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			continue
		}
		result[k] = tags
	}
	return result, nil
}

type usage struct {
	Last string `json:"last"`
}

func loadLastUsed(path string) string {
	var u usage
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	_ = json.Unmarshal(data, &u)
	return u.Last
}

func (m *MusicLibrary) saveLastUsed() {
	if m.usageLog == "" {
		return
	}
	data, _ := json.MarshalIndent(usage{Last: m.last}, "", "  ")
	if err := os.WriteFile(m.usageLog, data, 0644); err != nil {
		log.Printf("[audio] Warning: could not save music usage: %v", err)
	}
}
