package content

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

const redditUserAgent = "spiritual-shorts-pipeline/1.0 (theme trends)"

// TrendSource returns recent post titles used to rank themes
type TrendSource interface {
	Titles(ctx context.Context) ([]string, error)
}

// RedditTrends reads hot posts from a list of subreddits
type RedditTrends struct {
	client     *reddit.Client
	subreddits []string
	limit      int
	minScore   int
}

// NewRedditTrends creates a read-only Reddit trend source
func NewRedditTrends(cfg config.TrendsConfig) (*RedditTrends, error) {
	client, err := reddit.NewReadonlyClient(reddit.WithUserAgent(redditUserAgent))
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditTrends{
		client:     client,
		subreddits: cfg.Subreddits,
		limit:      cfg.Limit,
		minScore:   cfg.MinScore,
	}, nil
}

// Titles fetches hot post titles. A failing subreddit is logged and skipped;
// an error is returned only when every subreddit failed.
func (r *RedditTrends) Titles(ctx context.Context) ([]string, error) {
	var titles []string
	var lastErr error
	for _, sub := range r.subreddits {
		posts, _, err := r.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{Limit: r.limit})
		if err != nil {
			log.Printf("[trends] r/%s warning: %v", sub, err)
			lastErr = err
			continue
		}
		for _, p := range posts {
			if p.Stickied || p.Score < r.minScore {
				continue
			}
			titles = append(titles, p.Title)
		}
	}
	if len(titles) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no subreddit could be read: %w", lastErr)
	}
	log.Printf("[trends] %d trending titles from %d subreddits", len(titles), len(r.subreddits))
	return titles, nil
}

// stopWords never count as theme keywords
var stopWords = map[string]bool{
	"and": true, "the": true, "of": true, "with": true, "for": true, "modern": true,
}

// ThemePicker chooses the theme and content type for each cycle. Themes
// rotate in order; with a TrendSource, the theme whose keywords appear most
// often in trending titles wins, unless it was used last cycle.
type ThemePicker struct {
	themes []string
	trends TrendSource

	mu    sync.Mutex
	next  int
	last  string
	cycle int
}

// NewThemePicker creates a picker over themes; trends may be nil
func NewThemePicker(themes []string, trends TrendSource) *ThemePicker {
	if len(themes) == 0 {
		themes = config.DefaultThemes
	}
	return &ThemePicker{themes: themes, trends: trends}
}

// Pick returns the next theme and content type
func (p *ThemePicker) Pick(ctx context.Context) (string, types.ContentType) {
	p.mu.Lock()
	defer p.mu.Unlock()

	contentType := types.ContentTypes[p.cycle%len(types.ContentTypes)]
	p.cycle++

	theme := ""
	if p.trends != nil {
		theme = p.trending(ctx)
	}
	if theme == "" {
		theme = p.themes[p.next%len(p.themes)]
		p.next++
	}
	p.last = theme
	return theme, contentType
}

// RankedTheme is a theme with the number of trending titles that mention it
type RankedTheme struct {
	Theme string
	Score int
}

// trending returns the best trending theme or "" when trends give no signal
func (p *ThemePicker) trending(ctx context.Context) string {
	titles, err := p.trends.Titles(ctx)
	if err != nil {
		log.Printf("[trends] falling back to rotation: %v", err)
		return ""
	}

	ranked := RankThemes(p.themes, titles)
	for _, r := range ranked {
		if r.Score == 0 {
			break
		}
		if r.Theme != p.last {
			log.Printf("[trends] ✅ Selected theme %q (%d mentions)", r.Theme, r.Score)
			return r.Theme
		}
	}
	return ""
}

// RankThemes scores every theme by how many titles mention one of its
// keywords, highest first; ties keep configuration order
func RankThemes(themes, titles []string) []RankedTheme {
	lowered := make([]string, len(titles))
	for i, t := range titles {
		lowered[i] = strings.ToLower(t)
	}

	ranked := make([]RankedTheme, len(themes))
	for i, theme := range themes {
		keywords := themeKeywords(theme)
		score := 0
		for _, title := range lowered {
			for _, kw := range keywords {
				if strings.Contains(title, kw) {
					score++
					break
				}
			}
		}
		ranked[i] = RankedTheme{Theme: theme, Score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func themeKeywords(theme string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(theme)) {
		if len(w) < 4 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}
