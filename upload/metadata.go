package upload

import (
	"strings"
	"unicode/utf8"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

// YouTube limits
const (
	TitleMaxChars = 100
	TagsMaxChars  = 500
	shortsSuffix  = " #Shorts"
)

// BuildMetadata derives the publish metadata for a piece: the title gets
// the #Shorts suffix, the description carries the full spoken text and the
// hashtags, tags merge configured tags with the piece's hashtags.
func BuildMetadata(cfg config.UploadConfig, piece *types.ContentPiece) *types.VideoMetadata {
	title := strings.TrimSpace(piece.Title)
	if max := TitleMaxChars - len(shortsSuffix); utf8.RuneCountInString(title) > max {
		title = string([]rune(title)[:max-3]) + "..."
	}

	var desc []string
	for _, s := range []string{piece.Hook, piece.Script, piece.CallToAction} {
		if s = strings.TrimSpace(s); s != "" {
			desc = append(desc, s)
		}
	}
	if len(piece.Hashtags) > 0 {
		desc = append(desc, strings.Join(piece.Hashtags, " "))
	}

	return &types.VideoMetadata{
		Title:       title + shortsSuffix,
		Description: strings.Join(desc, "\n\n"),
		Tags:        buildTags(cfg.Tags, piece),
		CategoryID:  cfg.CategoryID,
		Visibility:  cfg.Visibility,
	}
}

// buildTags dedupes case-insensitively and stops before the combined tag length passes TagsMaxChars
func buildTags(base []string, piece *types.ContentPiece) []string {
	candidates := append([]string(nil), base...)
	for _, h := range piece.Hashtags {
		candidates = append(candidates, strings.TrimPrefix(h, "#"))
	}
	if piece.Theme != "" {
		candidates = append(candidates, piece.Theme)
	}
	if piece.ContentType != "" {
		candidates = append(candidates, strings.ReplaceAll(string(piece.ContentType), "_", " "))
	}

	seen := make(map[string]bool)
	var tags []string
	total := 0
	for _, tag := range candidates {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		if total+len(tag) > TagsMaxChars {
			break
		}
		seen[key] = true
		total += len(tag)
		tags = append(tags, tag)
	}
	return tags
}
