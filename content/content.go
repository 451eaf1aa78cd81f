// Package content produces ContentPieces: language model providers, the
// deterministic fallback templates and the theme picker that feeds them.
package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

// WordsPerSecond is the narration pace used to size scripts to the target duration
const WordsPerSecond = 2.5

const maxHashtags = 7

// Request asks a Generator for one piece of content
type Request struct {
	Theme       string
	ContentType types.ContentType
	TargetWords int
}

// Generator turns a theme into a ContentPiece
type Generator interface {
	Generate(ctx context.Context, req Request) (*types.ContentPiece, error)
}

// TargetWords sizes a script to be read aloud in roughly d
func TargetWords(d time.Duration) int {
	n := int(d.Seconds() * WordsPerSecond)
	if n < 20 {
		n = 20
	}
	return n
}

// New builds the Generator selected by cfg.Content.Provider
func New(cfg *config.Config) (Generator, error) {
	switch cfg.Content.Provider {
	case "openai":
		return NewOpenAIGenerator(cfg.Content)
	case "anthropic":
		return NewAnthropicGenerator(cfg.Content)
	case "groq":
		return NewGroqGenerator(cfg.Content)
	case "fallback":
		return NewFallbackGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown content provider %q", cfg.Content.Provider)
	}
}

// generated is the structured answer every language model provider is asked for
type generated struct {
	Title        string   `json:"title" jsonschema_description:"Inspiring, clickable title under 80 characters"`
	Hook         string   `json:"hook" jsonschema_description:"One powerful opening line"`
	Script       string   `json:"script" jsonschema_description:"The narration read aloud in the video"`
	CallToAction string   `json:"call_to_action" jsonschema_description:"One line inviting the viewer to engage"`
	Hashtags     []string `json:"hashtags" jsonschema_description:"5 to 7 relevant hashtags"`
	VisualPrompt string   `json:"visual_prompt" jsonschema_description:"Description of a serene vertical background image"`
}

const systemPrompt = "You are a deeply intuitive spiritual teacher creating authentic, transformative short-form content for awakening souls. Respond with JSON only."

var typeBriefs = map[types.ContentType]struct {
	task string
	tone string
}{
	types.ContentProphecy:         {"a prophetic spiritual message about %s", "Mystical, hopeful, authentic. Avoid generic spiritual cliches."},
	types.ContentMeditation:       {"a short guided meditation focused on %s", "Peaceful, grounding, accessible."},
	types.ContentEnergyReading:    {"an energy reading about %s for spiritual seekers", "Intuitive, empowering, mystical."},
	types.ContentSpiritualInsight: {"a spiritual insight about %s", "Wise, compassionate, practical."},
}

// buildPrompt writes the user prompt for one request
func buildPrompt(req Request) string {
	brief, ok := typeBriefs[req.ContentType]
	if !ok {
		brief = typeBriefs[types.ContentSpiritualInsight]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create "+brief.task+".\n\n", req.Theme))
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Deeply authentic and transformative, with practical wisdom people can use today\n")
	sb.WriteString("- Include a specific practice or insight\n")
	sb.WriteString(fmt.Sprintf("- The script is narrated aloud: about %d words, no emojis, no hashtags inside it\n", req.TargetWords))
	sb.WriteString(fmt.Sprintf("- Mention %q naturally in the script\n", req.Theme))
	sb.WriteString("- Never use sales language\n")
	sb.WriteString(fmt.Sprintf("Tone: %s\n\n", brief.tone))
	sb.WriteString("Respond ONLY with a JSON object with the fields title, hook, script, call_to_action, hashtags, visual_prompt.")
	return sb.String()
}

// newPiece validates a provider answer and turns it into a ContentPiece
func newPiece(g generated, req Request, source types.Source, now time.Time) (*types.ContentPiece, error) {
	title := strings.TrimSpace(g.Title)
	script := strings.Join(strings.Fields(g.Script), " ")
	if script == "" {
		return nil, fmt.Errorf("generated content has an empty script")
	}
	if title == "" {
		title = fmt.Sprintf("Spiritual Insight: %s", titleCase(req.Theme))
	}
	visual := strings.TrimSpace(g.VisualPrompt)
	if visual == "" {
		visual = fmt.Sprintf("serene spiritual scene evoking %s, soft golden light", req.Theme)
	}

	return &types.ContentPiece{
		ID:           NewID(now),
		Title:        title,
		Hook:         strings.TrimSpace(g.Hook),
		Script:       script,
		CallToAction: strings.TrimSpace(g.CallToAction),
		Hashtags:     normalizeHashtags(g.Hashtags, req.Theme),
		VisualPrompt: visual,
		Theme:        req.Theme,
		ContentType:  req.ContentType,
		Source:       source,
		CreatedAt:    now.UTC(),
		Status:       types.StatusGenerated,
	}, nil
}

// normalizeHashtags prefixes '#', drops blanks and duplicates and caps the list at 7
func normalizeHashtags(tags []string, theme string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		tag = "#" + tag
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if len(out) == maxHashtags {
			break
		}
	}
	if len(out) == 0 {
		out = []string{themeHashtag(theme), "#spirituality", "#awakening", "#consciousness"}
	}
	return out
}

func themeHashtag(theme string) string {
	var sb strings.Builder
	for _, w := range strings.Fields(theme) {
		sb.WriteString(strings.ToLower(w))
	}
	return "#" + sb.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" || w == "of" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// cleanJSON strips markdown fences some models wrap their JSON in
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
