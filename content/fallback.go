package content

import (
	"context"
	"strings"
	"time"

	"spiritual-shorts-pipeline/types"
)

type template struct {
	title        string
	hook         string
	script       string
	callToAction string
	hashtags     []string
	visual       string
}

// templates are written to clear the authenticity gate for any theme that
// does not itself contain sales language
var templates = map[types.ContentType]template{
	types.ContentProphecy: {
		title: "A Message for Those Awakening to {theme}",
		hook:  "Something sacred is shifting in the energy around you.",
		script: "The spiritual realms are stirring with a quiet message about {theme}. What you have been feeling lately is not random. " +
			"It is divine guidance preparing your soul for the next step of its journey. Trust the nudges of your intuition, even when they make no sense to your mind. " +
			"A door is opening. Walk through it with an open heart, and let the light you carry lead the way.",
		callToAction: "If this found you today, it was meant for you.",
		hashtags:     []string{"#prophecy", "#spiritualawakening", "#divineguidance", "#intuition", "#spirituality"},
		visual:       "a luminous doorway of golden light in a misty ancient forest at dawn, mystical atmosphere",
	},
	types.ContentMeditation: {
		title: "A Breath of {theme}",
		hook:  "Pause. Your soul has been asking for this moment.",
		script: "Find a comfortable position and gently close your eyes. Breathe in slowly through your nose, and feel healing light enter your body. " +
			"Breathe out, and release everything you no longer need. With each breath, let {theme} settle into your heart. You are safe here. You are held. " +
			"Rest in this sacred stillness, knowing that every breath is a small act of love and a step on your journey home.",
		callToAction: "Save this and return to it whenever you need peace.",
		hashtags:     []string{"#meditation", "#innerpeace", "#breathwork", "#mindfulness", "#spirituality"},
		visual:       "calm lake at sunrise with soft pastel sky and gentle mist, serene and peaceful",
	},
	types.ContentEnergyReading: {
		title: "Your Energy Reading: {theme}",
		hook:  "The universe is rearranging things in your favor.",
		script: "Your energy is shifting in a powerful way right now. Old patterns are dissolving to make room for {theme}. " +
			"You may feel tired, emotional, or restless, and that is part of the healing. Your soul is recalibrating. Trust your intuition over the noise around you. " +
			"The divine timing of your life is unfolding exactly as it should, and the light within you is growing stronger every day.",
		callToAction: "Comment yes if you feel this shift too.",
		hashtags:     []string{"#energyreading", "#energyhealing", "#divinetiming", "#highervibration", "#spirituality"},
		visual:       "swirling violet and gold cosmic energy around a glowing silhouette, starry night sky",
	},
	types.ContentSpiritualInsight: {
		title: "The Hidden Truth About {theme}",
		hook:  "What if nothing in your life is happening to you, but for you?",
		script: "Every challenge you face right now is teaching you something about {theme}. Your soul chose this path for its growth, not its punishment. " +
			"The people who test your patience are your greatest teachers. The moments that break your heart open are the ones that let more light in. " +
			"This is the wisdom of awakening: everything is guidance, and every step is part of your transformation.",
		callToAction: "Share this with someone who needs to hear it.",
		hashtags:     []string{"#spiritualgrowth", "#wisdom", "#awakening", "#consciousness", "#spirituality"},
		visual:       "lone figure on a mountain ridge above the clouds at golden hour, rays of light breaking through",
	},
}

// FallbackGenerator fills fixed templates with the theme. It never fails
// and never touches the network.
type FallbackGenerator struct {
	now func() time.Time
}

// NewFallbackGenerator creates a FallbackGenerator
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{now: time.Now}
}

// Generate renders the template for req.ContentType
func (f *FallbackGenerator) Generate(_ context.Context, req Request) (*types.ContentPiece, error) {
	return f.Piece(req), nil
}

// Piece renders the template for req.ContentType; unknown types use the
// spiritual insight template
func (f *FallbackGenerator) Piece(req Request) *types.ContentPiece {
	tpl, ok := templates[req.ContentType]
	if !ok {
		tpl = templates[types.ContentSpiritualInsight]
		req.ContentType = types.ContentSpiritualInsight
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		theme = "inner peace"
	}
	req.Theme = theme

	fill := func(s string) string { return strings.ReplaceAll(s, "{theme}", theme) }
	hashtags := append([]string{themeHashtag(theme)}, tpl.hashtags...)

	// newPiece only fails on an empty script and templates always have one
	piece, _ := newPiece(generated{
		Title:        fill(tpl.title),
		Hook:         tpl.hook,
		Script:       fill(tpl.script),
		CallToAction: tpl.callToAction,
		Hashtags:     hashtags,
		VisualPrompt: tpl.visual,
	}, req, types.SourceFallback, f.now())
	piece.Title = strings.Replace(piece.Title, theme, titleCase(theme), 1)
	return piece
}
