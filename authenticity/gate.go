// Package authenticity scores generated content with a fixed, explainable
// heuristic and decides whether it clears the publishing threshold.
package authenticity

import (
	"errors"
	"strings"

	"spiritual-shorts-pipeline/types"
)

// Scoring weights
const (
	BaseScore         = 70.0
	AuthenticBonus    = 2.0
	ThemeBonus        = 5.0
	CommercialPenalty = 5.0
	LengthBonus       = 5.0
	MinBodyWords      = 50
	MaxBodyWords      = 200
	DefaultThreshold  = 85.0
)

// AuthenticTerms earn AuthenticBonus each when present anywhere in the text
var AuthenticTerms = []string{
	"heart", "soul", "divine", "sacred", "light", "love", "truth",
	"wisdom", "journey", "awakening", "consciousness", "energy",
	"healing", "growth", "transformation", "guidance", "intuition",
}

// CommercialTerms cost CommercialPenalty each when present
var CommercialTerms = []string{"buy", "purchase", "sale", "discount", "limited time"}

// ErrBelowThreshold is returned when no attempt within the cycle cleared the gate
var ErrBelowThreshold = errors.New("authenticity score below threshold")

// Breakdown explains how a score was reached
type Breakdown struct {
	Base           float64  `json:"base"`
	AuthenticHits  []string `json:"authentic_hits"`
	ThemeHit       bool     `json:"theme_hit"`
	CommercialHits []string `json:"commercial_hits"`
	BodyWords      int      `json:"body_words"`
	LengthBonusHit bool     `json:"length_bonus"`
	Raw            float64  `json:"raw"`
	Score          float64  `json:"score"`
}

// Gate scores content and applies the pass threshold
type Gate struct {
	threshold float64
}

// New creates a Gate; a negative threshold falls back to DefaultThreshold.
// A zero threshold passes every piece.
func New(threshold float64) *Gate {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the minimum passing score
func (g *Gate) Threshold() float64 { return g.threshold }

// Score returns the clamped authenticity score of a piece
func (g *Gate) Score(piece *types.ContentPiece) float64 {
	return Explain(piece).Score
}

// Passes reports whether score clears the gate
func (g *Gate) Passes(score float64) bool {
	return score >= g.threshold
}

// Explain computes the score together with every rule that contributed to it.
// Matching is case-insensitive substring matching over title, hook and script;
// the length rule counts script words only.
func Explain(piece *types.ContentPiece) Breakdown {
	text := strings.ToLower(strings.Join([]string{piece.Title, piece.Hook, piece.Script}, " "))
	b := Breakdown{Base: BaseScore}
	score := BaseScore

	for _, term := range AuthenticTerms {
		if strings.Contains(text, term) {
			b.AuthenticHits = append(b.AuthenticHits, term)
			score += AuthenticBonus
		}
	}

	theme := strings.ToLower(strings.TrimSpace(piece.Theme))
	if theme != "" && strings.Contains(text, theme) {
		b.ThemeHit = true
		score += ThemeBonus
	}

	for _, term := range CommercialTerms {
		if strings.Contains(text, term) {
			b.CommercialHits = append(b.CommercialHits, term)
			score -= CommercialPenalty
		}
	}

	b.BodyWords = len(strings.Fields(piece.Script))
	if b.BodyWords >= MinBodyWords && b.BodyWords <= MaxBodyWords {
		b.LengthBonusHit = true
		score += LengthBonus
	}

	b.Raw = score
	b.Score = clamp(score, 0, 100)
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
