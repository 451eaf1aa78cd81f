package authenticity

import (
	"strings"
	"testing"

	"spiritual-shorts-pipeline/types"
)

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		piece types.ContentPiece
		want  float64
	}{
		{
			name:  "base only",
			piece: types.ContentPiece{Title: "Morning", Script: "calm morning air"},
			want:  70,
		},
		{
			name:  "authentic terms count once each",
			piece: types.ContentPiece{Title: "Soul", Script: "soul soul heart heart"},
			want:  74,
		},
		{
			name:  "theme bonus",
			piece: types.ContentPiece{Title: "Inner peace", Theme: "Inner Peace", Script: "rest here"},
			want:  75,
		},
		{
			name:  "commercial penalty",
			piece: types.ContentPiece{Title: "Big sale", Script: "buy now, limited time discount"},
			want:  50,
		},
		{
			name:  "length bonus inside band",
			piece: types.ContentPiece{Title: "Still", Script: words(50, "still")},
			want:  75,
		},
		{
			name:  "no length bonus above band",
			piece: types.ContentPiece{Title: "Still", Script: words(201, "still")},
			want:  70,
		},
		{
			name:  "hook counts toward text",
			piece: types.ContentPiece{Title: "Now", Hook: "Your intuition speaks", Script: "listen"},
			want:  72,
		},
	}

	g := New(85)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Score(&tt.piece); got != tt.want {
				t.Errorf("Score() = %.1f, want %.1f (%+v)", got, tt.want, Explain(&tt.piece))
			}
		})
	}
}

func TestScoreClamped(t *testing.T) {
	rich := types.ContentPiece{
		Title:  "Divine sacred light",
		Theme:  "love",
		Script: strings.Join(AuthenticTerms, " ") + " " + words(60, "peace"),
	}
	b := Explain(&rich)
	if b.Raw <= 100 {
		t.Fatalf("raw score %.1f should exceed 100 for this input", b.Raw)
	}
	if b.Score != 100 {
		t.Errorf("Score = %.1f, want clamp to 100", b.Score)
	}

	spam := types.ContentPiece{
		Title:  "buy buy buy",
		Script: strings.Repeat("purchase sale discount limited time ", 5),
	}
	b = Explain(&spam)
	if b.Score < 0 || b.Score > 100 {
		t.Errorf("Score = %.1f out of bounds", b.Score)
	}
	if b.Score != 45 {
		t.Errorf("Score = %.1f, want 45", b.Score)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-20, 0, 100) != 0 || clamp(140, 0, 100) != 100 || clamp(42, 0, 100) != 42 {
		t.Error("clamp does not bound to [0,100]")
	}
}

func TestScoreDeterministic(t *testing.T) {
	piece := types.ContentPiece{
		Title:  "The Light Within",
		Hook:   "Something sacred is unfolding",
		Theme:  "meditation and inner peace",
		Script: "Close your eyes and breathe. Meditation and inner peace are closer than your next breath.",
	}
	g := New(85)
	first := g.Score(&piece)
	for i := 0; i < 50; i++ {
		if got := g.Score(&piece); got != first {
			t.Fatalf("run %d scored %.2f, first run %.2f", i, got, first)
		}
	}
}

func TestPasses(t *testing.T) {
	g := New(85)
	if g.Passes(84.9) {
		t.Error("84.9 should not pass at 85")
	}
	if !g.Passes(85) {
		t.Error("85 should pass at 85")
	}
	if New(-1).Threshold() != DefaultThreshold {
		t.Errorf("negative threshold should fall back to %.0f", DefaultThreshold)
	}
	if g := New(0); g.Threshold() != 0 || !g.Passes(0) {
		t.Errorf("zero threshold = %.1f, should pass a zero score", g.Threshold())
	}
}
