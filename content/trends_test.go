package content

import (
	"context"
	"errors"
	"testing"

	"spiritual-shorts-pipeline/types"
)

type fakeTrends struct {
	titles []string
	err    error
	calls  int
}

func (f *fakeTrends) Titles(context.Context) ([]string, error) {
	f.calls++
	return f.titles, f.err
}

var testThemes = []string{
	"meditation and inner peace",
	"chakra alignment and energy healing",
	"sacred geometry and divine patterns",
}

func TestRankThemes(t *testing.T) {
	titles := []string{
		"My first chakra healing session",
		"Energy work changed my life",
		"Daily meditation streak: 100 days",
		"Anyone else feel the energy shift today?",
	}
	ranked := RankThemes(testThemes, titles)

	if ranked[0].Theme != "chakra alignment and energy healing" || ranked[0].Score != 3 {
		t.Errorf("top = %+v, want chakra theme with 3", ranked[0])
	}
	if ranked[1].Theme != "meditation and inner peace" || ranked[1].Score != 1 {
		t.Errorf("second = %+v", ranked[1])
	}
	if ranked[2].Score != 0 {
		t.Errorf("third = %+v, want 0", ranked[2])
	}
}

func TestThemeKeywordsSkipStopWords(t *testing.T) {
	got := themeKeywords("ancient wisdom and modern spirituality")
	want := []string{"ancient", "wisdom", "spirituality"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keywords = %v, want %v", got, want)
		}
	}
}

func TestPickerRotates(t *testing.T) {
	p := NewThemePicker(testThemes, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		theme, ct := p.Pick(ctx)
		if theme != testThemes[i%len(testThemes)] {
			t.Errorf("pick %d theme = %q", i, theme)
		}
		if ct != types.ContentTypes[i%len(types.ContentTypes)] {
			t.Errorf("pick %d content type = %s", i, ct)
		}
	}
}

func TestPickerPrefersTrendingTheme(t *testing.T) {
	trends := &fakeTrends{titles: []string{"sacred geometry in nature", "divine timing is real"}}
	p := NewThemePicker(testThemes, trends)
	ctx := context.Background()

	theme, _ := p.Pick(ctx)
	if theme != "sacred geometry and divine patterns" {
		t.Errorf("first pick = %q, want trending theme", theme)
	}

	// the same theme is not picked twice in a row; no other theme trends so rotation resumes
	theme, _ = p.Pick(ctx)
	if theme != testThemes[0] {
		t.Errorf("second pick = %q, want rotation %q", theme, testThemes[0])
	}
	if trends.calls != 2 {
		t.Errorf("trend source called %d times", trends.calls)
	}
}

func TestPickerFallsBackWhenTrendsFail(t *testing.T) {
	p := NewThemePicker(testThemes, &fakeTrends{err: errors.New("reddit down")})
	theme, _ := p.Pick(context.Background())
	if theme != testThemes[0] {
		t.Errorf("pick = %q, want %q", theme, testThemes[0])
	}
}

func TestPickerDefaultThemes(t *testing.T) {
	p := NewThemePicker(nil, nil)
	if theme, _ := p.Pick(context.Background()); theme == "" {
		t.Error("empty theme from default list")
	}
}
