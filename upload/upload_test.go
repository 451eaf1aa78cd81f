package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

func testPiece() *types.ContentPiece {
	return &types.ContentPiece{
		ID:           "01TEST",
		Title:        "The Breath Between Thoughts",
		Hook:         "Pause for a moment.",
		Script:       "Notice the quiet space that waits behind every thought.",
		CallToAction: "Follow for daily stillness.",
		Hashtags:     []string{"#meditation", "#innerpeace", "#Spirituality"},
		Theme:        "meditation and inner peace",
		ContentType:  types.ContentMeditation,
		Source:       types.SourceGenerated,
	}
}

func TestBuildMetadata(t *testing.T) {
	cfg := config.Default().Upload
	meta := BuildMetadata(cfg, testPiece())

	if meta.Title != "The Breath Between Thoughts #Shorts" {
		t.Errorf("title = %q", meta.Title)
	}
	want := "Pause for a moment.\n\nNotice the quiet space that waits behind every thought.\n\nFollow for daily stillness.\n\n#meditation #innerpeace #Spirituality"
	if meta.Description != want {
		t.Errorf("description = %q", meta.Description)
	}
	if meta.CategoryID != "22" || meta.Visibility != "public" {
		t.Errorf("category/visibility = %q/%q", meta.CategoryID, meta.Visibility)
	}

	// configured tags first, duplicates dropped case-insensitively
	wantTags := []string{"spirituality", "meditation", "shorts", "innerpeace", "meditation and inner peace"}
	if len(meta.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", meta.Tags, wantTags)
	}
	for i := range wantTags {
		if meta.Tags[i] != wantTags[i] {
			t.Errorf("tags[%d] = %q, want %q", i, meta.Tags[i], wantTags[i])
		}
	}
}

func TestBuildMetadataLongTitle(t *testing.T) {
	piece := testPiece()
	piece.Title = strings.Repeat("Ancient Wisdom ", 12)
	meta := BuildMetadata(config.Default().Upload, piece)

	if n := utf8.RuneCountInString(meta.Title); n > TitleMaxChars {
		t.Errorf("title has %d chars, max %d", n, TitleMaxChars)
	}
	if !strings.HasSuffix(meta.Title, "... #Shorts") {
		t.Errorf("title = %q, want truncated with #Shorts suffix", meta.Title)
	}
}

func TestBuildTagsLimit(t *testing.T) {
	var base []string
	for i := 0; i < 100; i++ {
		base = append(base, strings.Repeat(string(rune('a'+i%26)), 5)+string(rune('A'+i/26)))
	}
	tags := buildTags(base, &types.ContentPiece{})
	total := 0
	for _, tag := range tags {
		total += len(tag)
	}
	if total > TagsMaxChars {
		t.Errorf("tags total %d chars, max %d", total, TagsMaxChars)
	}
	if len(tags) != TagsMaxChars/6 {
		t.Errorf("got %d tags, want %d", len(tags), TagsMaxChars/6)
	}
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("fake mp4 data"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYouTubePublish(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"vid123"}`))
	}))
	defer srv.Close()

	p := &YouTubePublisher{cfg: config.Default().Upload, client: srv.Client(), endpoint: srv.URL + "/"}
	meta := BuildMetadata(p.cfg, testPiece())

	id, err := p.Publish(context.Background(), writeVideo(t), meta)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "vid123" {
		t.Errorf("id = %q", id)
	}
	if !strings.Contains(body, "The Breath Between Thoughts #Shorts") {
		t.Error("request body missing title")
	}
	if !strings.Contains(body, "fake mp4 data") {
		t.Error("request body missing media")
	}
}

func TestYouTubePublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	p := &YouTubePublisher{cfg: config.Default().Upload, client: srv.Client(), endpoint: srv.URL + "/"}
	if _, err := p.Publish(context.Background(), writeVideo(t), BuildMetadata(p.cfg, testPiece())); err == nil {
		t.Fatal("expected error")
	}
}

func TestYouTubePublishMissingFile(t *testing.T) {
	p := &YouTubePublisher{cfg: config.Default().Upload, client: http.DefaultClient, endpoint: "http://127.0.0.1:1/"}
	_, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), &types.VideoMetadata{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNewYouTubePublisherNeedsCredentials(t *testing.T) {
	t.Setenv("YOUTUBE_CLIENT_ID", "")
	t.Setenv("YOUTUBE_CLIENT_SECRET", "")
	t.Setenv("YOUTUBE_REFRESH_TOKEN", "")
	if _, err := NewYouTubePublisher(context.Background(), config.Default().Upload); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewDisabledIsDryRun(t *testing.T) {
	cfg := config.Default().Upload
	cfg.Enabled = false
	p, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(DryRun); !ok {
		t.Errorf("got %T, want DryRun", p)
	}
}

func TestDryRun(t *testing.T) {
	id, err := DryRun{}.Publish(context.Background(), writeVideo(t), &types.VideoMetadata{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "dryrun-") {
		t.Errorf("id = %q", id)
	}

	if _, err := (DryRun{}).Publish(context.Background(), "/nonexistent/video.mp4", &types.VideoMetadata{}); err == nil {
		t.Error("expected error for missing video")
	}
}

func TestLogUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	piece := testPiece()
	piece.AuthenticityScore = 91.5
	meta := BuildMetadata(config.Default().Upload, piece)

	path, err := LogUpload(dir, "vid123", "output/video.mp4", piece, meta)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatal(err)
	}
	if entry["video_url"] != "https://www.youtube.com/shorts/vid123" {
		t.Errorf("video_url = %v", entry["video_url"])
	}
	if entry["content_id"] != "01TEST" || entry["authenticity_score"] != 91.5 {
		t.Errorf("entry = %v", entry)
	}
}
