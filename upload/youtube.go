// Package upload publishes finished videos: YouTube Data API v3, or a
// dry-run publisher that only logs.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

// Publisher uploads a video and returns its external id
type Publisher interface {
	Publish(ctx context.Context, videoPath string, meta *types.VideoMetadata) (string, error)
}

// New returns the YouTube publisher, or a dry-run publisher when uploads are disabled
func New(ctx context.Context, cfg config.UploadConfig) (Publisher, error) {
	if !cfg.Enabled {
		log.Println("[upload] Uploads disabled, using dry-run publisher")
		return DryRun{}, nil
	}
	return NewYouTubePublisher(ctx, cfg)
}

// YouTubePublisher handles YouTube video upload via Data API v3
type YouTubePublisher struct {
	cfg      config.UploadConfig
	client   *http.Client
	endpoint string
}

// NewYouTubePublisher authenticates with the refresh token from the environment
func NewYouTubePublisher(ctx context.Context, cfg config.UploadConfig) (*YouTubePublisher, error) {
	client, err := oauthClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}
	return &YouTubePublisher{cfg: cfg, client: client}, nil
}

// Publish uploads videoPath with meta and returns the YouTube video id
func (p *YouTubePublisher) Publish(ctx context.Context, videoPath string, meta *types.VideoMetadata) (string, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	log.Printf("[upload] Uploading: %q", meta.Title)

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      p.cfg.DefaultLanguage,
			DefaultAudioLanguage: p.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           meta.Visibility,
			SelfDeclaredMadeForKids: p.cfg.MadeForKids,
		},
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] File size: %.1f MB", float64(fi.Size())/1024/1024)
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	if uploaded.Id == "" {
		return "", fmt.Errorf("youtube upload returned no video id")
	}

	log.Printf("[upload] ✅ Uploaded: %s", VideoURL(uploaded.Id))
	return uploaded.Id, nil
}

// oauthClient builds an HTTP client that refreshes its token from YOUTUBE_REFRESH_TOKEN
func oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.Client(ctx, token), nil
}

// VideoURL is the public watch URL of a video id
func VideoURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/shorts/%s", id)
}

// DryRun logs what would be uploaded and returns a local id
type DryRun struct{}

// Publish pretends to upload videoPath
func (DryRun) Publish(_ context.Context, videoPath string, meta *types.VideoMetadata) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("dry run: %w", err)
	}
	id := "dryrun-" + uuid.NewString()
	log.Printf("[upload] Dry run: would upload %s as %q (%s), id %s", videoPath, meta.Title, meta.Visibility, id)
	return id, nil
}

// LogUpload saves the upload result to the logs directory
func LogUpload(logsDir, videoID, videoPath string, piece *types.ContentPiece, meta *types.VideoMetadata) (string, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	entry := map[string]interface{}{
		"video_id":           videoID,
		"video_url":          VideoURL(videoID),
		"content_id":         piece.ID,
		"title":              meta.Title,
		"theme":              piece.Theme,
		"content_type":       piece.ContentType,
		"source":             piece.Source,
		"authenticity_score": piece.AuthenticityScore,
		"uploaded_at":        now.Format(time.RFC3339),
		"video_file":         videoPath,
	}

	logFile := filepath.Join(logsDir, fmt.Sprintf("upload_%s_%s.json", now.Format("20060102_150405"), videoID))
	data, _ := json.MarshalIndent(entry, "", "  ")
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		return "", err
	}

	log.Printf("[upload] Upload log saved: %s", logFile)
	return logFile, nil
}
