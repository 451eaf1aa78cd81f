package visuals

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIBackend generates images with the OpenAI images endpoint (DALL-E 3)
type OpenAIBackend struct {
	client     openai.Client
	model      string
	httpClient *http.Client
}

// NewOpenAIBackend creates an OpenAIBackend reading OPENAI_API_KEY
func NewOpenAIBackend(model string, opts ...option.RequestOption) (*OpenAIBackend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIBackend{
		client:     openai.NewClient(opts...),
		model:      model,
		httpClient: http.DefaultClient,
	}, nil
}

// imageSize maps the output aspect onto a size DALL-E 3 accepts
func imageSize(width, height int) openai.ImageGenerateParamsSize {
	switch {
	case height > width:
		return openai.ImageGenerateParamsSize1024x1792
	case width > height:
		return openai.ImageGenerateParamsSize1792x1024
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

// Generate requests one image as base64 and decodes it
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	resp, err := b.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(b.model),
		Size:           imageSize(width, height),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI image API error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no image from OpenAI")
	}

	img := resp.Data[0]
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return data, nil
	}
	if img.URL != "" {
		return b.download(ctx, img.URL)
	}
	return nil, fmt.Errorf("OpenAI image response has neither data nor url")
}

func (b *OpenAIBackend) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d downloading image", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
