package visuals

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const pollinationsBase = "https://image.pollinations.ai/prompt/"

// PollinationsBackend generates images via Pollinations.ai (free, no key needed)
type PollinationsBackend struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewPollinationsBackend creates a Pollinations backend with a per-request timeout
func NewPollinationsBackend(timeout time.Duration) *PollinationsBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PollinationsBackend{
		baseURL:    pollinationsBase,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    3 * time.Second,
	}
}

// Generate fetches an image, retrying up to three times (Pollinations occasionally times out)
func (p *PollinationsBackend) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	imageURL := fmt.Sprintf("%s%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		p.baseURL, url.PathEscape(prompt), width, height, promptSeed(prompt))

	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var data []byte
		data, err = p.download(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[visuals] Pollinations attempt %d failed: %v", attempt, err)
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	return nil, fmt.Errorf("pollinations fetch failed after %d attempts: %w", p.attempts, err)
}

func (p *PollinationsBackend) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SpiritualShortsPipeline/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from Pollinations", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// an error page is a few bytes of HTML
	if len(data) < 100 {
		return nil, fmt.Errorf("response too small (%d bytes), likely an error", len(data))
	}
	return data, nil
}

// promptSeed keeps the same prompt on the same image across retries
func promptSeed(prompt string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return h.Sum32() % 1000000
}
