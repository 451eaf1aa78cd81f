package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqGenerator writes content through Groq's OpenAI-compatible chat endpoint
type GroqGenerator struct {
	cfg        config.ContentConfig
	apiKey     string
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

// NewGroqGenerator creates a GroqGenerator reading GROQ_API_KEY
func NewGroqGenerator(cfg config.ContentConfig) (*GroqGenerator, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	}
	return &GroqGenerator{
		cfg:        cfg,
		apiKey:     apiKey,
		endpoint:   groqEndpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

type groqRequest struct {
	Model          string          `json:"model"`
	Messages       []groqMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate asks Groq for one piece of content
func (g *GroqGenerator) Generate(ctx context.Context, req Request) (*types.ContentPiece, error) {
	log.Printf("[content] Generating %s about %q via Groq (%s)...", req.ContentType, req.Theme, g.cfg.Model)

	reqBody := groqRequest{
		Model: g.cfg.Model,
		Messages: []groqMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var groqResp groqResponse
	if err := json.Unmarshal(respBytes, &groqResp); err != nil {
		return nil, fmt.Errorf("parse groq response (HTTP %d): %w", resp.StatusCode, err)
	}
	if groqResp.Error != nil {
		return nil, fmt.Errorf("groq error: %s", groqResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("groq HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}
	if len(groqResp.Choices) == 0 {
		return nil, fmt.Errorf("groq returned no choices")
	}

	return parseGenerated(groqResp.Choices[0].Message.Content, req, g.now())
}

// parseGenerated decodes a model's JSON answer into a ContentPiece
func parseGenerated(content string, req Request, now time.Time) (*types.ContentPiece, error) {
	content = cleanJSON(content)

	var raw generated
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse content JSON: %w\nraw content: %s", err, truncate(content, 200))
	}
	return newPiece(raw, req, types.SourceGenerated, now)
}
