package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"spiritual-shorts-pipeline/config"
	pipeline "spiritual-shorts-pipeline/types"
)

// promptFunc sends one structured-output prompt to Claude
type promptFunc func(system, user, schema, apiKey string, settings types.RequestSettings) (*types.AnthropicResponse, error)

func llmkitPrompt(system, user, schema, apiKey string, settings types.RequestSettings) (*types.AnthropicResponse, error) {
	return anthropic.PromptWithSettings(system, user, schema, apiKey, settings)
}

// AnthropicGenerator writes content with Claude through llmkit structured output
type AnthropicGenerator struct {
	cfg    config.ContentConfig
	apiKey string
	schema string
	prompt promptFunc
	now    func() time.Time
}

// NewAnthropicGenerator creates an AnthropicGenerator reading ANTHROPIC_API_KEY
func NewAnthropicGenerator(cfg config.ContentConfig) (*AnthropicGenerator, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	schema, err := json.Marshal(generatedSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal content schema: %w", err)
	}
	return &AnthropicGenerator{
		cfg:    cfg,
		apiKey: apiKey,
		schema: string(schema),
		prompt: llmkitPrompt,
		now:    time.Now,
	}, nil
}

type promptResult struct {
	text string
	err  error
}

// Generate asks Claude for one piece of content. llmkit takes no context, so
// the call runs in its own goroutine and ctx only bounds how long we wait.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*pipeline.ContentPiece, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("[content] Generating %s about %q via Anthropic (%s)...", req.ContentType, req.Theme, g.cfg.Model)

	settings := types.RequestSettings{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}
	userPrompt := buildPrompt(req)

	done := make(chan promptResult, 1)
	go func() {
		response, err := g.prompt(systemPrompt, userPrompt, g.schema, g.apiKey, settings)
		if err != nil {
			done <- promptResult{err: fmt.Errorf("anthropic prompt: %w", err)}
			return
		}
		if len(response.Content) == 0 {
			done <- promptResult{err: fmt.Errorf("no content in anthropic response")}
			return
		}
		done <- promptResult{text: response.Content[0].Text}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return parseGenerated(res.text, req, g.now())
	}
}
