package content

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/types"
)

// GenerateSchema reflects T into a strict JSON schema for structured outputs
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var generatedSchema = GenerateSchema[generated]()

// OpenAIGenerator writes content with OpenAI chat completions and a JSON schema response format
type OpenAIGenerator struct {
	cfg    config.ContentConfig
	client openai.Client
	now    func() time.Time
}

// NewOpenAIGenerator creates an OpenAIGenerator reading OPENAI_API_KEY
func NewOpenAIGenerator(cfg config.ContentConfig, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		now:    time.Now,
	}, nil
}

// Generate asks OpenAI for one piece of content
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*types.ContentPiece, error) {
	log.Printf("[content] Generating %s about %q via OpenAI (%s)...", req.ContentType, req.Theme, g.cfg.Model)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "spiritual_short",
		Description: openai.String("Script and metadata for one spiritual short video"),
		Schema:      generatedSchema,
		Strict:      openai.Bool(true),
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		Model:               openai.ChatModel(g.cfg.Model),
		Temperature:         openai.Float(g.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(g.cfg.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return parseGenerated(completion.Choices[0].Message.Content, req, g.now())
}
