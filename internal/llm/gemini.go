package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// Config is shared by both generators. APIKey and BaseURL are only read by
// the OpenAI generator; the Gemini one receives an already built client.
type Config struct {
	Model             string
	Temperature       float32
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	APIKey            string
	BaseURL           string
}

// GeminiGenerator asks a Gemini model for a JSON completion.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	caller *caller
}

func NewGeminiGenerator(client *genai.Client, cfg Config, logger arbor.ILogger) (*GeminiGenerator, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiGenerator{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(cfg.Temperature),
			ResponseMIMEType: "application/json",
		},
		caller: &caller{
			provider: "gemini",
			timeout:  cfg.Timeout,
			retry:    NewRetryConfig(cfg.MaxRetries),
			limiter:  NewLimiter(cfg.RequestsPerMinute),
			logger:   logger,
		},
	}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini:" + g.model }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.caller.call(ctx, func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return errors.New("empty response from Gemini API")
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return text, nil
}
