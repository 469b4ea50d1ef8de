package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float32
	caller      *caller
}

func NewOpenAIGenerator(cfg Config, logger arbor.ILogger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	// retries are handled by caller so both providers back off the same way
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	)
	return &OpenAIGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		caller: &caller{
			provider: "openai",
			timeout:  cfg.Timeout,
			retry:    NewRetryConfig(cfg.MaxRetries),
			limiter:  NewLimiter(cfg.RequestsPerMinute),
			logger:   logger,
		},
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai:" + g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.caller.call(ctx, func(ctx context.Context) error {
		resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(g.model),
			Temperature: openai.Float(float64(g.temperature)),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in chat completion")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	return text, nil
}
