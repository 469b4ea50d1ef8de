package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

type Config struct {
	Mode Mode
	// Program is the allow-listed command in command mode or the
	// interpreter in script mode.
	Program string
}

// Responder turns retrieved chunks and a question into a structured answer.
type Responder struct {
	generator domain.Generator
	mode      Mode
	program   string
	logger    arbor.ILogger
}

func New(generator domain.Generator, cfg Config, logger arbor.ILogger) *Responder {
	if cfg.Mode == "" {
		cfg.Mode = ModeCommand
	}
	if cfg.Program == "" {
		cfg.Program = "curl"
	}
	return &Responder{generator: generator, mode: cfg.Mode, program: cfg.Program, logger: logger}
}

// Prompt returns the prompt Answer would send for question and chunks.
func (r *Responder) Prompt(question string, chunks []string) string {
	return BuildPrompt(question, chunks, r.mode, r.program)
}

// Answer calls the model once. A provider failure is returned as
// ErrGeneration; unusable model output is not an error and yields the
// fallback explanation with no code.
func (r *Responder) Answer(ctx context.Context, question string, chunks []string) (domain.Answer, error) {
	start := time.Now()
	raw, err := r.generator.Generate(ctx, r.Prompt(question, chunks))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	res := Parse(raw)
	if res.Malformed {
		r.logger.Warn().
			Str("generator", r.generator.Name()).
			Int("output_len", len(raw)).
			Msg("Model output was not structured JSON")
	} else {
		r.logger.Debug().
			Str("generator", r.generator.Name()).
			Dur("duration", time.Since(start)).
			Bool("has_code", res.Code != "").
			Msg("Answer generated")
	}
	return domain.Answer{Explanation: res.Explanation, GeneratedCode: res.Code}, nil
}
