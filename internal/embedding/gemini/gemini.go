package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"apiagent/internal/embedding"
)

// maxBatch is the Gemini API limit of contents per embedding request.
const maxBatch = 100

// Config configures the Gemini embedder.
type Config struct {
	Model     string
	Dimension int
	BatchSize int
}

// Embedder implements domain.Embedder using the shared genai client.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
	batchSize int
}

// NewEmbedder wraps a genai client constructed once at startup.
func NewEmbedder(client *genai.Client, cfg Config) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatch {
		cfg.BatchSize = maxBatch
	}
	return &Embedder{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini" }

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.InBatches(ctx, texts, e.batchSize, e.embedBatch)
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		cfg.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", countEmbeddings(result), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func countEmbeddings(r *genai.EmbedContentResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Embeddings)
}
