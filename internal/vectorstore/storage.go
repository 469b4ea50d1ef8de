package vectorstore

import (
	"context"

	"apiagent/internal/domain"
)

// Storage persists embedded chunks and supports similarity search.
// DeleteAll is idempotent and reports how many chunks it removed.
// Search returns at most topK results ordered by score, ties broken by the
// lower chunk index, and an empty slice for an empty store.
type Storage interface {
	UpsertBatch(ctx context.Context, chunks []domain.Chunk) error
	DeleteAll(ctx context.Context) (int, error)
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Replacer is implemented by stores that can swap the whole corpus atomically.
// Readers observe either the previous chunks or the new ones, never a mix.
type Replacer interface {
	Replace(ctx context.Context, chunks []domain.Chunk) error
}
