package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
	"apiagent/internal/vectorstore"
)

// Corpus is the single live document corpus. Searches share a read lock;
// a replace or clear takes the write lock, so readers see either the old
// corpus or the new one.
type Corpus struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	store    vectorstore.Storage
	logger   arbor.ILogger
}

func NewCorpus(embedder domain.Embedder, store vectorstore.Storage, logger arbor.ILogger) *Corpus {
	return &Corpus{embedder: embedder, store: store, logger: logger}
}

// Search returns the texts of the topN chunks most similar to query. An
// empty corpus yields an empty slice without touching the embedder.
func (c *Corpus) Search(ctx context.Context, query string, topN int) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	if n == 0 {
		return []string{}, nil
	}

	vecs, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", domain.ErrEmbeddingService, len(vecs))
	}

	results, err := c.store.Search(ctx, vecs[0], topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	c.logger.Debug().Int("requested", topN).Int("returned", len(texts)).Msg("Corpus searched")
	return texts, nil
}

// Count reports how many chunks are live.
func (c *Corpus) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	return n, nil
}

// Replace embeds texts and swaps them in as the whole corpus under ids
// doc_0..doc_{n-1}. Remote embedding happens before the write lock is taken;
// a vocabulary embedder is prepared and run under the lock because queries
// must never be embedded with a vocabulary the stored chunks do not share.
func (c *Corpus) Replace(ctx context.Context, texts []string) error {
	preparer, local := c.embedder.(domain.Preparer)

	var vecs [][]float32
	if !local {
		var err error
		if vecs, err = c.embed(ctx, texts); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if local {
		if err := preparer.Prepare(texts); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
		}
		var err error
		if vecs, err = c.embed(ctx, texts); err != nil {
			return err
		}
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{ID: domain.ChunkID(i), Index: i, Text: text, Embedding: vecs[i]}
	}
	return c.swap(ctx, chunks)
}

// Clear deletes every chunk. It is idempotent.
func (c *Corpus) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear corpus: %w", err)
	}
	return n, nil
}

func (c *Corpus) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingService, c.embedder.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d chunks", domain.ErrEmbeddingService, len(vecs), len(texts))
	}
	return vecs, nil
}

// swap must be called with the write lock held.
func (c *Corpus) swap(ctx context.Context, chunks []domain.Chunk) error {
	if r, ok := c.store.(vectorstore.Replacer); ok {
		if err := r.Replace(ctx, chunks); err != nil {
			return fmt.Errorf("failed to replace corpus: %w", err)
		}
		return nil
	}

	deleted, err := c.store.DeleteAll(ctx)
	if err != nil {
		return errors.Join(domain.ErrCorpusCorrupted, fmt.Errorf("delete previous corpus: %w", err))
	}
	if err := c.store.UpsertBatch(ctx, chunks); err != nil {
		c.logger.Error().Err(err).Int("deleted", deleted).Msg("Corpus left empty after failed insert")
		return errors.Join(domain.ErrCorpusCorrupted, fmt.Errorf("insert new corpus: %w", err))
	}
	return nil
}
