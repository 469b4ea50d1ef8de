package memory

import (
	"context"
	"errors"
	"sync"

	"apiagent/internal/domain"
	"apiagent/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
// The chunk slice is never mutated in place, so Replace is a pointer swap.
type Storage struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

// UpsertBatch adds chunks, replacing any with the same ID. All vectors must
// share the dimension of the chunks already stored.
func (s *Storage) UpsertBatch(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Chunk, 0, len(s.chunks)+len(chunks))
	next = append(next, s.chunks...)
	pos := make(map[string]int, len(next))
	for i, ch := range next {
		pos[ch.ID] = i
	}
	for _, ch := range chunks {
		if err := checkDimension(next, ch); err != nil {
			return err
		}
		if i, ok := pos[ch.ID]; ok {
			next[i] = ch
			continue
		}
		pos[ch.ID] = len(next)
		next = append(next, ch)
	}
	s.chunks = next
	return nil
}

// Replace swaps the whole corpus in one step.
func (s *Storage) Replace(_ context.Context, chunks []domain.Chunk) error {
	next := make([]domain.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if err := checkDimension(next, ch); err != nil {
			return err
		}
		next = append(next, ch)
	}
	s.mu.Lock()
	s.chunks = next
	s.mu.Unlock()
	return nil
}

func (s *Storage) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.chunks)
	s.chunks = nil
	return n, nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()
	return vectorstore.Score(chunks, vector, topK), nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func checkDimension(existing []domain.Chunk, ch domain.Chunk) error {
	if len(ch.Embedding) == 0 {
		return errors.New("chunk has no embedding")
	}
	if len(existing) > 0 && len(existing[0].Embedding) != len(ch.Embedding) {
		return errors.New("vector dimension mismatch")
	}
	return nil
}
