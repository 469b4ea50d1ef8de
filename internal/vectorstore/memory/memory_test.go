package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiagent/internal/domain"
	"apiagent/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)
var _ vectorstore.Replacer = (*Storage)(nil)

func chunk(i int, text string, vec ...float32) domain.Chunk {
	return domain.Chunk{ID: domain.ChunkID(i), Index: i, Text: text, Embedding: vec}
}

func TestStorage_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.UpsertBatch(ctx, []domain.Chunk{
		chunk(0, "A", 1, 0),
		chunk(1, "B", 0, 1),
	}))

	res, err := s.Search(ctx, []float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "A", res[0].Chunk.Text)
}

func TestStorage_SearchEmpty(t *testing.T) {
	res, err := NewStorage().Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_DeleteAllIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.UpsertBatch(ctx, []domain.Chunk{chunk(0, "A", 1), chunk(1, "B", 1)}))

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStorage_UpsertSameIDReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.UpsertBatch(ctx, []domain.Chunk{chunk(0, "old", 1, 0)}))
	require.NoError(t, s.UpsertBatch(ctx, []domain.Chunk{chunk(0, "new", 1, 0)}))

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
	res, _ := s.Search(ctx, []float32{1, 0}, 1)
	assert.Equal(t, "new", res[0].Chunk.Text)
}

func TestStorage_DimensionMismatchLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.UpsertBatch(ctx, []domain.Chunk{chunk(0, "A", 1, 0)}))

	err := s.UpsertBatch(ctx, []domain.Chunk{chunk(1, "B", 0, 1), chunk(2, "C", 1, 0, 0)})
	assert.Error(t, err)

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestStorage_ReplaceIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Replace(ctx, []domain.Chunk{chunk(0, "old", 1, 0)}))

	err := s.Replace(ctx, []domain.Chunk{chunk(0, "new", 1, 0), chunk(1, "bad")})
	assert.Error(t, err)
	res, _ := s.Search(ctx, []float32{1, 0}, 3)
	require.Len(t, res, 1)
	assert.Equal(t, "old", res[0].Chunk.Text)

	require.NoError(t, s.Replace(ctx, []domain.Chunk{chunk(0, "new", 0, 1, 0)}))
	res, _ = s.Search(ctx, []float32{0, 1, 0}, 3)
	require.Len(t, res, 1)
	assert.Equal(t, "new", res[0].Chunk.Text)
}

func TestStorage_ConcurrentReplaceNeverMixes(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	corpusA := []domain.Chunk{chunk(0, "a", 1, 0), chunk(1, "a", 1, 0)}
	corpusB := []domain.Chunk{chunk(0, "b", 1, 0), chunk(1, "b", 1, 0), chunk(2, "b", 1, 0)}
	require.NoError(t, s.Replace(ctx, corpusA))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := corpusA
			if i%2 == 0 {
				c = corpusB
			}
			_ = s.Replace(ctx, c)
		}
	}()
	for i := 0; i < 200; i++ {
		res, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, res)
		first := res[0].Chunk.Text
		for _, r := range res {
			assert.Equal(t, first, r.Chunk.Text)
		}
		if first == "a" {
			assert.Len(t, res, 2)
		} else {
			assert.Len(t, res, 3)
		}
	}
	wg.Wait()
}
