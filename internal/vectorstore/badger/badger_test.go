package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
	"apiagent/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)
var _ vectorstore.Replacer = (*Storage)(nil)

func openTestStorage(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := NewStorage(dir, arbor.NewNoOpLogger())
	require.NoError(t, err)
	return s
}

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{ID: domain.ChunkID(i), Index: i, Text: text, Embedding: []float32{1, float32(i)}}
	}
	return out
}

func TestStorage_ReplaceDiscardsPreviousCorpus(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Replace(ctx, chunks("a0", "a1", "a2", "a3")))
	require.NoError(t, s.Replace(ctx, chunks("b0", "b1")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Contains(t, []string{"b0", "b1"}, r.Chunk.Text)
	}
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStorage(t, dir)
	require.NoError(t, s.Replace(ctx, chunks("GET /users returns a list of users")))
	require.NoError(t, s.Close())

	s = openTestStorage(t, dir)
	defer s.Close()
	res, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "GET /users returns a list of users", res[0].Chunk.Text)
	assert.Equal(t, "doc_0", res[0].Chunk.ID)
}

func TestStorage_DeleteAllIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t, t.TempDir())
	defer s.Close()

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.UpsertBatch(ctx, chunks("x", "y", "z")))
	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_SearchOrdersByIndexOnTies(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t, t.TempDir())
	defer s.Close()

	var batch []domain.Chunk
	for i := 0; i < 12; i++ {
		batch = append(batch, domain.Chunk{ID: domain.ChunkID(i), Index: i, Text: "same", Embedding: []float32{1, 0}})
	}
	require.NoError(t, s.Replace(ctx, batch))

	res, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{res[0].Chunk.Index, res[1].Chunk.Index, res[2].Chunk.Index})
}
