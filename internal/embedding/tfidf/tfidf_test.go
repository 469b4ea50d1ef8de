package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_RequiresPrepare(t *testing.T) {
	e := NewEmbedder()

	_, err := e.Embed(context.Background(), []string{"users"})
	assert.Error(t, err)
}

func TestEmbedder_NormalizedAndDeterministic(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{
		"GET /users returns a list of users",
		"POST /orders creates an order",
	}))

	vecs, err := e.Embed(context.Background(), []string{"list users", "list users"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, vecs[0], vecs[1])
	assert.Equal(t, e.Dimension(), len(vecs[0]))

	norm := 0.0
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbedder_UnknownTermsGiveZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"users endpoint"}))

	vecs, err := e.Embed(context.Background(), []string{"zebra"})
	require.NoError(t, err)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func TestEmbedder_PrepareReplacesVocabulary(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))
	require.Equal(t, 2, e.Dimension())

	require.NoError(t, e.Prepare([]string{"gamma delta epsilon"}))
	assert.Equal(t, 3, e.Dimension())
}

func TestEmbedder_PrepareEmpty(t *testing.T) {
	e := NewEmbedder()
	assert.Error(t, e.Prepare(nil))
	assert.Error(t, e.Prepare([]string{"the and of"}))
}
