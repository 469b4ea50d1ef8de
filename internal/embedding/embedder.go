package embedding

import (
	"context"
	"fmt"
)

// BatchFunc embeds one provider-sized batch of texts.
type BatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// InBatches splits texts into batches of at most size and concatenates the
// vectors in input order. Providers cap how many inputs one request may carry.
func InBatches(ctx context.Context, texts []string, size int, fn BatchFunc) ([][]float32, error) {
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// ToFloat32 narrows a float64 vector as returned by some SDKs.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
