package embedding

import (
	"context"
	"math"
)

// Embedder converts free text into a numeric vector representation.
// Dimension reports 0 until the size is known (remote embedders learn it on first call).
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales v to unit length in place and returns it. Zero vectors are left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
