package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/cursobot/pkg/utils"
)

// HashEmbedder embeds text by feature hashing its folded words. It needs no
// model file, so it backs tagging when no ONNX model is available and in tests.
// Texts sharing words get similar vectors.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder of the given width (384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length hashed bag of words of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(utils.Fold(text)) {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		emb[sum%uint64(e.dimensions)] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding width.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
