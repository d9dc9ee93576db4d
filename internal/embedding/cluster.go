package embedding

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/cursobot/internal/vector"
	"github.com/hyperjump/cursobot/pkg/utils"
)

// Tag is the topic cluster assigned to one message.
type Tag struct {
	ClusterID  int
	Confidence float64
}

// LoadCentroids reads cluster centroids from a .npy matrix or a JSON array of arrays.
func LoadCentroids(path string) (*vector.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read centroids: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return vector.ReadNPY(bytes.NewReader(data))
	case ".json":
		var rows [][]float32
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parse centroids %s: %w", path, err)
		}
		return vector.NewMatrix(rows)
	case ".csv":
		return vector.ReadCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported centroid format %q", filepath.Ext(path))
	}
}

// Tagger assigns messages to the nearest centroid.
type Tagger struct {
	embedder  Embedder
	centroids *vector.Matrix
}

// NewTagger checks that the centroids match the embedder's width.
func NewTagger(e Embedder, centroids *vector.Matrix) (*Tagger, error) {
	if centroids == nil || centroids.Len() == 0 {
		return nil, fmt.Errorf("at least one centroid is required")
	}
	if centroids.Dims() != e.Dimensions() {
		return nil, fmt.Errorf("centroid width %d differs from embedding width %d", centroids.Dims(), e.Dimensions())
	}
	return &Tagger{embedder: e, centroids: centroids}, nil
}

// Clusters returns the number of centroids.
func (t *Tagger) Clusters() int {
	return t.centroids.Len()
}

// Tag embeds text and returns its nearest centroid. Confidence is
// 1 - d/max_d, where d is the distance to the nearest centroid and max_d the
// distance to the farthest, floored at 0 and rounded to four decimals.
func (t *Tagger) Tag(ctx context.Context, text string) (*Tag, error) {
	emb, err := t.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed message: %w", err)
	}
	return Nearest(t.centroids, emb), nil
}

// Nearest assigns emb to the closest row of centroids by Euclidean distance.
func Nearest(centroids *vector.Matrix, emb []float32) *Tag {
	best, bestDist, maxDist := 0, math.Inf(1), 0.0
	for i := 0; i < centroids.Len(); i++ {
		d := vector.Euclidean(emb, centroids.Row(i))
		if d < bestDist {
			best, bestDist = i, d
		}
		if d > maxDist {
			maxDist = d
		}
	}
	conf := 1.0
	if maxDist > 0 {
		conf = math.Max(0, 1-bestDist/maxDist)
	}
	return &Tag{ClusterID: best, Confidence: utils.Round(conf, 4)}
}
