package embedding

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cursobot/internal/vector"
	"github.com/hyperjump/cursobot/pkg/utils"
)

func TestNearest(t *testing.T) {
	centroids, err := vector.NewMatrix([][]float32{{0, 0}, {10, 0}, {0, 4}})
	require.NoError(t, err)

	tag := Nearest(centroids, []float32{1, 0})
	assert.Equal(t, 0, tag.ClusterID)
	// d = 1, max_d = 9
	assert.Equal(t, utils.Round(1-1.0/9.0, 4), tag.Confidence)

	tag = Nearest(centroids, []float32{0, 4})
	assert.Equal(t, 2, tag.ClusterID)
	assert.Equal(t, 1.0, tag.Confidence)

	single, err := vector.NewMatrix([][]float32{{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, Nearest(single, []float32{0, 0}).Confidence)
	assert.Equal(t, 1.0, Nearest(single, []float32{1, 1}).Confidence)
}

func TestTagger(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()
	python, _ := e.Embed(ctx, "python programación")
	cocina, _ := e.Embed(ctx, "cocina recetas")
	centroids, err := vector.NewMatrix([][]float32{python, cocina})
	require.NoError(t, err)

	tagger, err := NewTagger(WithCache(e, 8), centroids)
	require.NoError(t, err)
	assert.Equal(t, 2, tagger.Clusters())

	tag, err := tagger.Tag(ctx, "Programación en Python")
	require.NoError(t, err)
	assert.Equal(t, 0, tag.ClusterID)
	assert.GreaterOrEqual(t, tag.Confidence, 0.0)
	assert.LessOrEqual(t, tag.Confidence, 1.0)

	_, err = NewTagger(NewHashEmbedder(8), centroids)
	assert.Error(t, err, "width mismatch")
}

func TestLoadCentroids(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "centroids.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[[1,0,0],[0,1,0]]`), 0o600))
	m, err := LoadCentroids(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.Dims())

	csvPath := filepath.Join(dir, "centroids.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("0.5,0.5\n1,0\n"), 0o600))
	m, err = LoadCentroids(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = LoadCentroids(filepath.Join(dir, "centroids.pkl"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("x"), 0o600))
	_, err = LoadCentroids(badPath)
	assert.Error(t, err)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "Programación Web")
	require.NoError(t, err)
	b, _ := e.Embed(ctx, "programacion web")
	c, _ := e.Embed(ctx, "cocina colombiana")

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, vector.L2Norm(a), 1e-5)
	assert.Equal(t, a, b)
	assert.Greater(t, vector.Cosine(a, b), vector.Cosine(a, c))

	empty, _ := e.Embed(ctx, "")
	assert.Equal(t, 0.0, vector.L2Norm(empty))
}
