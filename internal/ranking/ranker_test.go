package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/vector"
)

type row struct {
	name, modality, desc, dept string
	emb                        []float32
}

func buildCatalog(t *testing.T, rows []row) *catalog.Catalog {
	t.Helper()
	courses := make([]models.Course, len(rows))
	vecs := make([][]float32, len(rows))
	for i, r := range rows {
		courses[i] = models.Course{
			OfferingID:  string(rune('A' + i)),
			Name:        r.name,
			Modality:    r.modality,
			OfferType:   "Curso",
			Description: r.desc,
			Department:  r.dept,
		}
		vecs[i] = r.emb
	}
	m, err := vector.NewMatrix(vecs)
	require.NoError(t, err)
	c, err := catalog.New(courses, m)
	require.NoError(t, err)
	return c
}

func sampleCatalog(t *testing.T) *catalog.Catalog {
	return buildCatalog(t, []row{
		{"Programación en Python", "Virtual", "Fundamentos de programación", "Ingeniería", []float32{1, 0, 0}},
		{"Programación Web", "Presencial", "HTML, CSS y JavaScript", "Ingeniería", []float32{0.9, 0.1, 0}},
		{"programación en python", "Mixta", "Duplicado con otra caja", "Ingeniería", []float32{1, 0, 0}},
		{"Excel Avanzado", "Virtual", "Tablas dinámicas y macros", "Ciencias Económicas", []float32{0, 1, 0}},
		{"Contabilidad Básica", "Presencial", "Principios contables", "Ciencias Económicas", []float32{0, 0.9, 0.1}},
		{"Cocina Colombiana", "Presencial", "Recetas tradicionales", "Extensión", []float32{0, 0, 1}},
	})
}

func newTestRanker(t *testing.T, opts Options) *Ranker {
	t.Helper()
	r, err := NewRanker(opts, nil)
	require.NoError(t, err)
	return r
}

func TestNewRanker_rejectsBadOptions(t *testing.T) {
	_, err := NewRanker(Options{Variant: "neural"}, nil)
	assert.Error(t, err)
	_, err = NewRanker(Options{EmbeddingWeight: 1.5}, nil)
	assert.Error(t, err)
}

func TestRank_properties(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	cat := sampleCatalog(t)

	for _, q := range []string{"programación", "python", "excel contabilidad", "cocina"} {
		t.Run(q, func(t *testing.T) {
			res, err := r.Rank(q, cat, 3, 0.6)
			require.NoError(t, err)
			require.NotEmpty(t, res.Items)
			assert.LessOrEqual(t, len(res.Items), 3)

			names := make(map[string]bool)
			for i, it := range res.Items {
				key := NameKey(it.Course.Name)
				assert.False(t, names[key], "duplicate name %q", it.Course.Name)
				names[key] = true
				assert.GreaterOrEqual(t, it.Score, -1.0)
				assert.LessOrEqual(t, it.Score, 1.0)
				if i > 0 {
					assert.LessOrEqual(t, it.Score, res.Items[i-1].Score)
				}
			}
		})
	}
}

func TestRank_bestMatchFirst(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	res, err := r.Rank("python", sampleCatalog(t), 10, 0.6)
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "Programación en Python", res.Items[0].Course.Name)
	assert.Equal(t, 0, res.Items[0].Row)
	// Row 2 repeats row 0's name and must be dropped.
	for _, it := range res.Items {
		assert.NotEqual(t, 2, it.Row)
	}
}

func TestRank_blendFormula(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	res, err := r.Rank("excel", sampleCatalog(t), 0, 0.6)
	require.NoError(t, err)
	for _, it := range res.Items {
		want := 0.6*it.Embedding + 0.4*it.Lexical
		assert.InDelta(t, want, it.Score, 1e-9)
	}

	lexOnly, err := r.Rank("excel", sampleCatalog(t), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Excel Avanzado", lexOnly.Items[0].Course.Name)
	// Two equally weighted terms in the name, one matched.
	assert.InDelta(t, math.Sqrt(0.5), lexOnly.Items[0].Score, 1e-9)
}

func TestRank_degenerateInputs(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	cat := sampleCatalog(t)

	res, err := r.Rank("   ", cat, 5, 0.6)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	res, err = r.Rank("zzzz qqqq", cat, 5, 0.6)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	empty := buildCatalog(t, nil)
	res, err = r.Rank("python", empty, 5, 0.6)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	_, err = r.Rank("python", nil, 5, 0.6)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)

	_, err = r.Rank("python", cat, 5, -0.1)
	assert.Error(t, err)
}

func TestRank_fewerRowsThanSeed(t *testing.T) {
	r := newTestRanker(t, Options{SeedSize: 10, EmbeddingWeight: 0.6, TypoCorrection: true})
	cat := buildCatalog(t, []row{
		{"Álgebra Lineal", "Virtual", "", "", []float32{1, 0}},
		{"Cálculo", "Virtual", "", "", []float32{0, 1}},
	})
	res, err := r.Rank("algebra", cat, 5, 1)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	// Both rows seed the query embedding, so their embedding scores tie.
	assert.InDelta(t, res.Items[0].Embedding, res.Items[1].Embedding, 1e-6)
	assert.InDelta(t, math.Sqrt(0.5), res.Items[0].Embedding, 1e-6)
	assert.Equal(t, 0, res.Items[0].Row, "ties keep row order")
}

func TestRank_typoCorrection(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	res, err := r.Rank("contavilidad", sampleCatalog(t), 3, 0.6)
	require.NoError(t, err)
	assert.Equal(t, "contabilidad", res.Corrected)
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "Contabilidad Básica", res.Items[0].Course.Name)

	off := newTestRanker(t, Options{EmbeddingWeight: 0.6})
	res, err = off.Rank("contavilidad", sampleCatalog(t), 3, 0.6)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestRank_contextualVariant(t *testing.T) {
	r := newTestRanker(t, Options{SeedSize: 1, EmbeddingWeight: 0.6, TypoCorrection: true})
	cat := sampleCatalog(t)

	// "macros" only appears in a description.
	std, err := r.RankVariant(VariantStandard, "macros", cat, 3, 0.6)
	require.NoError(t, err)
	assert.Empty(t, std.Items)

	ctx, err := r.RankVariant(VariantContextual, "macros", cat, 3, 0.6)
	require.NoError(t, err)
	require.NotEmpty(t, ctx.Items)
	assert.Equal(t, VariantContextual, ctx.Variant)
	assert.Equal(t, "Excel Avanzado", ctx.Items[0].Course.Name)
}

func TestRank_refitsOnNewSnapshot(t *testing.T) {
	r := newTestRanker(t, DefaultOptions())
	first := sampleCatalog(t)
	_, err := r.Rank("python", first, 3, 0.6)
	require.NoError(t, err)

	second := buildCatalog(t, []row{{"Robótica", "Virtual", "", "", []float32{1}}})
	res, err := r.Rank("robotica", second, 3, 0.6)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Robótica", res.Items[0].Course.Name)
}

func TestTopN(t *testing.T) {
	items := []int{100, 90, 80, 70, 60}
	assert.Len(t, TopN(items, 3), 3)
	assert.Len(t, TopN(items, 10), 5)
}

func TestPaginate(t *testing.T) {
	items := []int{100, 90, 80, 70, 60}

	page1 := Paginate(items, 0, 2)
	assert.Equal(t, []int{100, 90}, page1)

	page2 := Paginate(items, 2, 2)
	assert.Equal(t, []int{80, 70}, page2)

	page3 := Paginate(items, 4, 2)
	assert.Equal(t, []int{60}, page3)

	assert.Empty(t, Paginate(items, 10, 2))
}
