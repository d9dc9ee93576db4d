package ranking

import (
	"fmt"
	"testing"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/keyword"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/vector"
)

var benchTopics = []string{"python", "excel", "contabilidad", "marketing", "fotografía", "inglés", "cocina", "liderazgo"}

func benchCatalog(b *testing.B, n, dims int) *catalog.Catalog {
	b.Helper()
	courses := make([]models.Course, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		topic := benchTopics[i%len(benchTopics)]
		courses[i] = models.Course{
			OfferingID:  fmt.Sprintf("OF-%05d", i),
			Name:        fmt.Sprintf("Curso de %s nivel %d", topic, i%5),
			Modality:    []string{"Virtual", "Presencial", "Mixta"}[i%3],
			OfferType:   "Curso",
			Description: fmt.Sprintf("Aprende %s desde cero con ejercicios prácticos", topic),
			Department:  "Extensión",
		}
		v := make([]float32, dims)
		v[i%dims] = 1
		vecs[i] = v
	}
	m, err := vector.NewMatrix(vecs)
	if err != nil {
		b.Fatal(err)
	}
	c, err := catalog.New(courses, m)
	if err != nil {
		b.Fatal(err)
	}
	return c
}

func BenchmarkRankVariant(b *testing.B) {
	cat := benchCatalog(b, 1000, 64)
	for _, variant := range []Variant{VariantStandard, VariantContextual} {
		b.Run(string(variant), func(b *testing.B) {
			r, err := NewRanker(DefaultOptions(), nil)
			if err != nil {
				b.Fatal(err)
			}
			// First call builds the index for this catalog.
			if _, err := r.RankVariant(variant, "python", cat, 5, 0.6); err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = r.RankVariant(variant, "curso de pyton", cat, 5, 0.6)
			}
		})
	}
}

func BenchmarkFitVectorizer(b *testing.B) {
	cat := benchCatalog(b, 1000, 8)
	docs := cat.Contexts()
	an, err := keyword.NewAnalyzer()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = FitVectorizer(an, docs, 5000)
	}
}
