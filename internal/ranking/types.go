// Package ranking scores catalog offerings against free text by blending a
// TF-IDF signal with an embedding signal derived from the best lexical matches.
package ranking

import (
	"fmt"

	"github.com/hyperjump/cursobot/internal/models"
)

// Variant selects the lexical signal blended with the embedding signal.
type Variant string

const (
	// VariantStandard uses TF-IDF over offering names.
	VariantStandard Variant = "standard"
	// VariantContextual uses TF-IDF over name, description and department.
	VariantContextual Variant = "contextual"
)

// ParseVariant maps a configuration value to a Variant. Empty means standard.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantStandard:
		return VariantStandard, nil
	case VariantContextual:
		return VariantContextual, nil
	default:
		return "", fmt.Errorf("unknown ranking variant %q", s)
	}
}

// Scored is one ranked offering.
type Scored struct {
	Course models.Course
	// Row is the offering's index in the catalog snapshot it was ranked from.
	Row int
	// Lexical is the TF-IDF cosine of the signal selected by the variant.
	Lexical float64
	// Embedding is the cosine against the mean embedding of the seed rows.
	Embedding float64
	// Score is the weighted blend used for ordering.
	Score float64
}

// Result is the outcome of ranking one query.
type Result struct {
	Query string
	// Corrected is the analysed query after typo correction. Empty when nothing changed.
	Corrected string
	Variant   Variant
	Items     []Scored
}

// Options configure a Ranker. Zero values are replaced by defaults in NewRanker.
type Options struct {
	Variant         Variant
	EmbeddingWeight float64
	NameFeatures    int
	ContextFeatures int
	SeedSize        int
	TypoCorrection  bool
	MaxEditDistance int
}

// DefaultOptions returns the settings the chatbot ships with.
func DefaultOptions() Options {
	return Options{
		Variant:         VariantStandard,
		EmbeddingWeight: 0.6,
		NameFeatures:    3000,
		ContextFeatures: 5000,
		SeedSize:        10,
		TypoCorrection:  true,
		MaxEditDistance: 2,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.Variant == "" {
		o.Variant = d.Variant
	}
	if o.NameFeatures <= 0 {
		o.NameFeatures = d.NameFeatures
	}
	if o.ContextFeatures <= 0 {
		o.ContextFeatures = d.ContextFeatures
	}
	if o.SeedSize <= 0 {
		o.SeedSize = d.SeedSize
	}
	if o.MaxEditDistance <= 0 {
		o.MaxEditDistance = d.MaxEditDistance
	}
}
