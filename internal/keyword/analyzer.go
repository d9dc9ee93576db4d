package keyword

import (
	"fmt"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/cursobot/pkg/utils"
)

const analyzerName = "cursobot_es"

type tokenAnalyzer interface {
	Analyze([]byte) analysis.TokenStream
}

// Analyzer turns free text into index terms: accents folded, unicode word
// segmentation, lowercase, Spanish stop words removed, single-rune tokens dropped.
type Analyzer struct {
	an tokenAnalyzer
}

// NewAnalyzer builds the analyzer through a bleve index mapping.
func NewAnalyzer() (*Analyzer, error) {
	im := mapping.NewIndexMapping()
	err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, es.StopName},
	})
	if err != nil {
		return nil, fmt.Errorf("define analyzer: %w", err)
	}
	a := im.AnalyzerNamed(analyzerName)
	if a == nil {
		return nil, fmt.Errorf("analyzer %s not registered", analyzerName)
	}
	return &Analyzer{an: a}, nil
}

// Tokens returns the terms of text in order, duplicates included.
func (a *Analyzer) Tokens(text string) []string {
	stream := a.an.Analyze([]byte(utils.Fold(text)))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		if utf8.RuneCount(tok.Term) < 2 {
			continue
		}
		out = append(out, string(tok.Term))
	}
	return out
}
