package ranking

import (
	"math"
	"sort"
)

type tokenizer interface {
	Tokens(text string) []string
}

type posting struct {
	row    int
	weight float64
}

// Vectorizer is a TF-IDF vector space fitted on one corpus. Rows are
// L2-normalised so that a dot product with a normalised query is a cosine.
type Vectorizer struct {
	tok      tokenizer
	rows     int
	vocab    map[string]int
	terms    []string
	idf      []float64
	df       []int
	postings [][]posting
}

// FitVectorizer builds the vector space over docs. At most maxFeatures terms
// are kept, chosen by total corpus frequency (ties alphabetical).
func FitVectorizer(tok tokenizer, docs []string, maxFeatures int) *Vectorizer {
	docTokens := make([][]string, len(docs))
	total := make(map[string]int)
	docFreq := make(map[string]int)
	for i, d := range docs {
		tokens := tok.Tokens(d)
		docTokens[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			total[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}

	terms := make([]string, 0, len(total))
	for t := range total {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if total[terms[i]] != total[terms[j]] {
			return total[terms[i]] > total[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	v := &Vectorizer{
		tok:      tok,
		rows:     len(docs),
		vocab:    make(map[string]int, len(terms)),
		terms:    terms,
		idf:      make([]float64, len(terms)),
		df:       make([]int, len(terms)),
		postings: make([][]posting, len(terms)),
	}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		v.df[i] = docFreq[t]
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}

	for row, tokens := range docTokens {
		vec := v.weigh(tokens)
		for term, w := range vec {
			v.postings[term] = append(v.postings[term], posting{row: row, weight: w})
		}
	}
	return v
}

// weigh returns the normalised tf*idf vector of tokens, keyed by term index.
func (v *Vectorizer) weigh(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, t := range tokens {
		if i, ok := v.vocab[t]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i, tf := range vec {
		w := tf * v.idf[i]
		vec[i] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Similarities returns the cosine of the query tokens against every row.
// ok is false when no token is in the vocabulary.
func (v *Vectorizer) Similarities(tokens []string) (scores []float64, ok bool) {
	scores = make([]float64, v.rows)
	q := v.weigh(tokens)
	if len(q) == 0 {
		return scores, false
	}
	for term, qw := range q {
		for _, p := range v.postings[term] {
			scores[p.row] += qw * p.weight
		}
	}
	for i, s := range scores {
		if s > 1 {
			scores[i] = 1
		}
	}
	return scores, true
}

// Tokens analyses text with the vectorizer's tokenizer.
func (v *Vectorizer) Tokens(text string) []string {
	return v.tok.Tokens(text)
}

// Len returns the vocabulary size.
func (v *Vectorizer) Len() int {
	return len(v.terms)
}

// GetAllTerms returns the vocabulary in alphabetical order.
func (v *Vectorizer) GetAllTerms() ([]string, error) {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out, nil
}

// GetTermFrequency returns the number of rows containing term.
func (v *Vectorizer) GetTermFrequency(term string) (int, error) {
	if i, ok := v.vocab[term]; ok {
		return v.df[i], nil
	}
	return 0, nil
}

// ContainsTerm reports whether term is in the vocabulary.
func (v *Vectorizer) ContainsTerm(term string) (bool, error) {
	_, ok := v.vocab[term]
	return ok, nil
}
