package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// TermDictionary provides the known terms and their document frequencies.
type TermDictionary interface {
	// GetAllTerms returns all unique terms.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
	// ContainsTerm checks if a term is known.
	ContainsTerm(term string) (bool, error)
}

// Suggestion represents a spelling suggestion with its score.
type Suggestion struct {
	Term      string  // The suggested term
	Distance  int     // Edit distance from the original term
	Frequency int     // Document frequency (popularity)
	Score     float64 // Combined score for ranking
}

// SpellCheckResult contains the result of spell checking a list of terms.
type SpellCheckResult struct {
	Original        []string     // Terms as given
	Corrected       []string     // Terms with misspellings replaced by the best suggestion
	Suggestions     []Suggestion // Best suggestion for each corrected term
	HasCorrections  bool         // True if any corrections were made
	MisspelledTerms []string     // Terms that were detected as misspelled
}

// SpellChecker corrects query terms against a dictionary built from the catalog.
// It snapshots the dictionary at construction; build a new one when the catalog changes.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int

	terms   []string
	termSet map[string]struct{}
	loadErr error
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency sets the minimum document frequency for suggestions.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions to return per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
		termSet:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	terms, err := dict.GetAllTerms()
	if err != nil {
		s.loadErr = err
		return s
	}
	s.terms = terms
	for _, t := range terms {
		s.termSet[strings.ToLower(t)] = struct{}{}
	}
	return s
}

// Err reports a failure to read the dictionary. A failed checker never corrects.
func (s *SpellChecker) Err() error {
	return s.loadErr
}

// allowedDistance scales the edit budget with term length so short words are left alone.
func (s *SpellChecker) allowedDistance(term string) int {
	n := utf8.RuneCountInString(term)
	switch {
	case n < 4:
		return 0
	case n < 6:
		return min(1, s.maxDistance)
	default:
		return s.maxDistance
	}
}

// Check replaces unknown terms with their best suggestion.
func (s *SpellChecker) Check(terms []string) *SpellCheckResult {
	result := &SpellCheckResult{
		Original:  terms,
		Corrected: make([]string, 0, len(terms)),
	}
	for _, term := range terms {
		if !s.IsMisspelled(term) {
			result.Corrected = append(result.Corrected, term)
			continue
		}
		suggestions := s.Suggest(term)
		if len(suggestions) == 0 {
			result.Corrected = append(result.Corrected, term)
			continue
		}
		result.HasCorrections = true
		result.MisspelledTerms = append(result.MisspelledTerms, term)
		result.Suggestions = append(result.Suggestions, suggestions[0])
		result.Corrected = append(result.Corrected, suggestions[0].Term)
	}
	return result
}

// Suggest returns spelling suggestions for a single term, best first.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	termLower := strings.ToLower(term)
	maxDist := s.allowedDistance(termLower)
	if maxDist == 0 || s.loadErr != nil {
		return nil
	}
	termLen := utf8.RuneCountInString(termLower)
	suggestions := make([]Suggestion, 0)

	for _, dictTerm := range s.terms {
		dictTermLower := strings.ToLower(dictTerm)
		if dictTermLower == termLower {
			continue
		}

		lenDiff := utf8.RuneCountInString(dictTermLower) - termLen
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > maxDist {
			continue
		}

		distance := EditDistance(termLower, dictTermLower)
		if distance > maxDist {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(dictTerm)
		if err != nil || freq < s.minFreq {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Term:      dictTerm,
			Distance:  distance,
			Frequency: freq,
			Score:     (1.0 / float64(distance+1)) * float64(freq),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Term < b.Term
	})

	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions
}

// IsMisspelled reports whether term is absent from the dictionary.
func (s *SpellChecker) IsMisspelled(term string) bool {
	_, exists := s.termSet[strings.ToLower(term)]
	return !exists
}
