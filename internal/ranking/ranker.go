package ranking

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/keyword"
	"github.com/hyperjump/cursobot/internal/metrics"
)

// index holds the vector spaces fitted on one catalog snapshot.
type index struct {
	snapshot  *catalog.Catalog
	names     *Vectorizer
	nameSpell *keyword.SpellChecker
	contexts  *Vectorizer
	ctxSpell  *keyword.SpellChecker
}

// Ranker ranks offerings of a catalog snapshot. Vector spaces are fitted
// lazily and rebuilt when a different snapshot is passed in.
type Ranker struct {
	opts     Options
	analyzer *keyword.Analyzer
	logger   *zap.Logger

	mu  sync.Mutex
	idx *index
}

// NewRanker creates a Ranker with the given options.
func NewRanker(opts Options, logger *zap.Logger) (*Ranker, error) {
	opts.applyDefaults()
	if _, err := ParseVariant(string(opts.Variant)); err != nil {
		return nil, err
	}
	if opts.EmbeddingWeight < 0 || opts.EmbeddingWeight > 1 {
		return nil, fmt.Errorf("embedding weight must be in [0,1], got %v", opts.EmbeddingWeight)
	}
	an, err := keyword.NewAnalyzer()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{opts: opts, analyzer: an, logger: logger}, nil
}

// Rank scores query against cat with the configured variant and returns at
// most topK offerings with distinct names. topK <= 0 means no limit.
func (r *Ranker) Rank(query string, cat *catalog.Catalog, topK int, weight float64) (*Result, error) {
	return r.RankVariant(r.opts.Variant, query, cat, topK, weight)
}

// RankVariant is Rank with an explicit lexical variant.
func (r *Ranker) RankVariant(variant Variant, query string, cat *catalog.Catalog, topK int, weight float64) (*Result, error) {
	if cat == nil {
		return nil, catalog.ErrUnavailable
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("embedding weight must be in [0,1], got %v", weight)
	}
	if variant == "" {
		variant = VariantStandard
	}
	start := time.Now()
	defer func() {
		metrics.RankingDuration.WithLabelValues(string(variant)).Observe(time.Since(start).Seconds())
	}()

	res := &Result{Query: query, Variant: variant}
	if strings.TrimSpace(query) == "" || cat.Len() == 0 {
		return res, nil
	}

	idx := r.indexFor(cat, variant == VariantContextual)
	tokens := r.analyzer.Tokens(query)
	if len(tokens) == 0 {
		return res, nil
	}

	_, spell := idx.names, idx.nameSpell
	if variant == VariantContextual {
		_, spell = idx.contexts, idx.ctxSpell
	}
	if r.opts.TypoCorrection && spell != nil {
		checked := spell.Check(tokens)
		if checked.HasCorrections {
			tokens = checked.Corrected
			res.Corrected = strings.Join(tokens, " ")
		}
	}

	nameScores, nameHit := idx.names.Similarities(tokens)
	lexScores, lexHit := nameScores, nameHit
	if variant == VariantContextual {
		lexScores, lexHit = idx.contexts.Similarities(tokens)
	}
	if !nameHit && !lexHit {
		r.logger.Debug("query shares no term with the catalog", zap.String("query", query))
		return res, nil
	}

	seedScores := nameScores
	if !nameHit {
		seedScores = lexScores
	}
	seed := topRows(seedScores, r.opts.SeedSize)
	emb := cat.Embeddings()
	embScores, err := emb.CosineAll(emb.Mean(seed))
	if err != nil {
		return nil, fmt.Errorf("embedding similarity: %w", err)
	}

	order := make([]int, cat.Len())
	final := make([]float64, cat.Len())
	for i := range order {
		order[i] = i
		final[i] = weight*embScores[i] + (1-weight)*lexScores[i]
	}
	sort.SliceStable(order, func(a, b int) bool { return final[order[a]] > final[order[b]] })

	seen := make(map[string]struct{})
	for _, row := range order {
		course := cat.Course(row)
		key := NameKey(course.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		res.Items = append(res.Items, Scored{
			Course:    course,
			Row:       row,
			Lexical:   lexScores[row],
			Embedding: embScores[row],
			Score:     final[row],
		})
		if topK > 0 && len(res.Items) == topK {
			break
		}
	}

	r.logger.Debug("ranked query",
		zap.String("query", query),
		zap.String("corrected", res.Corrected),
		zap.String("variant", string(variant)),
		zap.Int("results", len(res.Items)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// indexFor returns the vector spaces for cat, fitting them if cat is new.
func (r *Ranker) indexFor(cat *catalog.Catalog, needContexts bool) *index {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx == nil || r.idx.snapshot != cat {
		names := FitVectorizer(r.analyzer, cat.Names(), r.opts.NameFeatures)
		r.idx = &index{
			snapshot:  cat,
			names:     names,
			nameSpell: keyword.NewSpellChecker(names, keyword.WithMaxDistance(r.opts.MaxEditDistance)),
		}
		r.logger.Info("fitted name vector space",
			zap.String("catalog_version", cat.Version()),
			zap.Int("rows", cat.Len()),
			zap.Int("terms", names.Len()))
	}
	if needContexts && r.idx.contexts == nil {
		ctx := FitVectorizer(r.analyzer, cat.Contexts(), r.opts.ContextFeatures)
		r.idx.contexts = ctx
		r.idx.ctxSpell = keyword.NewSpellChecker(ctx, keyword.WithMaxDistance(r.opts.MaxEditDistance))
	}
	return r.idx
}

// topRows returns the indices of the n highest scores, ties in row order.
func topRows(scores []float64, n int) []int {
	rows := make([]int, len(scores))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool { return scores[rows[a]] > scores[rows[b]] })
	if n < len(rows) {
		rows = rows[:n]
	}
	return rows
}

// NameKey is the identity used to de-duplicate offerings by name.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// TopN returns the first n items.
func TopN[T any](items []T, n int) []T {
	if n < 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

// Paginate returns the page of items starting at offset.
func Paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) || offset < 0 {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
