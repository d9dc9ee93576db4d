// Package recommend turns a filled dialogue state into pages of course
// recommendations: rank, filter by modality and audience, page, render.
package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/dialogue"
	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/ranking"
)

// Ranker ranks a catalog snapshot against free text.
type Ranker interface {
	Rank(query string, cat *catalog.Catalog, topK int, weight float64) (*ranking.Result, error)
}

// CatalogSource hands out the current catalog snapshot.
type CatalogSource interface {
	Get() (*catalog.Catalog, error)
}

// Options configure an Assembler.
type Options struct {
	PageSize        int
	CandidatePool   int
	Alternatives    int
	EmbeddingWeight float64
	ExtensionCodes  []string
	ExtensionLabels []string
}

// DefaultOptions returns the chatbot's paging and filtering defaults.
func DefaultOptions() Options {
	return Options{
		PageSize:        4,
		CandidatePool:   100,
		Alternatives:    10,
		EmbeddingWeight: 0.6,
		ExtensionCodes:  []string{"EXT", "EC", "EXTENSION", "EDUCACION CONTINUA"},
		ExtensionLabels: []string{"educacion continua", "extension"},
	}
}

// Assembler implements dialogue.Recommender.
type Assembler struct {
	ranker   Ranker
	catalogs CatalogSource
	opts     Options
	audience *AudienceRule
	logger   *zap.Logger
}

var _ dialogue.Recommender = (*Assembler)(nil)

// NewAssembler creates an Assembler. Non-positive sizes fall back to the defaults.
func NewAssembler(r Ranker, src CatalogSource, opts Options, logger *zap.Logger) *Assembler {
	d := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = d.PageSize
	}
	if opts.CandidatePool <= 0 {
		opts.CandidatePool = d.CandidatePool
	}
	if opts.Alternatives <= 0 {
		opts.Alternatives = d.Alternatives
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		ranker:   r,
		catalogs: src,
		opts:     opts,
		audience: NewAudienceRule(opts.ExtensionCodes, opts.ExtensionLabels),
		logger:   logger,
	}
}

// Generate ranks st.Topic, applies the modality and audience filters and shows
// the first page. When the filters remove everything the unfiltered top
// matches are kept as alternatives and offered instead. When nothing matches
// at all only an apology is returned and st is not modified.
func (a *Assembler) Generate(ctx context.Context, st *dialogue.State) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cat, err := a.catalogs.Get()
	if err != nil {
		return nil, err
	}
	res, err := a.ranker.Rank(st.Topic, cat, a.opts.CandidatePool, a.opts.EmbeddingWeight)
	if err != nil {
		return nil, fmt.Errorf("rank %q: %w", st.Topic, err)
	}
	if len(res.Items) == 0 {
		metrics.Recommendations.WithLabelValues("empty").Inc()
		return []string{fmt.Sprintf("😔 No encontré cursos relacionados con «%s». Intenta con otro tema.", st.Topic)}, nil
	}

	ranked := make([]models.Course, len(res.Items))
	for i, it := range res.Items {
		ranked[i] = it.Course
	}
	filtered := dedupe(a.Filter(ranked, st.Modality, st.Audience))

	a.logger.Debug("assembled recommendations",
		zap.String("topic", st.Topic),
		zap.String("modality", string(st.Modality)),
		zap.String("audience", string(st.Audience)),
		zap.Int("ranked", len(ranked)),
		zap.Int("filtered", len(filtered)))

	if len(filtered) == 0 {
		metrics.Recommendations.WithLabelValues("alternatives").Inc()
		st.Results = nil
		st.Offset = 0
		st.Alternatives = ranking.TopN(ranked, a.opts.Alternatives)
		st.ShowingAlternatives = true
		return []string{
			fmt.Sprintf("No encontré cursos de «%s» con modalidad %s para %s.",
				st.Topic, st.Modality, audienceText(st.Audience)),
			fmt.Sprintf("Sí tengo %d cursos relacionados sin esos filtros. ¿Quieres verlos? Responde sí o no.",
				len(st.Alternatives)),
		}, nil
	}

	metrics.Recommendations.WithLabelValues("results").Inc()
	st.Results = filtered
	st.Offset = 0
	st.Alternatives = nil
	st.ShowingAlternatives = false
	out := []string{fmt.Sprintf("✨ Encontré %d cursos sobre «%s» para ti:", len(filtered), st.Topic)}
	return append(out, a.page(st)...), nil
}

// NextPage shows the next page of st.Results.
func (a *Assembler) NextPage(st *dialogue.State) []string {
	if st.Remaining() == 0 {
		st.Step = dialogue.StepAwaitingSelection
		return []string{"Ya te mostré todos los cursos que encontré. Escribe el número del que te interese."}
	}
	return a.page(st)
}

// AcceptAlternatives switches st to the unfiltered fallback list and shows its first page.
func (a *Assembler) AcceptAlternatives(st *dialogue.State) []string {
	st.Results = dedupe(st.Alternatives)
	st.Alternatives = nil
	st.ShowingAlternatives = false
	st.Offset = 0
	out := []string{"Estas son las opciones sin filtros:"}
	return append(out, a.page(st)...)
}

// page renders the next PageSize results, numbered across pages, and
// advances st.Offset. The last page moves st to the selection step.
func (a *Assembler) page(st *dialogue.State) []string {
	items := ranking.Paginate(st.Results, st.Offset, a.opts.PageSize)
	out := make([]string, 0, len(items)+1)
	for i, c := range items {
		out = append(out, a.line(st.Offset+i+1, c))
	}
	st.Offset += len(items)
	if st.Remaining() == 0 {
		st.Step = dialogue.StepAwaitingSelection
		return append(out, "Esos son todos. Escribe el número del curso que te interese, por ejemplo \"curso 1\".")
	}
	return append(out, "¿Quieres ver más cursos? Responde sí o no, o escribe el número de un curso.")
}

// Filter keeps the offerings whose modality equals modality (ignoring case and
// accents) and, for the externo audience, that are open to the public.
// Empty criteria do not filter.
func (a *Assembler) Filter(courses []models.Course, modality dialogue.Modality, audience dialogue.Audience) []models.Course {
	want := normalize(string(modality))
	out := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		if want != "" && normalize(c.Modality) != want {
			continue
		}
		if audience == dialogue.AudienceExterno && !a.audience.IsExterno(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func dedupe(courses []models.Course) []models.Course {
	seen := make(map[string]struct{}, len(courses))
	out := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		k := ranking.NameKey(c.Name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func audienceText(a dialogue.Audience) string {
	if a == dialogue.AudienceExterno {
		return "público externo"
	}
	return "la comunidad universitaria"
}
