package recommend

import (
	"strings"

	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/pkg/utils"
)

const (
	labelExterno = "🌍 Público general"
	labelInterno = "🎓 Comunidad universitaria"
)

// AudienceRule decides whether an offering is open to the general public.
// An offering is externo when its portfolio code is one of the extension codes
// or its category label contains one of the extension label fragments.
type AudienceRule struct {
	codes  map[string]struct{}
	labels []string
}

// NewAudienceRule builds a rule. Matching ignores case, accents and extra spaces.
func NewAudienceRule(codes, labels []string) *AudienceRule {
	r := &AudienceRule{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		if k := normalize(c); k != "" {
			r.codes[k] = struct{}{}
		}
	}
	for _, l := range labels {
		if k := normalize(l); k != "" {
			r.labels = append(r.labels, k)
		}
	}
	return r
}

// IsExterno reports whether c is offered to the general public.
func (r *AudienceRule) IsExterno(c models.Course) bool {
	if _, ok := r.codes[normalize(c.PortfolioCode)]; ok {
		return true
	}
	label := normalize(c.CategoryLabel)
	if label == "" {
		return false
	}
	for _, frag := range r.labels {
		if strings.Contains(label, frag) {
			return true
		}
	}
	return false
}

// Label returns the audience badge shown next to an offering.
func (r *AudienceRule) Label(c models.Course) string {
	if r.IsExterno(c) {
		return labelExterno
	}
	return labelInterno
}

func normalize(s string) string {
	return utils.NormalizeSpace(utils.Fold(s))
}
