package dialogue

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/cursobot/internal/keyword"
	"github.com/hyperjump/cursobot/pkg/utils"
)

// Keywords are the tables the classifier matches against. Entries may be
// multi-word phrases; accents and case are ignored.
type Keywords struct {
	Virtual    []string `yaml:"virtual"`
	Presencial []string `yaml:"presencial"`
	Mixta      []string `yaml:"mixta"`

	Externo []string `yaml:"externo"`
	Interno []string `yaml:"interno"`
	// NotInterno are negated phrases that mean externo ("no soy estudiante").
	NotInterno []string `yaml:"not_interno"`
	// NotExterno are negated phrases that mean interno.
	NotExterno []string `yaml:"not_externo"`

	Affirmative []string `yaml:"affirmative"`
	Negative    []string `yaml:"negative"`
	Greetings   []string `yaml:"greetings"`
	// Stopwords are dropped when extracting the topic.
	Stopwords []string `yaml:"stopwords"`
}

// DefaultKeywords returns the Spanish tables the chatbot ships with.
func DefaultKeywords() Keywords {
	return Keywords{
		Virtual:    []string{"virtual", "online", "remoto", "distancia", "en linea", "internet"},
		Presencial: []string{"presencial", "campus", "instalaciones", "en persona", "sede"},
		Mixta:      []string{"mixta", "mixto", "hibrida", "hibrido", "semi", "combinada", "combinado", "blended"},

		Externo: []string{"externo", "externa", "general", "publico", "particular", "independiente",
			"empresa", "ciudadano", "comunidad en general"},
		Interno: []string{"interno", "interna", "estudiante", "udea", "egresado", "egresada", "docente",
			"profesor", "profesora", "empleado", "empleada", "funcionario", "comunidad universitaria",
			"pregrado", "posgrado"},
		NotInterno: []string{"no soy estudiante", "no estudio", "no pertenezco", "no soy de la universidad",
			"no soy de la udea", "no soy egresado", "no trabajo en la universidad"},
		NotExterno: []string{"no soy externo", "no soy publico", "no soy particular"},

		Affirmative: []string{"si", "claro", "dale", "ok", "okay", "vale", "bueno", "sip", "yes",
			"por supuesto", "de acuerdo", "mas", "muestrame", "siguiente", "continuar", "adelante", "otros"},
		Negative: []string{"no", "nop", "nada", "ninguno", "ninguna", "suficiente", "basta", "listo",
			"ya no", "es todo"},
		Greetings: []string{"hola", "holi", "ola", "buenas", "buenos", "buen", "dia", "dias", "tardes",
			"noches", "hey", "saludos", "que", "tal", "hi", "hello"},
		Stopwords: []string{
			"a", "al", "algo", "algun", "alguna", "alguno", "aprender", "aprendiendo", "aprenda",
			"busco", "buscar", "buscando", "capacitacion", "capacitarme", "clase", "clases", "como",
			"con", "conocer", "cual", "curso", "cursos", "de", "del", "el", "ella", "en", "es", "esta",
			"este", "estoy", "estudiar", "formacion", "gustaria", "gusta", "hacer", "hay", "hola",
			"interes", "interesa", "interesada", "interesado", "la", "las", "le", "lo", "los", "me",
			"mi", "mis", "muy", "necesito", "o", "para", "por", "programa", "programas", "puedo",
			"que", "quiero", "quisiera", "recomienda", "recomiendas", "recomendar", "saber", "se",
			"sobre", "su", "taller", "talleres", "tema", "temas", "tengo", "tomar", "un", "una",
			"unos", "unas", "y", "yo",
		},
	}
}

// phrase is a keyword entry split into folded tokens.
type phrase []string

func compile(entries []string) []phrase {
	out := make([]phrase, 0, len(entries))
	for _, e := range entries {
		if toks := words(e); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

func set(entries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		for _, w := range words(e) {
			out[w] = struct{}{}
		}
	}
	return out
}

// words folds text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(utils.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Classification is the slot content found in one message.
type Classification struct {
	Topic    string
	Modality Modality
	Audience Audience
}

// Classifier maps free text to slot values. It has no state beyond its tables.
type Classifier struct {
	virtual, presencial, mixta []phrase
	externo, interno           []phrase
	notInterno, notExterno     []phrase
	affirmative, negative      []phrase
	greetings, stopwords       map[string]struct{}
}

// NewClassifier compiles kw for matching.
func NewClassifier(kw Keywords) *Classifier {
	return &Classifier{
		virtual:     compile(kw.Virtual),
		presencial:  compile(kw.Presencial),
		mixta:       compile(kw.Mixta),
		externo:     compile(kw.Externo),
		interno:     compile(kw.Interno),
		notInterno:  compile(kw.NotInterno),
		notExterno:  compile(kw.NotExterno),
		affirmative: compile(kw.Affirmative),
		negative:    compile(kw.Negative),
		greetings:   set(kw.Greetings),
		stopwords:   set(kw.Stopwords),
	}
}

// Classify extracts topic, modality and audience from text.
func (c *Classifier) Classify(text string) Classification {
	toks := words(text)
	return Classification{
		Topic:    c.Topic(text),
		Modality: c.modality(toks),
		Audience: c.audience(toks),
	}
}

// Modality returns the delivery mode named in text, or "".
func (c *Classifier) Modality(text string) Modality {
	return c.modality(words(text))
}

func (c *Classifier) modality(toks []string) Modality {
	if matchAny(toks, c.mixta, true) {
		return ModalityMixta
	}
	v := matchAny(toks, c.virtual, true)
	p := matchAny(toks, c.presencial, true)
	switch {
	case v && p:
		return ModalityMixta
	case v:
		return ModalityVirtual
	case p:
		return ModalityPresencial
	}
	return ""
}

// Audience returns the audience named in text, or "" when absent or ambiguous.
func (c *Classifier) Audience(text string) Audience {
	return c.audience(words(text))
}

func (c *Classifier) audience(toks []string) Audience {
	if matchAny(toks, c.notInterno, true) {
		return AudienceExterno
	}
	if matchAny(toks, c.notExterno, true) {
		return AudienceInterno
	}
	e := matchAny(toks, c.externo, true)
	i := matchAny(toks, c.interno, true)
	switch {
	case e && !i:
		return AudienceExterno
	case i && !e:
		return AudienceInterno
	}
	return ""
}

// Topic drops stop words from text. When nothing is left the trimmed text is returned.
func (c *Classifier) Topic(text string) string {
	var kept []string
	for _, f := range strings.Fields(text) {
		w := strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if w == "" {
			continue
		}
		folded := words(w)
		if len(folded) == 1 {
			if _, stop := c.stopwords[folded[0]]; stop {
				continue
			}
		}
		kept = append(kept, strings.ToLower(w))
	}
	if len(kept) == 0 {
		return utils.NormalizeSpace(text)
	}
	return strings.Join(kept, " ")
}

// IsGreeting reports whether text is only a greeting.
func (c *Classifier) IsGreeting(text string) bool {
	toks := words(text)
	if len(toks) == 0 {
		return false
	}
	for _, t := range toks {
		if _, ok := c.greetings[t]; !ok {
			return false
		}
	}
	return true
}

// IsAffirmative reports an unambiguous yes.
func (c *Classifier) IsAffirmative(text string) bool {
	toks := words(text)
	return matchAny(toks, c.affirmative, false) && !matchAny(toks, c.negative, false)
}

// IsNegative reports an unambiguous no.
func (c *Classifier) IsNegative(text string) bool {
	toks := words(text)
	return matchAny(toks, c.negative, false) && !matchAny(toks, c.affirmative, false)
}

var selectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#?(\d+)[.)!]?$`),
	regexp.MustCompile(`\bquiero\s+el\s+(\d+)\b`),
	regexp.MustCompile(`\bcurso\s*(?:#|no\.?|numero)?\s*(\d+)\b`),
	regexp.MustCompile(`\bopcion\s*#?\s*(\d+)\b`),
	regexp.MustCompile(`\bnumero\s*(\d+)\b`),
	regexp.MustCompile(`\b(?:el|la)\s+(\d+)\b`),
}

// ParseSelection extracts a 1-based item number ("2", "curso 2", "opción 2").
func ParseSelection(text string) (int, bool) {
	norm := utils.NormalizeSpace(utils.Fold(text))
	for _, re := range selectionPatterns {
		m := re.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func matchAny(toks []string, phrases []phrase, fuzzy bool) bool {
	for _, p := range phrases {
		if matchPhrase(toks, p, fuzzy) {
			return true
		}
	}
	return false
}

func matchPhrase(toks []string, p phrase, fuzzy bool) bool {
	if len(p) == 0 || len(p) > len(toks) {
		return false
	}
	for start := 0; start+len(p) <= len(toks); start++ {
		ok := true
		for j, kw := range p {
			if !matchToken(toks[start+j], kw, fuzzy) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// matchToken accepts an exact match and, when fuzzy, a prefix match for
// keywords of four or more letters and one edit for keywords of six or more.
func matchToken(tok, kw string, fuzzy bool) bool {
	if tok == kw {
		return true
	}
	if !fuzzy {
		return false
	}
	n := utf8.RuneCountInString(kw)
	if n >= 4 && strings.HasPrefix(tok, kw) {
		return true
	}
	if n >= 6 && utf8.RuneCountInString(tok) >= n-1 {
		return keyword.EditDistance(tok, kw) <= 1
	}
	return false
}
