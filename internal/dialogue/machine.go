package dialogue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
)

// Recommender produces the recommendation lines for a state that has every slot filled.
type Recommender interface {
	// Generate ranks the topic, filters and shows the first page. It mutates st.
	Generate(ctx context.Context, st *State) ([]string, error)
	// NextPage shows the next page of st.Results.
	NextPage(st *State) []string
	// AcceptAlternatives replaces the results with the unfiltered fallback and shows its first page.
	AcceptAlternatives(st *State) []string
	// Detail renders one offering.
	Detail(c models.Course) []string
}

const (
	msgAskTopic        = "¿Qué tema te gustaría aprender? Por ejemplo: programación, finanzas o idiomas."
	msgAskModality     = "¿En qué modalidad lo prefieres: virtual, presencial o mixta?"
	msgRetryModality   = "No reconocí la modalidad. Responde virtual, presencial o mixta."
	msgAskAudience     = "¿Eres parte de la comunidad universitaria (estudiante, egresado, docente o empleado) o eres público externo?"
	msgRetryAudience   = "No te entendí. ¿Eres interno (comunidad universitaria) o externo (público general)?"
	msgAskMore         = "¿Quieres ver más cursos? Responde sí o no, o escribe el número de un curso."
	msgAskAlternatives = "¿Quieres ver las opciones sin esos filtros? Responde sí o no."
	msgPickOne         = "Perfecto. Escribe el número del curso que te interese, por ejemplo \"curso 2\"."
	msgOtherTopic      = "De acuerdo. ¿Sobre qué otro tema te gustaría aprender?"
	msgNothingShown    = "Todavía no te he mostrado cursos para elegir."
	msgRestart         = "No entendí tu respuesta. Si quieres empezar de nuevo, cuéntame qué tema te interesa."
	msgSelectionDone   = "¡Excelente elección! Si quieres buscar otro curso, escribe un nuevo tema."
)

// Turn is the outcome of one message.
type Turn struct {
	Lines []string
	// Completed is set when the user picked an offering. The caller should
	// drop the state and close the conversation.
	Completed bool
	// Selected is the picked offering when Completed.
	Selected *models.Course
}

// Machine applies one user message to a State.
type Machine struct {
	classifier     *Classifier
	rec            Recommender
	resetOnRestart bool
	logger         *zap.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithResetOnRestart makes unhandled input at the last steps start the flow over
// instead of leaving the state as it is.
func WithResetOnRestart(reset bool) MachineOption {
	return func(m *Machine) { m.resetOnRestart = reset }
}

// WithLogger sets the machine's logger.
func WithLogger(logger *zap.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMachine creates a Machine.
func NewMachine(c *Classifier, rec Recommender, opts ...MachineOption) *Machine {
	m := &Machine{classifier: c, rec: rec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle applies text to st. Selection is tried first, then yes/no at step 4,
// then the slot-filling transitions.
//
// When the topic matches no offering at all, st is reset to step 1 on purpose
// so the next message is read as a new topic instead of a yes/no answer.
func (m *Machine) Handle(ctx context.Context, st *State, text string) (*Turn, error) {
	from := st.Step
	turn, err := m.handle(ctx, st, text)
	if err != nil {
		return nil, err
	}
	metrics.ObserveTransition(int(from), int(st.Step))
	if from != st.Step {
		m.logger.Debug("dialogue transition",
			zap.Stringer("from", from),
			zap.Stringer("to", st.Step))
	}
	return turn, nil
}

func (m *Machine) handle(ctx context.Context, st *State, text string) (*Turn, error) {
	if st.Step >= StepReadyToRecommend {
		if n, ok := ParseSelection(text); ok {
			return m.selectItem(st, n), nil
		}
	}
	if st.Step == StepReadyToRecommend {
		if t := m.moreOrLess(st, text); t != nil {
			return t, nil
		}
	}

	switch st.Step {
	case StepAwaitingTopic:
		if m.classifier.IsGreeting(text) {
			return lines(msgAskTopic), nil
		}
		st.Topic = m.classifier.Topic(text)
		st.Step = StepAwaitingModality
		return lines(fmt.Sprintf("Genial, buscaré cursos sobre «%s».", st.Topic), msgAskModality), nil

	case StepAwaitingModality:
		mod := m.classifier.Modality(text)
		if mod == "" {
			return lines(msgRetryModality), nil
		}
		st.Modality = mod
		st.Step = StepAwaitingAudience
		return lines(msgAskAudience), nil

	case StepAwaitingAudience:
		aud := m.classifier.Audience(text)
		if aud == "" {
			return lines(msgRetryAudience), nil
		}
		st.Audience = aud
		st.Step = StepReadyToRecommend
		out, err := m.rec.Generate(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("generate recommendations: %w", err)
		}
		if len(st.Results) == 0 && !st.ShowingAlternatives {
			// Nothing matched the topic at all: ask for another one.
			st.Reset()
			out = append(out, msgOtherTopic)
		}
		return lines(out...), nil
	}

	if m.resetOnRestart {
		st.Reset()
	}
	return lines(msgRestart), nil
}

// moreOrLess handles yes/no at step 4. It re-prompts on anything else.
func (m *Machine) moreOrLess(st *State, text string) *Turn {
	switch {
	case m.classifier.IsAffirmative(text):
		if st.ShowingAlternatives {
			return lines(m.rec.AcceptAlternatives(st)...)
		}
		return lines(m.rec.NextPage(st)...)
	case m.classifier.IsNegative(text):
		if st.ShowingAlternatives {
			st.Reset()
			return lines(msgOtherTopic)
		}
		st.Step = StepAwaitingSelection
		return lines(msgPickOne)
	case st.ShowingAlternatives:
		return lines(msgAskAlternatives)
	default:
		return lines(msgAskMore)
	}
}

func (m *Machine) selectItem(st *State, n int) *Turn {
	shown := st.Displayed()
	if len(shown) == 0 {
		return lines(msgNothingShown)
	}
	if n < 1 || n > len(shown) {
		return lines(fmt.Sprintf("El número %d no está en la lista. Elige un número entre 1 y %d.", n, len(shown)))
	}
	course := shown[n-1]
	out := append(m.rec.Detail(course), msgSelectionDone)
	return &Turn{Lines: out, Completed: true, Selected: &course}
}

func lines(l ...string) *Turn {
	return &Turn{Lines: l}
}
