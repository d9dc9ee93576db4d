// Package dialogue drives the per-conversation slot-filling flow: topic,
// then modality, then audience, then paged recommendations and a selection.
package dialogue

import (
	"fmt"

	"github.com/hyperjump/cursobot/internal/models"
)

// Step is the position of a conversation in the flow.
type Step int

const (
	StepAwaitingTopic     Step = 1
	StepAwaitingModality  Step = 2
	StepAwaitingAudience  Step = 3
	StepReadyToRecommend  Step = 4
	StepAwaitingSelection Step = 5
)

func (s Step) String() string {
	switch s {
	case StepAwaitingTopic:
		return "AWAITING_TOPIC"
	case StepAwaitingModality:
		return "AWAITING_MODALITY"
	case StepAwaitingAudience:
		return "AWAITING_AUDIENCE"
	case StepReadyToRecommend:
		return "READY_TO_RECOMMEND"
	case StepAwaitingSelection:
		return "AWAITING_SELECTION"
	default:
		return fmt.Sprintf("STEP_%d", int(s))
	}
}

// Modality is the delivery mode of an offering.
type Modality string

const (
	ModalityVirtual    Modality = "Virtual"
	ModalityPresencial Modality = "Presencial"
	ModalityMixta      Modality = "Mixta"
)

// Audience is who the user is with respect to the institution.
type Audience string

const (
	AudienceInterno Audience = "interno"
	AudienceExterno Audience = "externo"
)

// State is the dialogue state of one conversation. It is JSON-serialisable so
// that a client can carry it between stateless requests.
type State struct {
	Step                Step            `json:"step"`
	Topic               string          `json:"topic,omitempty"`
	Modality            Modality        `json:"modality,omitempty"`
	Audience            Audience        `json:"audience,omitempty"`
	Results             []models.Course `json:"results,omitempty"`
	Offset              int             `json:"offset"`
	Alternatives        []models.Course `json:"alternatives,omitempty"`
	ShowingAlternatives bool            `json:"showing_alternatives"`
}

// NewState returns a state waiting for a topic.
func NewState() *State {
	return &State{Step: StepAwaitingTopic}
}

// Reset clears every slot and returns to the first step.
func (s *State) Reset() {
	*s = State{Step: StepAwaitingTopic}
}

// Displayed returns the offerings shown so far, in the order they were numbered.
func (s *State) Displayed() []models.Course {
	n := s.Offset
	if n > len(s.Results) {
		n = len(s.Results)
	}
	if n < 0 {
		n = 0
	}
	return s.Results[:n]
}

// Remaining reports how many results have not been shown yet.
func (s *State) Remaining() int {
	r := len(s.Results) - s.Offset
	if r < 0 {
		return 0
	}
	return r
}

// Validate checks a state received from outside the process.
func (s *State) Validate() error {
	if s.Step < StepAwaitingTopic || s.Step > StepAwaitingSelection {
		return fmt.Errorf("step %d out of range", s.Step)
	}
	if s.Offset < 0 || s.Offset > len(s.Results) {
		return fmt.Errorf("offset %d out of range for %d results", s.Offset, len(s.Results))
	}
	switch s.Modality {
	case "", ModalityVirtual, ModalityPresencial, ModalityMixta:
	default:
		return fmt.Errorf("unknown modality %q", s.Modality)
	}
	switch s.Audience {
	case "", AudienceInterno, AudienceExterno:
	default:
		return fmt.Errorf("unknown audience %q", s.Audience)
	}
	return nil
}
