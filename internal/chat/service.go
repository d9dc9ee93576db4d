// Package chat runs one conversation turn: persistence, dialogue state and
// the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/dialogue"
	"github.com/hyperjump/cursobot/internal/embedding"
	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/storage"
)

var (
	// ErrCatalogUnavailable is returned when no catalog snapshot is loaded.
	ErrCatalogUnavailable = catalog.ErrUnavailable
	// ErrInvalidState is returned when a caller-supplied state cannot be used.
	ErrInvalidState = errors.New("invalid dialogue state")
)

const (
	msgEmpty           = "No recibí ningún mensaje. Cuéntame qué tema te gustaría aprender."
	msgUnknownConv     = "No encontré esa conversación, así que empezamos una nueva."
	msgWelcomeGreeting = "¡Hola! 👋 Soy el asistente de cursos y te ayudo a encontrar la oferta que mejor se ajusta a ti."
	msgWelcomeHow      = "Te preguntaré el tema, la modalidad y si eres parte de la comunidad universitaria."
	msgWelcomeAsk      = "¿Qué tema te gustaría aprender?"
)

// Tagger assigns a topic cluster to a user message.
type Tagger interface {
	Tag(ctx context.Context, text string) (*embedding.Tag, error)
}

// CatalogSource reports whether a catalog snapshot is loaded.
type CatalogSource interface {
	Get() (*catalog.Catalog, error)
}

// Request is one user message.
type Request struct {
	Text           string
	ConversationID string
	// ExternalState, when set, replaces the stored dialogue state for this turn.
	ExternalState *dialogue.State
}

// Reply holds the bot lines in display order.
type Reply struct {
	Lines          []string
	ConversationID string
	State          *dialogue.State
}

// Service processes conversation turns.
type Service struct {
	store    storage.Storage
	states   dialogue.Store
	machine  *dialogue.Machine
	catalogs CatalogSource
	tagger   Tagger
	locks    *dialogue.KeyedMutex
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTagger tags user messages with a topic cluster.
func WithTagger(t Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(store storage.Storage, states dialogue.Store, machine *dialogue.Machine, catalogs CatalogSource, opts ...Option) *Service {
	s := &Service{
		store:    store,
		states:   states,
		machine:  machine,
		catalogs: catalogs,
		locks:    dialogue.NewKeyedMutex(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecodeState parses a caller-supplied dialogue state.
func DecodeState(raw []byte) (*dialogue.State, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var st dialogue.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return &st, nil
}

// Process handles one user message.
func (s *Service) Process(ctx context.Context, req Request) (reply *Reply, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
			if errors.Is(err, ErrCatalogUnavailable) {
				outcome = "unavailable"
			}
		}
		metrics.TurnDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		outcome = "empty"
		return s.empty(ctx, req.ConversationID)
	}
	if req.ExternalState != nil {
		if err := req.ExternalState.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	if _, err := s.catalogs.Get(); err != nil {
		return nil, fmt.Errorf("process message: %w", err)
	}

	var note []string
	if req.ConversationID != "" {
		_, err := s.store.GetConversation(ctx, req.ConversationID)
		switch {
		case err == nil:
			return s.turn(ctx, req.ConversationID, text, req.ExternalState)
		case errors.Is(err, storage.ErrNotFound):
			s.logger.Info("unknown conversation, starting a new one", zap.String("conversation_id", req.ConversationID))
			note = []string{msgUnknownConv}
		default:
			return nil, fmt.Errorf("load conversation: %w", err)
		}
	}
	outcome = "welcome"
	return s.welcome(ctx, text, note)
}

// empty answers a blank message. The reply is persisted only for an existing conversation.
func (s *Service) empty(ctx context.Context, id string) (*Reply, error) {
	reply := &Reply{Lines: []string{msgEmpty}, ConversationID: id}
	if id == "" {
		return reply, nil
	}
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reply, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.persistBot(ctx, id, reply.Lines); err != nil {
		return nil, err
	}
	if st, err := s.states.Get(ctx, id); err == nil {
		reply.State = st
	}
	return reply, nil
}

// welcome starts a conversation.
func (s *Service) welcome(ctx context.Context, text string, note []string) (*Reply, error) {
	conv, err := s.store.CreateConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	if err := s.persistUser(ctx, conv.ID, text); err != nil {
		return nil, err
	}
	st := dialogue.NewState()
	if err := s.states.Put(ctx, conv.ID, st); err != nil {
		return nil, fmt.Errorf("save dialogue state: %w", err)
	}
	lines := append(note, msgWelcomeGreeting, msgWelcomeHow, msgWelcomeAsk)
	if err := s.persistBot(ctx, conv.ID, lines); err != nil {
		return nil, err
	}
	s.logger.Info("conversation started", zap.String("conversation_id", conv.ID))
	return &Reply{Lines: lines, ConversationID: conv.ID, State: st}, nil
}

// turn applies text to an existing conversation under its lock.
func (s *Service) turn(ctx context.Context, id, text string, external *dialogue.State) (*Reply, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.persistUser(ctx, id, text); err != nil {
		return nil, err
	}

	st := external
	if st == nil {
		var err error
		st, err = s.states.Get(ctx, id)
		if errors.Is(err, dialogue.ErrStateNotFound) {
			st = dialogue.NewState()
		} else if err != nil {
			return nil, fmt.Errorf("load dialogue state: %w", err)
		}
	}

	t, err := s.machine.Handle(ctx, st, text)
	if err != nil {
		return nil, fmt.Errorf("handle message: %w", err)
	}

	if t.Completed {
		if err := s.states.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("drop dialogue state: %w", err)
		}
		if err := s.store.EndConversation(ctx, id, s.now()); err != nil {
			return nil, fmt.Errorf("end conversation: %w", err)
		}
		s.logger.Info("course selected",
			zap.String("conversation_id", id),
			zap.String("offering_id", t.Selected.OfferingID))
		st = dialogue.NewState()
	} else if err := s.states.Put(ctx, id, st); err != nil {
		return nil, fmt.Errorf("save dialogue state: %w", err)
	}

	if err := s.persistBot(ctx, id, t.Lines); err != nil {
		return nil, err
	}
	return &Reply{Lines: t.Lines, ConversationID: id, State: st}, nil
}

func (s *Service) persistUser(ctx context.Context, id, text string) error {
	msg := &models.Message{ConversationID: id, Sender: models.SenderUser, Content: text}
	if s.tagger != nil {
		if tag, err := s.tagger.Tag(ctx, text); err != nil {
			s.logger.Warn("message tagging failed", zap.String("conversation_id", id), zap.Error(err))
		} else {
			msg.ClusterID = &tag.ClusterID
			msg.ConfidenceScore = &tag.Confidence
		}
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	return nil
}

// persistBot stores one message per line, in order.
func (s *Service) persistBot(ctx context.Context, id string, lines []string) error {
	for i, line := range lines {
		msg := &models.Message{ConversationID: id, Sender: models.SenderBot, Content: line}
		if err := s.store.AddMessage(ctx, msg); err != nil {
			return fmt.Errorf("persist bot line %d of %d: %w", i+1, len(lines), err)
		}
	}
	return nil
}
