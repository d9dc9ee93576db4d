package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/dialogue"
	"github.com/hyperjump/cursobot/internal/embedding"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/ranking"
	"github.com/hyperjump/cursobot/internal/recommend"
	"github.com/hyperjump/cursobot/internal/storage"
	"github.com/hyperjump/cursobot/internal/vector"
)

type fixture struct {
	svc      *Service
	store    *storage.SQLiteStorage
	states   *dialogue.MemoryStore
	provider *catalog.Provider
}

func testCourses() []models.Course {
	return []models.Course{
		{OfferingID: "OF-1", Name: "Programación en Python", Modality: "Virtual", OfferType: "Curso", PortfolioCode: "EXT"},
		{OfferingID: "OF-2", Name: "Programación en Java", Modality: "Presencial", OfferType: "Curso"},
		{OfferingID: "OF-3", Name: "Cocina colombiana", Modality: "Virtual", OfferType: "Taller", PortfolioCode: "EXT"},
	}
}

func newFixture(t *testing.T, withCatalog bool, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := catalog.NewStaticProvider(nil)
	if withCatalog {
		courses := testCourses()
		m, err := vector.NewMatrix([][]float32{{1, 0.2}, {0.9, 0.3}, {0, 1}})
		require.NoError(t, err)
		cat, err := catalog.New(courses, m)
		require.NoError(t, err)
		provider = catalog.NewStaticProvider(cat)
	}

	r, err := ranking.NewRanker(ranking.DefaultOptions(), nil)
	require.NoError(t, err)
	asm := recommend.NewAssembler(r, provider, recommend.DefaultOptions(), nil)
	machine := dialogue.NewMachine(dialogue.NewClassifier(dialogue.DefaultKeywords()), asm)
	states := dialogue.NewMemoryStore()

	return &fixture{
		svc:      NewService(store, states, machine, provider, opts...),
		store:    store,
		states:   states,
		provider: provider,
	}
}

// botLines returns the persisted bot contents that follow the n-th user message.
func botLines(msgs []*models.Message, n int) []string {
	var out []string
	seen := -1
	for _, m := range msgs {
		if m.Sender == models.SenderUser {
			seen++
			continue
		}
		if seen == n {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestProcess_fullConversation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	r, err := f.svc.Process(ctx, Request{Text: "hola"})
	require.NoError(t, err)
	require.NotEmpty(t, r.ConversationID)
	assert.Len(t, r.Lines, 3)
	assert.Equal(t, dialogue.StepAwaitingTopic, r.State.Step)
	id := r.ConversationID
	replies := [][]string{r.Lines}

	r, err = f.svc.Process(ctx, Request{Text: "quiero aprender programación", ConversationID: id})
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepAwaitingModality, r.State.Step)
	assert.Equal(t, "programación", r.State.Topic)
	replies = append(replies, r.Lines)

	r, err = f.svc.Process(ctx, Request{Text: "virtual", ConversationID: id})
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepAwaitingAudience, r.State.Step)
	replies = append(replies, r.Lines)

	r, err = f.svc.Process(ctx, Request{Text: "externo", ConversationID: id})
	require.NoError(t, err)
	replies = append(replies, r.Lines)
	require.NotEmpty(t, r.State.Results)
	assert.Equal(t, "Programación en Python", r.State.Results[0].Name)
	assert.Contains(t, r.Lines[1], "1. 💻 Programación en Python")

	r, err = f.svc.Process(ctx, Request{Text: "curso 1", ConversationID: id})
	require.NoError(t, err)
	replies = append(replies, r.Lines)
	assert.Equal(t, dialogue.StepAwaitingTopic, r.State.Step)

	_, err = f.states.Get(ctx, id)
	assert.ErrorIs(t, err, dialogue.ErrStateNotFound, "state is dropped after a selection")
	conv, err := f.store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, conv.EndTime)

	msgs, err := f.store.GetMessages(ctx, id)
	require.NoError(t, err)
	for i, want := range replies {
		assert.Equal(t, want, botLines(msgs, i), "turn %d", i)
	}
	var userTurns []string
	for _, m := range msgs {
		if m.Sender == models.SenderUser {
			userTurns = append(userTurns, m.Content)
		}
	}
	assert.Equal(t, []string{"hola", "quiero aprender programación", "virtual", "externo", "curso 1"}, userTurns)
}

func TestProcess_emptyText(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	r, err := f.svc.Process(ctx, Request{Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, []string{msgEmpty}, r.Lines)
	n, _ := f.store.CountConversations(ctx)
	assert.Zero(t, n, "no conversation is created for an empty message")

	start, err := f.svc.Process(ctx, Request{Text: "hola"})
	require.NoError(t, err)
	before, _ := f.store.CountMessages(ctx)

	r, err = f.svc.Process(ctx, Request{Text: "", ConversationID: start.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, start.ConversationID, r.ConversationID)
	after, _ := f.store.CountMessages(ctx)
	assert.Equal(t, before+1, after)

	r, err = f.svc.Process(ctx, Request{Text: "", ConversationID: "4f1c2b7e-0000-4000-8000-000000000000"})
	require.NoError(t, err)
	assert.Equal(t, []string{msgEmpty}, r.Lines)
	final, _ := f.store.CountMessages(ctx)
	assert.Equal(t, after, final)
}

func TestProcess_unknownConversation(t *testing.T) {
	f := newFixture(t, true)
	r, err := f.svc.Process(context.Background(), Request{Text: "hola", ConversationID: "4f1c2b7e-0000-4000-8000-000000000000"})
	require.NoError(t, err)
	assert.NotEqual(t, "4f1c2b7e-0000-4000-8000-000000000000", r.ConversationID)
	assert.Equal(t, msgUnknownConv, r.Lines[0])
	assert.Len(t, r.Lines, 4)
}

func TestProcess_catalogUnavailable(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Process(ctx, Request{Text: "hola"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
	assert.True(t, errors.Is(err, catalog.ErrUnavailable))

	n, _ := f.store.CountConversations(ctx)
	assert.Zero(t, n)
	assert.Zero(t, f.states.Len())
}

func TestProcess_externalStateOverridesStore(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	start, err := f.svc.Process(ctx, Request{Text: "hola"})
	require.NoError(t, err)

	ext := &dialogue.State{Step: dialogue.StepAwaitingAudience, Topic: "programación", Modality: dialogue.ModalityVirtual}
	r, err := f.svc.Process(ctx, Request{Text: "externo", ConversationID: start.ConversationID, ExternalState: ext})
	require.NoError(t, err)
	assert.NotEmpty(t, r.State.Results)

	stored, err := f.states.Get(ctx, start.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, r.State.Step, stored.Step)

	_, err = f.svc.Process(ctx, Request{Text: "x", ConversationID: start.ConversationID, ExternalState: &dialogue.State{Step: 9}})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeState(t *testing.T) {
	st, err := DecodeState(nil)
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = DecodeState([]byte(`{"step":2,"topic":"python"}`))
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepAwaitingModality, st.Step)
	assert.Equal(t, "python", st.Topic)

	_, err = DecodeState([]byte(`{"step":`))
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = DecodeState([]byte(`{"step":0}`))
	assert.ErrorIs(t, err, ErrInvalidState)
}

type failingTagger struct{}

func (failingTagger) Tag(context.Context, string) (*embedding.Tag, error) {
	return nil, errors.New("model not loaded")
}

func TestProcess_tagsUserMessages(t *testing.T) {
	e := embedding.NewHashEmbedder(16)
	a, _ := e.Embed(context.Background(), "hola")
	b, _ := e.Embed(context.Background(), "cocina")
	centroids, err := vector.NewMatrix([][]float32{a, b})
	require.NoError(t, err)
	tagger, err := embedding.NewTagger(e, centroids)
	require.NoError(t, err)

	f := newFixture(t, true, WithTagger(tagger))
	ctx := context.Background()
	r, err := f.svc.Process(ctx, Request{Text: "hola"})
	require.NoError(t, err)
	msgs, err := f.store.GetMessages(ctx, r.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, msgs[0].ClusterID)
	assert.Equal(t, 0, *msgs[0].ClusterID)
	assert.Equal(t, 1.0, *msgs[0].ConfidenceScore)
	assert.Nil(t, msgs[1].ClusterID, "bot lines are not tagged")

	f = newFixture(t, true, WithTagger(failingTagger{}))
	r, err = f.svc.Process(ctx, Request{Text: "hola"})
	require.NoError(t, err, "tagging failures do not fail the turn")
	msgs, _ = f.store.GetMessages(ctx, r.ConversationID)
	assert.Nil(t, msgs[0].ClusterID)
}
