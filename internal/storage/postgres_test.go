package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/models"
)

// Runs only against a live server: CURSOBOT_TEST_DATABASE_URL=postgres://...
func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("CURSOBOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CURSOBOT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStorage(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	conv, err := store.CreateConversation(ctx)
	require.NoError(t, err)
	for _, content := range []string{"hola", "¡Hola!", "¿Qué tema te interesa?"} {
		sender := models.SenderBot
		if content == "hola" {
			sender = models.SenderUser
		}
		require.NoError(t, store.AddMessage(ctx, &models.Message{ConversationID: conv.ID, Sender: sender, Content: content}))
	}
	msgs, err := store.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hola", msgs[0].Content)
	assert.Equal(t, "¿Qué tema te interesa?", msgs[2].Content)

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))
	_, err = store.GetConversation(ctx, conv.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
