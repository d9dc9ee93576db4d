package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cursobot/internal/models"
)

func TestStruct_chatRequest(t *testing.T) {
	assert.NoError(t, Struct(&models.ChatRequest{Text: ""}))
	assert.NoError(t, Struct(&models.ChatRequest{Text: "hola", ConversationID: "0b6f9c2e-6c4e-4a53-9d43-5c2f7a4f3b10"}))

	err := Struct(&models.ChatRequest{Text: "hola", ConversationID: "abc"})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "conversation_id", verr.Fields[0].Field)
	assert.Equal(t, "conversation_id must be a UUID", verr.Error())

	err = Struct(&models.ChatRequest{Text: strings.Repeat("a", 2001)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text must be at most 2000 characters")
}

func TestStruct_recommendationQuery(t *testing.T) {
	err := Struct(&models.RecommendationQuery{Query: "", Limit: -1, Variant: "neural"})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Tag
	}
	assert.Equal(t, map[string]string{"query": "required", "limit": "min", "variant": "oneof"}, fields)

	assert.NoError(t, Struct(&models.RecommendationQuery{Query: "python", Variant: "contextual"}))
}

func TestValidator_singleton(t *testing.T) {
	assert.Same(t, Validator(), Validator())
}
