package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ChatRequest is the body of POST /api/v1/chatbot/message.
// Empty text is accepted; it is answered with a canned reply.
type ChatRequest struct {
	Text           string          `json:"text" validate:"max=2000"`
	ConversationID string          `json:"conversation_id,omitempty" validate:"omitempty,uuid"`
	ExternalState  json.RawMessage `json:"external_state,omitempty"`
}

// ChatResponse carries the bot lines in display order.
type ChatResponse struct {
	Reply          []string        `json:"reply"`
	ConversationID string          `json:"conversation_id"`
	State          json.RawMessage `json:"state,omitempty"`
}

// RecommendationQuery asks the ranker directly, outside a conversation.
type RecommendationQuery struct {
	Query   string `json:"query" validate:"required,max=500"`
	Limit   int    `json:"limit,omitempty" validate:"min=0"`
	Variant string `json:"variant,omitempty" validate:"omitempty,oneof=standard contextual"`
}

// Validate ensures the query is usable and normalizes the limit into [1, maxLimit].
func (q *RecommendationQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// RecommendationResult is a ranked course with its score components.
type RecommendationResult struct {
	Rank           int     `json:"rank"`
	Course         *Course `json:"course"`
	Score          float64 `json:"score"`
	LexicalScore   float64 `json:"lexical_score"`
	EmbeddingScore float64 `json:"embedding_score"`
}

// RecommendationResponse is the response of GET /api/v1/recommendations.
type RecommendationResponse struct {
	Query          string                  `json:"query"`
	CorrectedQuery string                  `json:"corrected_query,omitempty"`
	Variant        string                  `json:"variant"`
	Results        []*RecommendationResult `json:"results"`
	Total          int                     `json:"total"`
	QueryTime      int64                   `json:"query_time_ms"`
}
