package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/chat"
	"github.com/hyperjump/cursobot/internal/config"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/ranking"
	"github.com/hyperjump/cursobot/internal/storage"
	"github.com/hyperjump/cursobot/internal/validation"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	external, err := chat.DecodeState(req.ExternalState)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.chat.Process(r.Context(), chat.Request{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		ExternalState:  external,
	})
	if err != nil {
		s.respondErr(w, "process message", err)
		return
	}

	resp := models.ChatResponse{Reply: reply.Lines, ConversationID: reply.ConversationID}
	if reply.State != nil {
		if resp.State, err = json.Marshal(reply.State); err != nil {
			s.respondErr(w, "encode state", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}
	convs, err := s.store.ListConversations(r.Context(), limit)
	if err != nil {
		s.respondErr(w, "list conversations", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"conversations": convs, "count": len(convs)})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.CreateConversation(r.Context())
	if err != nil {
		s.respondErr(w, "create conversation", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.respondErr(w, "get messages", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "messages": msgs})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete conversation request", zap.String("id", id))
	if err := s.store.DeleteConversation(r.Context(), id); err != nil {
		s.respondErr(w, "delete conversation", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := models.RecommendationQuery{Query: params.Get("q"), Variant: params.Get("variant")}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if err := validation.Struct(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := q.Validate(s.config.Ranking.DefaultLimit, s.config.Ranking.MaxLimit); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Variant == "" {
		q.Variant = s.config.Ranking.Variant
	}
	variant, err := ranking.ParseVariant(q.Variant)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cat, err := s.catalogs.Get()
	if err != nil {
		s.respondErr(w, "recommend", err)
		return
	}
	start := time.Now()
	res, err := s.ranker.RankVariant(variant, q.Query, cat, q.Limit, s.config.Ranking.EmbeddingWeightOrDefault())
	if err != nil {
		s.respondErr(w, "recommend", err)
		return
	}

	resp := NewRecommendationResponse(q.Query, res, time.Since(start))
	s.respondJSON(w, http.StatusOK, resp)
}

// NewRecommendationResponse converts a ranking result into its API shape.
func NewRecommendationResponse(query string, res *ranking.Result, took time.Duration) *models.RecommendationResponse {
	resp := &models.RecommendationResponse{
		Query:          query,
		CorrectedQuery: res.Corrected,
		Variant:        string(res.Variant),
		Results:        make([]*models.RecommendationResult, len(res.Items)),
		Total:          len(res.Items),
		QueryTime:      took.Milliseconds(),
	}
	for i, it := range res.Items {
		course := it.Course
		resp.Results[i] = &models.RecommendationResult{
			Rank:           i + 1,
			Course:         &course,
			Score:          it.Score,
			LexicalScore:   it.Lexical,
			EmbeddingScore: it.Embedding,
		}
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cat := s.catalogs.Status()
	resp := map[string]any{
		"catalog": cat,
		"tagger":  s.tagger,
		"ranking": map[string]any{
			"variant":          s.config.Ranking.Variant,
			"embedding_weight": s.config.Ranking.EmbeddingWeightOrDefault(),
			"typo_correction":  s.config.Ranking.TypoCorrectionOrDefault(),
		},
	}

	convs, err := s.store.CountConversations(ctx)
	if err != nil {
		s.logger.Error("status: count conversations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msgs, err := s.store.CountMessages(ctx)
	if err != nil {
		s.logger.Error("status: count messages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp["conversations"] = convs
	resp["messages"] = msgs

	paths := []string{s.config.Dialogue.StatePath}
	if s.config.Storage.Driver == config.StorageSQLite {
		paths = append(paths, s.config.Storage.DatabasePath)
	}
	if n, err := storage.UsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = n
	}

	status := http.StatusOK
	if !cat.Loaded {
		status = http.StatusServiceUnavailable
	}
	resp["ready"] = cat.Loaded
	s.respondJSON(w, status, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalogs.Reload()
	if errors.Is(err, catalog.ErrUnavailable) {
		s.respondErr(w, "reload catalog", err)
		return
	}
	if err != nil {
		s.logger.Error("catalog reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"rows":    c.Len(),
		"version": c.Version(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps known sentinel errors to status codes.
func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "course catalog is not loaded")
	case errors.Is(err, chat.ErrInvalidState):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
