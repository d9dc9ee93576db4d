// Package storage persists conversations and their messages.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/config"
	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Storage defines conversation and message persistence operations.
type Storage interface {
	// Conversation operations
	CreateConversation(ctx context.Context) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error)
	EndConversation(ctx context.Context, id string, at time.Time) error
	DeleteConversation(ctx context.Context, id string) error

	// Message operations. Messages are append-only.
	AddMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*models.Message, error)

	// Stats
	CountConversations(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.StorageSQLite, "":
		s, err := NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		logger.Info("conversation store ready", zap.String("driver", "sqlite"), zap.String("path", cfg.DatabasePath))
		return s, nil
	case config.StoragePostgres:
		return NewPostgresStorage(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newConversation() *models.Conversation {
	return &models.Conversation{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
	}
}

// prepareMessage fills in the id and timestamp and checks the sender.
func prepareMessage(msg *models.Message) error {
	if !msg.Sender.Valid() {
		return fmt.Errorf("invalid sender %q", msg.Sender)
	}
	if msg.ConversationID == "" {
		return errors.New("message has no conversation id")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return nil
}

func recordMessage(msg *models.Message) {
	metrics.MessagesPersisted.WithLabelValues(string(msg.Sender)).Inc()
}
