package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_start_time ON conversations(start_time)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
		content TEXT NOT NULL,
		cluster_id INTEGER,
		confidence_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, seq)`,
}

// PostgresStorage implements Storage on a pgx connection pool.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	q      queries
	logger *zap.Logger
}

// NewPostgresStorage connects to dsn, pings the server and creates the schema.
func NewPostgresStorage(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	logger.Info("conversation store ready",
		zap.String("driver", "postgres"),
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
	)
	return &PostgresStorage{pool: pool, q: queries{ph: sq.Dollar, seq: "seq"}, logger: logger}, nil
}

// CreateConversation inserts a new conversation with a fresh id.
func (s *PostgresStorage) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	c := newConversation()
	query, args, err := s.q.insertConversation(c).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsStarted.Inc()
	return c, nil
}

// GetConversation returns a conversation by id.
func (s *PostgresStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query, args, err := s.q.selectConversation(id).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(s.pool.QueryRow(ctx, query, args...), false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, err
}

// ListConversations returns the most recent conversations with their message counts.
func (s *PostgresStorage) ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	query, args, err := s.q.listConversations(limit).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []*models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows, true)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// EndConversation sets the conversation's end time.
func (s *PostgresStorage) EndConversation(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.q.endConversation(id, at.UTC()).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, id, query, args)
}

// DeleteConversation removes a conversation and, by cascade, its messages.
func (s *PostgresStorage) DeleteConversation(ctx context.Context, id string) error {
	query, args, err := s.q.deleteConversation(id).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, id, query, args)
}

func (s *PostgresStorage) execOne(ctx context.Context, id, query string, args []any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AddMessage appends a message. ID and CreatedAt are set when empty.
func (s *PostgresStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	if err := prepareMessage(msg); err != nil {
		return err
	}
	query, args, err := s.q.insertMessage(msg).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if _, getErr := s.GetConversation(ctx, msg.ConversationID); errors.Is(getErr, ErrNotFound) {
			return getErr
		}
		return fmt.Errorf("add message: %w", err)
	}
	recordMessage(msg)
	return nil
}

// GetMessages returns a conversation's messages in the order they were written.
func (s *PostgresStorage) GetMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	query, args, err := s.q.selectMessages(conversationID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountConversations returns the total number of conversations.
func (s *PostgresStorage) CountConversations(ctx context.Context) (int64, error) {
	return s.count(ctx, "conversations")
}

// CountMessages returns the total number of messages.
func (s *PostgresStorage) CountMessages(ctx context.Context) (int64, error) {
	return s.count(ctx, "messages")
}

func (s *PostgresStorage) count(ctx context.Context, table string) (int64, error) {
	query, args, err := s.q.count(table).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// Close releases the pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
