package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/cursobot/internal/metrics"
	"github.com/hyperjump/cursobot/internal/models"
)

var sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversations_start_time ON conversations(start_time);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
	content TEXT NOT NULL,
	cluster_id INTEGER,
	confidence_score REAL,
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
	q  queries
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// rowid is SQLite's implicit insertion sequence.
	return &SQLiteStorage{db: db, q: queries{ph: sq.Question, seq: "rowid"}}, nil
}

// CreateConversation inserts a new conversation with a fresh id.
func (s *SQLiteStorage) CreateConversation(ctx context.Context) (*models.Conversation, error) {
	c := newConversation()
	query, args, err := s.q.insertConversation(c).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsStarted.Inc()
	return c, nil
}

// GetConversation returns a conversation by id.
func (s *SQLiteStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query, args, err := s.q.selectConversation(id).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, args...), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, err
}

// ListConversations returns the most recent conversations with their message counts.
func (s *SQLiteStorage) ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	query, args, err := s.q.listConversations(limit).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStorage) EndConversation(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.q.endConversation(id, at.UTC()).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, id, query, args)
}

// DeleteConversation removes a conversation and, by cascade, its messages.
func (s *SQLiteStorage) DeleteConversation(ctx context.Context, id string) error {
	query, args, err := s.q.deleteConversation(id).ToSql()
	if err != nil {
		return err
	}
	return s.execOne(ctx, id, query, args)
}

func (s *SQLiteStorage) execOne(ctx context.Context, id, query string, args []any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AddMessage appends a message. ID and CreatedAt are set when empty.
func (s *SQLiteStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	if err := prepareMessage(msg); err != nil {
		return err
	}
	query, args, err := s.q.insertMessage(msg).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if _, getErr := s.GetConversation(ctx, msg.ConversationID); errors.Is(getErr, ErrNotFound) {
			return getErr
		}
		return fmt.Errorf("add message: %w", err)
	}
	recordMessage(msg)
	return nil
}

// GetMessages returns a conversation's messages in the order they were written.
func (s *SQLiteStorage) GetMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	query, args, err := s.q.selectMessages(conversationID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStorage) CountConversations(ctx context.Context) (int64, error) {
	return s.count(ctx, "conversations")
}

// CountMessages returns the total number of messages.
func (s *SQLiteStorage) CountMessages(ctx context.Context) (int64, error) {
	return s.count(ctx, "messages")
}

func (s *SQLiteStorage) count(ctx context.Context, table string) (int64, error) {
	query, args, err := s.q.count(table).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
