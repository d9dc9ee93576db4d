package storage

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hyperjump/cursobot/internal/models"
)

var (
	conversationColumns = []string{"id", "start_time", "end_time"}
	messageColumns      = []string{"id", "conversation_id", "sender", "content", "cluster_id", "confidence_score", "created_at"}
)

// queries builds the SQL shared by the SQLite and Postgres stores. The
// stores differ in placeholder style and in the column that breaks
// created_at ties between messages.
type queries struct {
	ph  sq.PlaceholderFormat
	seq string
}

func (q queries) insertConversation(c *models.Conversation) sq.InsertBuilder {
	return sq.Insert("conversations").
		Columns(conversationColumns...).
		Values(c.ID, c.StartTime, c.EndTime).
		PlaceholderFormat(q.ph)
}

func (q queries) selectConversation(id string) sq.SelectBuilder {
	return sq.Select(conversationColumns...).
		From("conversations").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(q.ph)
}

func (q queries) listConversations(limit int) sq.SelectBuilder {
	b := sq.Select("c.id", "c.start_time", "c.end_time", "COUNT(m.id)").
		From("conversations c").
		LeftJoin("messages m ON m.conversation_id = c.id").
		GroupBy("c.id", "c.start_time", "c.end_time").
		OrderBy("c.start_time DESC", "c.id").
		PlaceholderFormat(q.ph)
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

func (q queries) endConversation(id string, at time.Time) sq.UpdateBuilder {
	return sq.Update("conversations").
		Set("end_time", at).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(q.ph)
}

func (q queries) deleteConversation(id string) sq.DeleteBuilder {
	return sq.Delete("conversations").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(q.ph)
}

func (q queries) insertMessage(m *models.Message) sq.InsertBuilder {
	return sq.Insert("messages").
		Columns(messageColumns...).
		Values(m.ID, m.ConversationID, string(m.Sender), m.Content, m.ClusterID, m.ConfidenceScore, m.CreatedAt).
		PlaceholderFormat(q.ph)
}

func (q queries) selectMessages(conversationID string) sq.SelectBuilder {
	return sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at", q.seq).
		PlaceholderFormat(q.ph)
}

func (q queries) count(table string) sq.SelectBuilder {
	return sq.Select("COUNT(*)").From(table).PlaceholderFormat(q.ph)
}

// scanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner, withCount bool) (*models.Conversation, error) {
	var c models.Conversation
	dest := []any{&c.ID, &c.StartTime, &c.EndTime}
	if withCount {
		dest = append(dest, &c.MessageCount)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMessage(s scanner) (*models.Message, error) {
	var m models.Message
	var sender string
	if err := s.Scan(&m.ID, &m.ConversationID, &sender, &m.Content, &m.ClusterID, &m.ConfidenceScore, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Sender = models.Sender(sender)
	return &m, nil
}
