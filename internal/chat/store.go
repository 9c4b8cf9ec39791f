package chat

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/db"
)

const maxConversation = 500

type MessageStore interface {
	Insert(ctx context.Context, m *Message) (int64, error)
	Conversation(ctx context.Context, a, b, afterID int64) ([]Message, error)
	MarkRead(ctx context.Context, receiverID, senderID int64) (int64, error)
	UnreadCount(ctx context.Context, receiverID int64, senderRole auth.Role) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) Insert(ctx context.Context, m *Message) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO messages (sender_id, receiver_id, sender_role, receiver_role, content, sent_at, is_read)
	VALUES (?, ?, ?, ?, ?, ?, 0)`, m.SenderID, m.ReceiverID, m.SenderRole, m.ReceiverRole, m.Content, m.SentAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Conversation: a↔b の双方向、古い順。
// afterID なしは最新 maxConversation 件、afterID ありはそれより新しいものを先頭から
func (s *Store) Conversation(ctx context.Context, a, b, afterID int64) ([]Message, error) {
	var buf bytes.Buffer
	buf.WriteString(`
	SELECT m.message_id, m.sender_id, m.receiver_id, m.sender_role, m.receiver_role,
	       COALESCE(NULLIF(u.name, ''), u.username, 'Unknown'), m.content, m.sent_at, m.is_read
	FROM messages m
	LEFT JOIN users u ON u.user_id = m.sender_id
	WHERE ((m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?))`)
	args := []any{a, b, b, a}
	order := "DESC"
	if afterID > 0 {
		buf.WriteString(" AND m.message_id > ?")
		args = append(args, afterID)
		order = "ASC"
	}
	buf.WriteString(fmt.Sprintf(" ORDER BY m.sent_at %s, m.message_id %s LIMIT %d", order, order, maxConversation))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MessageID, &m.SenderID, &m.ReceiverID, &m.SenderRole, &m.ReceiverRole,
			&m.SenderName, &m.Content, &m.SentAt, &m.IsRead); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if afterID <= 0 {
		slices.Reverse(out)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, receiverID, senderID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount: senderRole が空なら全ロール
func (s *Store) UnreadCount(ctx context.Context, receiverID int64, senderRole auth.Role) (int64, error) {
	q := `SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`
	args := []any{receiverID}
	if senderRole != "" {
		q += ` AND sender_role = ?`
		args = append(args, senderRole)
	}
	var n int64
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
