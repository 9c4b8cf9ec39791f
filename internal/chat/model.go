package chat

import (
	"time"

	"IMS-backend/internal/platform/auth"
)

type Message struct {
	MessageID    int64
	SenderID     int64
	ReceiverID   int64
	SenderRole   auth.Role
	ReceiverRole auth.Role
	SenderName   string
	Content      string
	SentAt       time.Time
	IsRead       bool
}

type MessageResponse struct {
	MessageID  int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	SenderRole auth.Role `json:"sender_role"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"timestamp"`
	IsRead     bool      `json:"read"`
}

func (m Message) toDTO() MessageResponse {
	return MessageResponse{
		MessageID:  m.MessageID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		SenderRole: m.SenderRole,
		SenderName: m.SenderName,
		Content:    m.Content,
		SentAt:     m.SentAt,
		IsRead:     m.IsRead,
	}
}

func toDTOs(list []Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}

type SendRequest struct {
	Content string `json:"content" form:"content"`
}
