package chat

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

const maxContentRunes = 4000

type Roster interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	DefaultAdmin(ctx context.Context) (*users.User, error)
}

type Service struct {
	store  MessageStore
	roster Roster
	now    func() time.Time
	log    *zap.Logger
}

func NewService(conn *sql.DB, roster Roster, loc *time.Location, log *zap.Logger) *Service {
	return NewServiceWithStore(NewStore(conn), roster, loc, log)
}

func NewServiceWithStore(store MessageStore, roster Roster, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, roster: roster, now: func() time.Time { return time.Now().In(loc) }, log: log}
}

// pair: 2人を取得して会話が許されるか確認する
func (s *Service) pair(ctx context.Context, userID, partnerID int64) (*users.User, *users.User, error) {
	me, err := s.roster.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	partner, err := s.roster.Get(ctx, partnerID)
	if err != nil {
		return nil, nil, err
	}
	if !Allowed(me, partner) {
		return nil, nil, apierr.Forbidden("You cannot chat with this user.")
	}
	return me, partner, nil
}

// POST /chat/:partner_id
func (s *Service) Send(ctx context.Context, senderID, receiverID int64, content string) (MessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return MessageResponse{}, apierr.Invalid("Message cannot be empty.")
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return MessageResponse{}, apierr.Invalid("Message is too long.")
	}
	me, partner, err := s.pair(ctx, senderID, receiverID)
	if err != nil {
		return MessageResponse{}, err
	}

	m := Message{
		SenderID:     me.UserID,
		ReceiverID:   partner.UserID,
		SenderRole:   me.Role,
		ReceiverRole: partner.Role,
		SenderName:   me.DisplayName(),
		Content:      content,
		SentAt:       s.now(),
	}
	id, err := s.store.Insert(ctx, &m)
	if err != nil {
		return MessageResponse{}, err
	}
	m.MessageID = id
	return m.toDTO(), nil
}

// GET /chat/:partner_id?after_id=
// 取得と同時に相手からの未読を既読にする
func (s *Service) Conversation(ctx context.Context, userID, partnerID, afterID int64) ([]MessageResponse, error) {
	if _, _, err := s.pair(ctx, userID, partnerID); err != nil {
		return nil, err
	}
	list, err := s.store.Conversation(ctx, userID, partnerID, afterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.MarkRead(ctx, userID, partnerID); err != nil {
		s.log.Warn("mark read failed", zap.Int64("receiver_id", userID), zap.Int64("sender_id", partnerID), zap.Error(err))
	}
	return toDTOs(list), nil
}

func (s *Service) MarkRead(ctx context.Context, receiverID, senderID int64) (int64, error) {
	return s.store.MarkRead(ctx, receiverID, senderID)
}

// GET /messages/unread?from_role=hte
func (s *Service) Unread(ctx context.Context, receiverID int64, fromRole auth.Role) (int64, error) {
	if fromRole != "" && !fromRole.Valid() {
		return 0, apierr.Invalid("from_role must be one of admin, student, hte, parent")
	}
	return s.store.UnreadCount(ctx, receiverID, fromRole)
}

// DefaultPartner: 学生・HTE・保護者の既定の相手は最初の管理者
func (s *Service) DefaultPartner(ctx context.Context) (*users.User, error) {
	return s.roster.DefaultAdmin(ctx)
}
