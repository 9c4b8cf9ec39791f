package chat

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

var (
	admin    = &users.User{UserID: 1, Username: "admin1", Role: auth.RoleAdmin}
	admin2   = &users.User{UserID: 2, Username: "admin2", Role: auth.RoleAdmin}
	hte      = &users.User{UserID: 3, Username: "hte1", Role: auth.RoleHTE}
	otherHTE = &users.User{UserID: 4, Username: "hte2", Role: auth.RoleHTE}
	parent   = &users.User{UserID: 5, Username: "parent1", Role: auth.RoleParent}
	student  = &users.User{UserID: 7, Name: "Ana", Username: "stud1", Role: auth.RoleStudent,
		HTEID: sql.NullInt64{Int64: 3, Valid: true}, ParentID: sql.NullInt64{Int64: 5, Valid: true}}
	peer = &users.User{UserID: 8, Username: "stud2", Role: auth.RoleStudent}
)

func TestAllowedPairs(t *testing.T) {
	cases := []struct {
		a, b *users.User
		ok   bool
	}{
		{admin, student, true},
		{admin, hte, true},
		{admin, parent, true},
		{admin, admin2, false},
		{hte, student, true},
		{otherHTE, student, false},
		{student, peer, false},
		{parent, student, false},
		{parent, hte, false},
		{admin, admin, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, Allowed(tc.a, tc.b), "%s→%s", tc.a.Username, tc.b.Username)
		assert.Equal(t, tc.ok, Allowed(tc.b, tc.a), "%s→%s", tc.b.Username, tc.a.Username)
	}
}

type memStore struct {
	rows []Message
}

func (m *memStore) Insert(_ context.Context, msg *Message) (int64, error) {
	cp := *msg
	cp.MessageID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, cp)
	return cp.MessageID, nil
}

func (m *memStore) Conversation(_ context.Context, a, b, afterID int64) ([]Message, error) {
	var out []Message
	for _, r := range m.rows {
		pair := (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
		if pair && r.MessageID > afterID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, receiverID, senderID int64) (int64, error) {
	var n int64
	for i := range m.rows {
		if m.rows[i].ReceiverID == receiverID && m.rows[i].SenderID == senderID && !m.rows[i].IsRead {
			m.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) UnreadCount(_ context.Context, receiverID int64, senderRole auth.Role) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.ReceiverID == receiverID && !r.IsRead && (senderRole == "" || r.SenderRole == senderRole) {
			n++
		}
	}
	return n, nil
}

type fakeRoster map[int64]*users.User

func (r fakeRoster) Get(_ context.Context, id int64) (*users.User, error) {
	if u, ok := r[id]; ok {
		return u, nil
	}
	return nil, apierr.NotFound("user not found")
}

func (r fakeRoster) DefaultAdmin(context.Context) (*users.User, error) { return admin, nil }

func newSvc() (*Service, *memStore) {
	st := &memStore{}
	roster := fakeRoster{}
	for _, u := range []*users.User{admin, admin2, hte, otherHTE, parent, student, peer} {
		roster[u.UserID] = u
	}
	svc := NewServiceWithStore(st, roster, time.UTC, nil)
	tick := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return svc, st
}

func TestSendValidation(t *testing.T) {
	svc, _ := newSvc()
	ctx := context.Background()

	_, err := svc.Send(ctx, student.UserID, admin.UserID, "   ")
	assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))

	_, err = svc.Send(ctx, student.UserID, 999, "hi")
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	_, err = svc.Send(ctx, student.UserID, otherHTE.UserID, "hi")
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	res, err := svc.Send(ctx, student.UserID, hte.UserID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, auth.RoleStudent, res.SenderRole)
	assert.Equal(t, "Ana", res.SenderName)
}

func TestConversationIsSymmetricAndPrivate(t *testing.T) {
	svc, _ := newSvc()
	ctx := context.Background()

	_, err := svc.Send(ctx, admin.UserID, student.UserID, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, student.UserID, admin.UserID, "two")
	require.NoError(t, err)
	_, err = svc.Send(ctx, hte.UserID, student.UserID, "elsewhere")
	require.NoError(t, err)

	a, err := svc.Conversation(ctx, admin.UserID, student.UserID, 0)
	require.NoError(t, err)
	b, err := svc.Conversation(ctx, student.UserID, admin.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, a, 2)
	assert.Equal(t, []string{"one", "two"}, []string{a[0].Content, a[1].Content})
	assert.Equal(t, a[0].MessageID, b[0].MessageID)
	assert.Equal(t, a[1].MessageID, b[1].MessageID)

	after, err := svc.Conversation(ctx, student.UserID, admin.UserID, a[0].MessageID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "two", after[0].Content)

	_, err = svc.Conversation(ctx, peer.UserID, admin2.UserID, 0)
	require.NoError(t, err)
	_, err = svc.Conversation(ctx, otherHTE.UserID, student.UserID, 0)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
}

func TestUnreadAndMarkRead(t *testing.T) {
	svc, _ := newSvc()
	ctx := context.Background()

	_, _ = svc.Send(ctx, admin.UserID, student.UserID, "a")
	_, _ = svc.Send(ctx, hte.UserID, student.UserID, "b")
	_, _ = svc.Send(ctx, hte.UserID, student.UserID, "c")

	n, err := svc.Unread(ctx, student.UserID, auth.RoleHTE)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, _ = svc.Unread(ctx, student.UserID, "")
	assert.Equal(t, int64(3), n)

	_, err = svc.Unread(ctx, student.UserID, "janitor")
	assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))

	// 会話を開くと相手からの未読だけ既読になる
	_, err = svc.Conversation(ctx, student.UserID, hte.UserID, 0)
	require.NoError(t, err)
	n, _ = svc.Unread(ctx, student.UserID, "")
	assert.Equal(t, int64(1), n)

	updated, err := svc.MarkRead(ctx, student.UserID, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
}
