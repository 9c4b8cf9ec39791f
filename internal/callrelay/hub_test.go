package callrelay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/metrics"
	"IMS-backend/internal/platform/session"
)

func client(id string, uid int64, role auth.Role, queue int) *Client {
	return NewClient(id, auth.Principal{UserID: uid, Role: role, Name: id}, queue)
}

func env(t *testing.T, event string, data any) Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Envelope{Event: event, Data: raw}
}

func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case b := <-c.Send():
		var e Envelope
		require.NoError(t, json.Unmarshal(b, &e))
		return e
	default:
		t.Fatalf("no message queued for %s", c.ID)
		return Envelope{}
	}
}

func empty(t *testing.T, c *Client) {
	t.Helper()
	assert.Len(t, c.send, 0, c.ID)
}

func TestCallRequestReachesSupervisorsOnly(t *testing.T) {
	h := NewHub(nil)
	admin := client("admin", 1, auth.RoleAdmin, 4)
	hte := client("hte", 2, auth.RoleHTE, 4)
	stu := client("stu", 3, auth.RoleStudent, 4)
	other := client("other", 4, auth.RoleStudent, 4)
	parent := client("parent", 5, auth.RoleParent, 4)
	for _, c := range []*Client{admin, hte, stu, other, parent} {
		h.Register(c)
	}

	// 他人の studentId を名乗っても本人の ID で中継される
	n := h.Dispatch(stu, env(t, EventCallRequest, map[string]any{"studentId": 99}))
	assert.Equal(t, 2, n)

	for _, c := range []*Client{admin, hte} {
		e := recv(t, c)
		assert.Equal(t, EventIncomingCall, e.Event)
		var p CallPayload
		require.NoError(t, json.Unmarshal(e.Data, &p))
		assert.Equal(t, ID(3), p.StudentID)
		assert.Equal(t, "stu", p.StudentName)
	}
	empty(t, stu)
	empty(t, other)
	empty(t, parent)
}

func TestCallAcceptTargetsStudent(t *testing.T) {
	h := NewHub(nil)
	hte := client("hte", 2, auth.RoleHTE, 4)
	stu := client("stu", 3, auth.RoleStudent, 4)
	stuTab := client("stu-tab2", 3, auth.RoleStudent, 4)
	other := client("other", 4, auth.RoleStudent, 4)
	for _, c := range []*Client{hte, stu, stuTab, other} {
		h.Register(c)
	}

	// 文字列の ID も受け付ける
	n := h.Dispatch(hte, Envelope{Event: EventCallAccept, Data: json.RawMessage(`{"studentId":"3"}`)})
	assert.Equal(t, 2, n)
	assert.Equal(t, EventCallAccepted, recv(t, stu).Event)
	assert.Equal(t, EventCallAccepted, recv(t, stuTab).Event)
	empty(t, other)
	empty(t, hte)
}

func TestCallEndDirections(t *testing.T) {
	h := NewHub(nil)
	admin := client("admin", 1, auth.RoleAdmin, 4)
	hte := client("hte", 2, auth.RoleHTE, 4)
	stu := client("stu", 3, auth.RoleStudent, 4)
	for _, c := range []*Client{admin, hte, stu} {
		h.Register(c)
	}

	assert.Equal(t, 2, h.Dispatch(stu, Envelope{Event: EventCallEnd}))
	assert.Equal(t, EventCallEnded, recv(t, admin).Event)
	assert.Equal(t, EventCallEnded, recv(t, hte).Event)

	assert.Equal(t, 1, h.Dispatch(admin, env(t, EventCallEnd, map[string]any{"studentId": 3})))
	assert.Equal(t, EventCallEnded, recv(t, stu).Event)
	empty(t, hte)
}

func TestRejectedEventsReplyWithError(t *testing.T) {
	h := NewHub(nil)
	admin := client("admin", 1, auth.RoleAdmin, 4)
	stu := client("stu", 3, auth.RoleStudent, 4)
	h.Register(admin)
	h.Register(stu)

	cases := []struct {
		from *Client
		ev   Envelope
	}{
		{admin, Envelope{Event: EventCallRequest}},
		{stu, env(t, EventCallAccept, map[string]any{"studentId": 3})},
		{admin, Envelope{Event: EventCallAccept}},
		{admin, Envelope{Event: "dance"}},
		{admin, Envelope{Event: EventCallAccept, Data: json.RawMessage(`{"studentId":"x"}`)}},
	}
	for _, tc := range cases {
		assert.Equal(t, 0, h.Dispatch(tc.from, tc.ev), tc.ev.Event)
		assert.Equal(t, EventError, recv(t, tc.from).Event, tc.ev.Event)
	}
}

func TestFullQueueDropsEvent(t *testing.T) {
	h := NewHub(nil)
	admin := client("admin", 1, auth.RoleAdmin, 1)
	stu := client("stu", 3, auth.RoleStudent, 1)
	h.Register(admin)
	h.Register(stu)

	before := testutil.ToFloat64(metrics.CallDropped)
	h.Dispatch(stu, Envelope{Event: EventCallRequest})
	h.Dispatch(stu, Envelope{Event: EventCallRequest})
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CallDropped))
	assert.Len(t, admin.send, 1)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	c := client("a", 1, auth.RoleAdmin, 1)
	before := testutil.ToFloat64(metrics.CallClients)
	h.Register(c)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CallClients))

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, before, testutil.ToFloat64(metrics.CallClients))
	assert.Equal(t, 0, h.Len())

	_, ok := <-c.Send()
	assert.False(t, ok)
}

func TestWebSocketRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokens("test", time.Hour)
	hub := NewHub(nil)
	r := gin.New()
	r.Use(session.Middleware(session.Options{Secret: "s", MaxAge: 60}))
	RegisterRoutes(r, hub, tokens, Options{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	dial := func(p auth.Principal) *websocket.Conn {
		tok, _, err := tokens.Issue(p)
		require.NoError(t, err)
		u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
		conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
		return conn
	}

	hte := dial(auth.Principal{UserID: 2, Role: auth.RoleHTE})
	defer hte.Close()
	stu := dial(auth.Principal{UserID: 3, Role: auth.RoleStudent, Name: "Stu"})
	defer stu.Close()

	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, stu.WriteJSON(map[string]any{"event": EventCallRequest, "data": map[string]any{}}))

	_ = hte.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Envelope
	require.NoError(t, hte.ReadJSON(&got))
	assert.Equal(t, EventIncomingCall, got.Event)
	assert.JSONEq(t, `{"studentId":3,"studentName":"Stu"}`, string(got.Data))
}

func TestWebSocketRequiresLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(session.Middleware(session.Options{Secret: "s", MaxAge: 60}))
	RegisterRoutes(r, NewHub(nil), auth.NewTokens("test", time.Hour), Options{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
