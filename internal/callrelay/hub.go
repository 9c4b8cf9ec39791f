package callrelay

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/metrics"
)

const DefaultQueueSize = 16

// Client: 接続1本。send が詰まったイベントは捨てる（at-most-once）
type Client struct {
	ID     string
	UserID int64
	Role   auth.Role
	Name   string
	send   chan []byte
}

func NewClient(id string, p auth.Principal, queue int) *Client {
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	return &Client{ID: id, UserID: p.UserID, Role: p.Role, Name: p.Name, send: make(chan []byte, queue)}
}

// Send: 受信側のキュー。テストとライター goroutine が読む
func (c *Client) Send() <-chan []byte { return c.send }

// Hub: 接続中クライアントの一覧とイベントの中継。永続化はしない
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), log: log}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.CallClients.Inc()
	h.log.Debug("relay client connected", zap.String("client_id", c.ID), zap.Int64("user_id", c.UserID))
}

// Unregister: 二重呼び出しは無視
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		metrics.CallClients.Dec()
		h.log.Debug("relay client disconnected", zap.String("client_id", c.ID), zap.Int64("user_id", c.UserID))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver: 満杯なら捨てて数える。呼び出し側が RLock を持っていること
func (h *Hub) deliver(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		metrics.CallDropped.Inc()
		h.log.Warn("relay queue full, event dropped", zap.String("client_id", c.ID), zap.Int64("user_id", c.UserID))
	}
}

func (h *Hub) broadcast(msg []byte, match func(*Client) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if match(c) {
			h.deliver(c, msg)
			n++
		}
	}
	return n
}

func supervisor(c *Client) bool { return c.Role == auth.RoleAdmin || c.Role == auth.RoleHTE }

func studentMatch(id int64) func(*Client) bool {
	return func(c *Client) bool { return c.Role == auth.RoleStudent && c.UserID == id }
}

func (h *Hub) reply(c *Client, msg string) {
	b, err := encode(EventError, errorPayload{Message: msg})
	if err != nil {
		return
	}
	h.mu.RLock()
	if _, ok := h.clients[c.ID]; ok {
		h.deliver(c, b)
	}
	h.mu.RUnlock()
}

// Dispatch: from が送ったイベントを宛先へ中継し、届けた接続数を返す
func (h *Hub) Dispatch(from *Client, env Envelope) int {
	var p CallPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			h.reply(from, "invalid payload")
			return 0
		}
	}

	switch env.Event {
	case EventCallRequest:
		if from.Role != auth.RoleStudent {
			h.reply(from, "only students can request a call")
			return 0
		}
		// 本人以外の名義では発信させない
		out := CallPayload{StudentID: ID(from.UserID), StudentName: p.StudentName}
		if out.StudentName == "" {
			out.StudentName = from.Name
		}
		return h.relay(EventIncomingCall, out, supervisor)

	case EventCallAccept:
		if !supervisor(from) {
			h.reply(from, "only admins and HTEs can accept a call")
			return 0
		}
		if p.StudentID <= 0 {
			h.reply(from, "studentId is required")
			return 0
		}
		out := CallPayload{StudentID: p.StudentID, By: string(from.Role)}
		return h.relay(EventCallAccepted, out, studentMatch(int64(p.StudentID)))

	case EventCallEnd:
		if from.Role == auth.RoleStudent {
			return h.relay(EventCallEnded, CallPayload{StudentID: ID(from.UserID)}, supervisor)
		}
		if !supervisor(from) {
			h.reply(from, "not allowed")
			return 0
		}
		if p.StudentID <= 0 {
			h.reply(from, "studentId is required")
			return 0
		}
		out := CallPayload{StudentID: p.StudentID, By: string(from.Role)}
		return h.relay(EventCallEnded, out, studentMatch(int64(p.StudentID)))
	}

	h.log.Debug("unknown relay event", zap.String("event", env.Event), zap.String("client_id", from.ID))
	h.reply(from, "unknown event")
	return 0
}

func (h *Hub) relay(event string, data CallPayload, match func(*Client) bool) int {
	b, err := encode(event, data)
	if err != nil {
		h.log.Error("encode relay event", zap.String("event", event), zap.Error(err))
		return 0
	}
	return h.broadcast(b, match)
}
