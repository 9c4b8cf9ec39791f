package callrelay

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"IMS-backend/internal/platform/auth"
)

type Options struct {
	// AllowedOrigins が空なら同一ホストのみ
	AllowedOrigins []string
	QueueSize      int
}

func newUpgrader(opt Options) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(opt.AllowedOrigins))
	for _, o := range opt.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// tokenFromQuery: ブラウザの WebSocket はヘッダを付けられないので ?token= を Bearer に読み替える
func tokenFromQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := c.Query("token"); tok != "" && c.GetHeader("Authorization") == "" {
			c.Request.Header.Set("Authorization", "Bearer "+tok)
		}
		c.Next()
	}
}

// RegisterRoutes: r はルートのエンジン（/ws は /api/v1 の外）
func RegisterRoutes(r gin.IRoutes, hub *Hub, tokens *auth.Tokens, opt Options) {
	up := newUpgrader(opt)

	// GET /ws
	r.GET("/ws", tokenFromQuery(), auth.RequireAuth(tokens), func(c *gin.Context) {
		p := auth.MustCurrent(c)
		conn, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade が 400 系を書き込み済み
			hub.log.Warn("relay upgrade failed", zap.Int64("user_id", p.UserID), zap.Error(err))
			return
		}
		client := NewClient(uuid.NewString(), p, opt.QueueSize)
		hub.Register(client)
		go hub.writePump(client, conn)
		go hub.readPump(client, conn)
	})
}
