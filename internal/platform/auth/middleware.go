package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/ctxutil"
	"IMS-backend/internal/platform/render"
	"IMS-backend/internal/platform/session"
)

const (
	CtxUserIDKey    = "user_id"
	CtxRoleKey      = "role"
	CtxPrincipalKey = "principal"
)

// RequireAuth: セッション Cookie を優先し、無ければ Authorization: Bearer <token> を検証する
func RequireAuth(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := fromSession(c)
		if !ok {
			p, ok = fromBearer(c, tokens)
		}
		if !ok {
			deny(c, http.StatusUnauthorized, apierr.Unauthenticated("Please log in first."), "/")
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...Role) gin.HandlerFunc {
	roleSet := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := Current(c)
		if !ok {
			deny(c, http.StatusUnauthorized, apierr.Unauthenticated("Please log in first."), "/")
			return
		}
		if _, allowed := roleSet[p.Role]; !allowed {
			deny(c, http.StatusForbidden, apierr.Forbidden("Access denied."), p.Role.Dashboard())
			return
		}
		c.Next()
	}
}

func Current(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// MustCurrent: RequireAuth 配下のハンドラ専用
func MustCurrent(c *gin.Context) Principal {
	p, _ := Current(c)
	return p
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(CtxPrincipalKey, p)
	c.Set(CtxUserIDKey, p.UserID)
	c.Set(CtxRoleKey, string(p.Role))
	c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), p.UserID))
}

func fromSession(c *gin.Context) (Principal, bool) {
	sp, ok := session.Current(c)
	if !ok || !Role(sp.Role).Valid() {
		return Principal{}, false
	}
	return Principal{UserID: sp.UserID, Role: Role(sp.Role), Name: sp.Name}, true
}

func fromBearer(c *gin.Context, tokens *Tokens) (Principal, bool) {
	h := c.GetHeader("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, false
	}
	tokenStr := strings.TrimSpace(parts[1])
	if tokenStr == "" {
		return Principal{}, false
	}
	p, err := tokens.Parse(tokenStr)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}

// deny: API は JSON、画面はフラッシュ付きでリダイレクト
func deny(c *gin.Context, status int, err *apierr.APIError, back string) {
	if render.WantsJSON(c) || strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.AbortWithStatusJSON(status, apierr.Body(err))
		return
	}
	session.AddFlash(c, "danger", err.Message)
	c.Redirect(http.StatusSeeOther, back)
	c.Abort()
}
