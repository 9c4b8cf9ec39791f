package session

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	CookieName = "ims_session"

	keyUserID = "user_id"
	keyRole   = "role"
	keyName   = "name"

	flashSep = "\x1f"
)

type Options struct {
	Secret string
	MaxAge int // 秒
	Secure bool
}

func Middleware(o Options) gin.HandlerFunc {
	store := cookie.NewStore([]byte(o.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   o.MaxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(CookieName, store)
}

// Principal: セッションに載せるログイン情報
type Principal struct {
	UserID int64
	Role   string
	Name   string
}

func Login(c *gin.Context, p Principal) error {
	s := sessions.Default(c)
	s.Clear()
	s.Set(keyUserID, p.UserID)
	s.Set(keyRole, p.Role)
	s.Set(keyName, p.Name)
	return s.Save()
}

func Current(c *gin.Context) (Principal, bool) {
	s := sessions.Default(c)
	id, ok := s.Get(keyUserID).(int64)
	if !ok || id == 0 {
		return Principal{}, false
	}
	role, _ := s.Get(keyRole).(string)
	name, _ := s.Get(keyName).(string)
	return Principal{UserID: id, Role: role, Name: name}, true
}

func Logout(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

type Flash struct {
	Category string
	Message  string
}

// AddFlash: category は success | danger | info
func AddFlash(c *gin.Context, category, msg string) {
	s := sessions.Default(c)
	s.AddFlash(category + flashSep + msg)
	_ = s.Save()
}

func Flashes(c *gin.Context) []Flash {
	s := sessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = s.Save()
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		cat, msg, found := strings.Cut(str, flashSep)
		if !found {
			cat, msg = "info", str
		}
		out = append(out, Flash{Category: cat, Message: msg})
	}
	return out
}
