package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(Options{Secret: "test-secret", MaxAge: 3600}))
	r.GET("/login", func(c *gin.Context) {
		_ = Login(c, Principal{UserID: 9, Role: "hte", Name: "Acme Corp"})
		AddFlash(c, "success", "Welcome!")
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", func(c *gin.Context) {
		p, ok := Current(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.UserID, "role": p.Role, "name": p.Name, "flashes": Flashes(c)})
	})
	r.GET("/logout", func(c *gin.Context) {
		_ = Logout(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestSessionLifecycle(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookies[len(cookies)-1])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"id":9,"role":"hte","name":"Acme Corp","flashes":[{"Category":"success","Message":"Welcome!"}]}`,
		w.Body.String())
}
