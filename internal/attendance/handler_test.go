package attendance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/session"
)

func newCaptureRouter(t *testing.T) (*gin.Engine, *fixture, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture()
	tokens := auth.NewTokens("test", time.Hour)
	r := gin.New()
	r.Use(session.Middleware(session.Options{Secret: "s", MaxAge: 60}))
	RegisterRoutes(r.Group("/api/v1", auth.RequireAuth(tokens)), f.svc)

	s, _, err := tokens.Issue(auth.Principal{UserID: studentID, Role: auth.RoleStudent})
	require.NoError(t, err)
	return r, f, "Bearer " + s
}

func postCapture(r *gin.Engine, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/student/attendance", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCaptureHandler(t *testing.T) {
	r, f, bearer := newCaptureRouter(t)

	w := postCapture(r, bearer, `{"attendance_file":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Attendance captured and saved!")
	assert.Len(t, f.photos.saved, 1)

	w = postCapture(r, bearer, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No image data received")
}

func TestCaptureHandlerRejectsOversizedBody(t *testing.T) {
	r, f, bearer := newCaptureRouter(t)

	body := `{"attendance_file":"data:image/png;base64,` + strings.Repeat("A", maxCaptureBody) + `"}`
	w := postCapture(r, bearer, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Image is too large.")
	assert.Empty(t, f.photos.saved)
	assert.Empty(t, f.store.rows)
}
