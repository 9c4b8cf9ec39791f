package render

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/observability"
	"IMS-backend/internal/platform/session"
)

// WantsJSON: API クライアント（fetch / Bearer / JSON body）かどうか
func WantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if c.ContentType() == gin.MIMEJSON {
		return true
	}
	return strings.HasPrefix(strings.ToLower(c.GetHeader("Authorization")), "bearer ")
}

// Error: JSON なら {"error":{...}}、フォームならフラッシュを積んで back へ戻す
func Error(c *gin.Context, err error, back string) {
	status := apierr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		observability.CaptureErr(err)
	}
	if WantsJSON(c) {
		c.JSON(status, apierr.Body(err))
		return
	}
	session.AddFlash(c, "danger", apierr.Message(err))
	c.Redirect(http.StatusSeeOther, back)
}

// OK: JSON なら body、フォームなら flash 付きで back へ
func OK(c *gin.Context, status int, body any, flash, back string) {
	if WantsJSON(c) {
		c.JSON(status, body)
		return
	}
	if flash != "" {
		session.AddFlash(c, "success", flash)
	}
	c.Redirect(http.StatusSeeOther, back)
}

// PathID: パスパラメータを正の int64 として取り出す
func PathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierr.Invalid(name + " must be a positive integer")
	}
	return id, nil
}
