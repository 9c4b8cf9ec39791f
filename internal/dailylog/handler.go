package dailylog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
)

type Handler struct{ svc *Service }

func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}

	student := api.Group("/student/daily-logs", auth.RequireRole(auth.RoleStudent))
	student.GET("", h.List)
	student.POST("", h.Add)
	student.POST("/:id/delete", h.Delete)

	api.GET("/admin/daily-logs/:student_id", auth.RequireRole(auth.RoleAdmin), h.AdminList)
}

const back = "/student/daily-logs"

// POST /student/daily-logs
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("invalid daily log form"), back)
		return
	}
	p := auth.MustCurrent(c)
	res, err := h.svc.Add(c.Request.Context(), p.UserID, req)
	if err != nil {
		render.Error(c, err, back)
		return
	}
	render.OK(c, http.StatusCreated, res, "Daily log added successfully!", back)
}

// POST /student/daily-logs/:id/delete
func (h *Handler) Delete(c *gin.Context) {
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, back)
		return
	}
	p := auth.MustCurrent(c)
	if err := h.svc.Delete(c.Request.Context(), p.UserID, id); err != nil {
		render.Error(c, err, back)
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true, "log_id": id}, "Daily log deleted.", back)
}

// GET /student/daily-logs
func (h *Handler) List(c *gin.Context) {
	p := auth.MustCurrent(c)
	res, err := h.svc.List(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, "/student")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /admin/daily-logs/:student_id?visible=1
func (h *Handler) AdminList(c *gin.Context) {
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	var res ListResponse
	if c.Query("visible") == "1" {
		res, err = h.svc.ListVisible(c.Request.Context(), id)
	} else {
		res, err = h.svc.List(c.Request.Context(), id)
	}
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	c.JSON(http.StatusOK, res)
}
