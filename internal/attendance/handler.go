package attendance

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
)

type Handler struct{ svc *Service }

func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}

	student := api.Group("/student/attendance", auth.RequireRole(auth.RoleStudent))
	student.GET("", h.StudentView)
	student.POST("", h.Capture)
	student.POST("/save", h.Save)
	student.POST("/:id/delete", h.SoftDelete)
	student.POST("/:id/restore", h.Restore)
	student.POST("/:id/purge", h.PermanentDelete)

	hte := api.Group("/hte/attendance", auth.RequireRole(auth.RoleHTE))
	hte.GET("", h.ListForHTE)
	hte.POST("/:id/mark", h.Mark)

	api.GET("/attendance/:student_id/calendar", h.Calendar)
	api.GET("/attendance/:student_id/months", h.ByMonth)

	api.GET("/admin/attendance/stats", auth.RequireRole(auth.RoleAdmin), h.Stats)
}

const studentBack = "/student"

// maxCaptureBody: data URL を含むリクエスト全体の上限
const maxCaptureBody = 16 << 20

// POST /student/attendance
func (h *Handler) Capture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCaptureBody)
	var req CaptureRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Error(c, apierr.Invalid("Image is too large."), studentBack)
			return
		}
		render.Error(c, apierr.Invalid("No image data received"), studentBack)
		return
	}
	p := auth.MustCurrent(c)
	res, err := h.svc.Capture(c.Request.Context(), p.UserID, req.AttendanceFile)
	if err != nil {
		render.Error(c, err, studentBack)
		return
	}
	render.OK(c, http.StatusCreated, res, res.Message, studentBack)
}

// POST /student/attendance/save
func (h *Handler) Save(c *gin.Context) {
	p := auth.MustCurrent(c)
	res, err := h.svc.Save(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, studentBack)
		return
	}
	render.OK(c, http.StatusCreated, res, "Attendance saved successfully!", studentBack)
}

// GET /student/attendance
func (h *Handler) StudentView(c *gin.Context) {
	p := auth.MustCurrent(c)
	v, err := h.svc.StudentView(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, studentBack)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) ownedAction(c *gin.Context, do func(studentID, id int64) error, flash string) {
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, studentBack)
		return
	}
	p := auth.MustCurrent(c)
	if err := do(p.UserID, id); err != nil {
		render.Error(c, err, studentBack)
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true, "attendance_id": id}, flash, studentBack)
}

// POST /student/attendance/:id/delete
func (h *Handler) SoftDelete(c *gin.Context) {
	h.ownedAction(c, func(sid, id int64) error {
		return h.svc.SoftDelete(c.Request.Context(), sid, id)
	}, "Attendance moved to deleted.")
}

// POST /student/attendance/:id/restore
func (h *Handler) Restore(c *gin.Context) {
	h.ownedAction(c, func(sid, id int64) error {
		return h.svc.Restore(c.Request.Context(), sid, id)
	}, "Attendance restored.")
}

// POST /student/attendance/:id/purge
func (h *Handler) PermanentDelete(c *gin.Context) {
	h.ownedAction(c, func(sid, id int64) error {
		return h.svc.PermanentDelete(c.Request.Context(), sid, id)
	}, "Attendance permanently deleted.")
}

// POST /hte/attendance/:id/mark
func (h *Handler) Mark(c *gin.Context) {
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, "/hte")
		return
	}
	var req MarkRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("present must be true or false"), "/hte")
		return
	}
	p := auth.MustCurrent(c)
	res, err := h.svc.Mark(c.Request.Context(), p.UserID, id, req.Present)
	if err != nil {
		render.Error(c, err, "/hte")
		return
	}
	flash := "Attendance marked as absent."
	if req.Present {
		flash = "Attendance marked as present."
	}
	render.OK(c, http.StatusOK, res, flash, "/hte")
}

// GET /hte/attendance
func (h *Handler) ListForHTE(c *gin.Context) {
	p := auth.MustCurrent(c)
	groups, err := h.svc.ListForHTE(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, "/hte")
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": groups})
}

// GET /attendance/:student_id/calendar?year=2026&month=4
func (h *Handler) Calendar(c *gin.Context) {
	p := auth.MustCurrent(c)
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	year, _ := strconv.Atoi(c.Query("year"))
	month, _ := strconv.Atoi(c.Query("month"))
	cal, st, err := h.svc.Calendar(c.Request.Context(), p, id, year, time.Month(month))
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": st.UserID, "student_name": st.DisplayName(), "calendar": cal})
}

// GET /attendance/:student_id/months?filter=approved|present|all
func (h *Handler) ByMonth(c *gin.Context) {
	p := auth.MustCurrent(c)
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	filter := MonthFilter(c.Query("filter"))
	if filter == "" {
		filter = defaultFilter(p.Role)
	}
	switch filter {
	case FilterApproved, FilterPresent, FilterAll:
	default:
		render.Error(c, apierr.Invalid("filter must be approved, present or all"), p.Role.Dashboard())
		return
	}
	months, sum, err := h.svc.ByMonth(c.Request.Context(), p, id, filter)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": months, "summary": sum})
}

// 保護者は出席扱い、その他は承認済みのみ
func defaultFilter(r auth.Role) MonthFilter {
	if r == auth.RoleParent {
		return FilterPresent
	}
	return FilterApproved
}

// GET /admin/attendance/stats?from=2026-01-01&to=2026-01-31&limit=10
func (h *Handler) Stats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	req := StatsRequest{From: c.Query("from"), To: c.Query("to"), Limit: limit}
	rows, err := h.svc.Stats(c.Request.Context(), req)
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": len(rows)})
}
