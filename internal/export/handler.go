package export

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct{ svc *Service }

func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}
	api.GET("/admin/exports/hours.xlsx", auth.RequireRole(auth.RoleAdmin), h.HoursWorkbook)
	api.GET("/daily-logs/:student_id/export.csv", h.DailyLogCSV)
}

func attachment(c *gin.Context, name, mime string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, mime, body)
}

// GET /admin/exports/hours.xlsx
func (h *Handler) HoursWorkbook(c *gin.Context) {
	body, name, err := h.svc.HoursWorkbook(c.Request.Context())
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	attachment(c, name, xlsxMIME, body)
}

// GET /daily-logs/:student_id/export.csv
func (h *Handler) DailyLogCSV(c *gin.Context) {
	p := auth.MustCurrent(c)
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	body, name, err := h.svc.DailyLogCSV(c.Request.Context(), p, id)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	attachment(c, name, "text/csv; charset=utf-8", body)
}
