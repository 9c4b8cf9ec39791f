package accomplishment

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
	api.POST("/student/dar", auth.RequireRole(auth.RoleStudent), h.Upload)
	api.GET("/dar/:student_id", h.List)
}

// POST /student/dar (multipart: dar_date, dar_files[])
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		render.Error(c, apierr.Invalid("multipart form required"), "/student")
		return
	}
	var date string
	if v := form.Value["dar_date"]; len(v) > 0 {
		date = v[0]
	}
	p := auth.MustCurrent(c)
	res, err := h.svc.Upload(c.Request.Context(), p.UserID, date, form.File["dar_files"])
	if err != nil {
		render.Error(c, err, "/student")
		return
	}
	render.OK(c, http.StatusCreated, gin.H{"success": true, "report": res}, "Accomplishment report uploaded!", "/student")
}

// GET /dar/:student_id
func (h *Handler) List(c *gin.Context) {
	p := auth.MustCurrent(c)
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	list, err := h.svc.List(c.Request.Context(), p, id)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}
