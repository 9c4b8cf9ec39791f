package endorsement

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

	g := api.Group("/endorsements", auth.RequireRole(auth.RoleAdmin, auth.RoleStudent, auth.RoleHTE))
	g.GET("", h.List)
	g.POST("", auth.RequireRole(auth.RoleStudent), h.Create)
	g.POST("/:id/advance", h.Advance)
	g.POST("/:id/delete", auth.RequireRole(auth.RoleAdmin, auth.RoleStudent), h.Delete)
	g.GET("/:id/file", h.Download)
}

// GET /endorsements
func (h *Handler) List(c *gin.Context) {
	p := auth.MustCurrent(c)
	list, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// POST /endorsements
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("Title is required!"), "/student")
		return
	}
	p := auth.MustCurrent(c)
	res, err := h.svc.Create(c.Request.Context(), p.UserID, req)
	if err != nil {
		render.Error(c, err, "/student")
		return
	}
	render.OK(c, http.StatusCreated, res, "Endorsement request submitted!", "/student")
}

// POST /endorsements/:id/advance (multipart: file, admin_comment)
func (h *Handler) Advance(c *gin.Context) {
	p := auth.MustCurrent(c)
	back := p.Role.Dashboard()
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, back)
		return
	}
	in := AdvanceInput{Comment: c.PostForm("admin_comment")}
	if fh, err := c.FormFile("file"); err == nil {
		in.File = fh
	}
	res, err := h.svc.Advance(c.Request.Context(), p, id, in)
	if err != nil {
		render.Error(c, err, back)
		return
	}
	render.OK(c, http.StatusOK, res, "Endorsement sent!", back)
}

// POST /endorsements/:id/delete
func (h *Handler) Delete(c *gin.Context) {
	p := auth.MustCurrent(c)
	back := p.Role.Dashboard()
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, back)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), p, id); err != nil {
		render.Error(c, err, back)
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true, "endorsement_id": id}, "Endorsement deleted successfully!", back)
}

// GET /endorsements/:id/file?slot=admin|hte
func (h *Handler) Download(c *gin.Context) {
	p := auth.MustCurrent(c)
	back := p.Role.Dashboard()
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, back)
		return
	}
	slot := FileSlot(c.Query("slot"))
	if slot != "" && slot != SlotAdmin && slot != SlotHTE {
		render.Error(c, apierr.Invalid("slot must be admin or hte"), back)
		return
	}
	name, path, err := h.svc.FilePath(c.Request.Context(), p, id, slot)
	if err != nil {
		render.Error(c, err, back)
		return
	}
	c.FileAttachment(path, name)
}
