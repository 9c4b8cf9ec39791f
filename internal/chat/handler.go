package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
)

type Handler struct{ svc *Service }

func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}
	api.GET("/chat/:partner_id", h.Conversation)
	api.POST("/chat/:partner_id", h.Send)
	api.POST("/chat/:partner_id/read", h.MarkRead)
	api.GET("/messages/unread", h.Unread)
	api.GET("/messages/default-partner", h.DefaultPartner)
}

// POST /chat/:partner_id
func (h *Handler) Send(c *gin.Context) {
	p := auth.MustCurrent(c)
	partner, err := render.PathID(c, "partner_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	var req SendRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("Message cannot be empty."), "/chat/"+c.Param("partner_id"))
		return
	}
	res, err := h.svc.Send(c.Request.Context(), p.UserID, partner, req.Content)
	if err != nil {
		render.Error(c, err, "/chat/"+c.Param("partner_id"))
		return
	}
	render.OK(c, http.StatusCreated, gin.H{"success": true, "message": res}, "", "/chat/"+c.Param("partner_id"))
}

// GET /chat/:partner_id?after_id=
func (h *Handler) Conversation(c *gin.Context) {
	p := auth.MustCurrent(c)
	partner, err := render.PathID(c, "partner_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	var after int64
	if v := c.Query("after_id"); v != "" {
		if after, err = strconv.ParseInt(v, 10, 64); err != nil || after < 0 {
			render.Error(c, apierr.Invalid("after_id must be a non-negative integer"), p.Role.Dashboard())
			return
		}
	}
	list, err := h.svc.Conversation(c.Request.Context(), p.UserID, partner, after)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

// POST /chat/:partner_id/read
func (h *Handler) MarkRead(c *gin.Context) {
	p := auth.MustCurrent(c)
	partner, err := render.PathID(c, "partner_id")
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), p.UserID, partner)
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// GET /messages/unread?from_role=
func (h *Handler) Unread(c *gin.Context) {
	p := auth.MustCurrent(c)
	n, err := h.svc.Unread(c.Request.Context(), p.UserID, auth.Role(c.Query("from_role")))
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// GET /messages/default-partner
func (h *Handler) DefaultPartner(c *gin.Context) {
	p := auth.MustCurrent(c)
	u, err := h.svc.DefaultPartner(c.Request.Context())
	if err != nil {
		render.Error(c, err, p.Role.Dashboard())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.UserID, "name": u.DisplayName(), "role": u.Role})
}
