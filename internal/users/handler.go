package users

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
	"IMS-backend/internal/platform/session"
)

type Handler struct {
	svc    *Service
	tokens *auth.Tokens
}

// RegisterAuthRoutes: 認証不要のルート（フォーム / JSON 両対応）
func RegisterAuthRoutes(r gin.IRoutes, svc *Service, tokens *auth.Tokens) {
	h := &Handler{svc: svc, tokens: tokens}
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.GET("/logout", h.Logout)
	r.POST("/api/v1/auth/login", h.Login)
	r.POST("/api/v1/auth/register", h.Register)
}

// RegisterRoutes: /api/v1 配下（RequireAuth 済み）
func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}

	api.GET("/me", h.Me)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.POST("/assign-hte", h.AssignHTE)

	hte := api.Group("/hte", auth.RequireRole(auth.RoleHTE))
	hte.GET("/students", h.AssignedStudents)

	parent := api.Group("/parent", auth.RequireRole(auth.RoleParent))
	parent.GET("/children", h.Children)
	parent.POST("/children", h.LinkChild)
	parent.POST("/select/:student_id", h.SelectStudent)
}

type LoginRequest struct {
	Username string    `json:"username" form:"username" binding:"required"`
	Password string    `json:"password" form:"password" binding:"required"`
	Role     auth.Role `json:"role" form:"role"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      UserResponse `json:"user"`
	Redirect  string       `json:"redirect"`
}

// POST /login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("username and password are required"), "/")
		return
	}

	u, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		render.Error(c, err, "/")
		return
	}

	p := auth.Principal{UserID: u.UserID, Role: u.Role, Name: u.DisplayName()}
	if err := session.Login(c, session.Principal{UserID: p.UserID, Role: string(p.Role), Name: p.Name}); err != nil {
		render.Error(c, err, "/")
		return
	}

	if !render.WantsJSON(c) {
		c.Redirect(http.StatusSeeOther, u.Role.Dashboard())
		return
	}
	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		render.Error(c, err, "/")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: exp.Unix(),
		User:      u.toDTO(),
		Redirect:  u.Role.Dashboard(),
	})
}

// POST /register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("username (3+ chars), password (6+ chars) and a valid role are required"), "/register")
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		render.Error(c, err, "/register")
		return
	}
	render.OK(c, http.StatusCreated, res, "Registration successful! Please login.", "/")
}

// GET /logout
func (h *Handler) Logout(c *gin.Context) {
	_ = session.Logout(c)
	if render.WantsJSON(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// GET /me
func (h *Handler) Me(c *gin.Context) {
	p := auth.MustCurrent(c)
	u, err := h.svc.Get(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, "/")
		return
	}
	c.JSON(http.StatusOK, u.toDTO())
}

// GET /admin/users?role=student
func (h *Handler) ListUsers(c *gin.Context) {
	role := auth.Role(strings.ToLower(c.DefaultQuery("role", string(auth.RoleStudent))))
	list, err := h.svc.ListByRole(c.Request.Context(), role)
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toDTOs(list), "total": len(list)})
}

// GET /admin/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, err := render.PathID(c, "id")
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		render.Error(c, err, "/admin")
		return
	}
	c.JSON(http.StatusOK, u.toDTO())
}

// POST /admin/assign-hte
func (h *Handler) AssignHTE(c *gin.Context) {
	var req AssignHTERequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("student_id and hte_id are required"), "/admin")
		return
	}
	if err := h.svc.AssignHTE(c.Request.Context(), req.StudentID, req.HTEID); err != nil {
		render.Error(c, err, "/admin")
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true, "student_id": req.StudentID, "hte_id": req.HTEID}, "HTE assigned successfully.", "/admin")
}

// GET /hte/students
func (h *Handler) AssignedStudents(c *gin.Context) {
	p := auth.MustCurrent(c)
	list, err := h.svc.AssignedStudents(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, "/hte")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toDTOs(list), "total": len(list)})
}

// GET /parent/children
func (h *Handler) Children(c *gin.Context) {
	p := auth.MustCurrent(c)
	selected, children, err := h.svc.SelectedChild(c.Request.Context(), p.UserID)
	if err != nil {
		render.Error(c, err, "/parent")
		return
	}
	res := gin.H{"items": toDTOs(children), "total": len(children)}
	if selected != nil {
		res["selected_student_id"] = selected.UserID
	}
	c.JSON(http.StatusOK, res)
}

// POST /parent/children
func (h *Handler) LinkChild(c *gin.Context) {
	var req LinkChildRequest
	if err := c.ShouldBind(&req); err != nil {
		render.Error(c, apierr.Invalid("student_id is required"), "/parent")
		return
	}
	p := auth.MustCurrent(c)
	if err := h.svc.LinkChild(c.Request.Context(), p.UserID, req.StudentID); err != nil {
		render.Error(c, err, "/parent")
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true}, "Child assigned successfully.", "/parent")
}

// POST /parent/select/:student_id
func (h *Handler) SelectStudent(c *gin.Context) {
	id, err := render.PathID(c, "student_id")
	if err != nil {
		render.Error(c, err, "/parent")
		return
	}
	p := auth.MustCurrent(c)
	if err := h.svc.SelectStudent(c.Request.Context(), p.UserID, id); err != nil {
		render.Error(c, err, "/parent")
		return
	}
	render.OK(c, http.StatusOK, gin.H{"success": true, "selected_student_id": id}, "", "/parent")
}
