package users

import (
	"time"

	"IMS-backend/internal/platform/auth"
)

type UserResponse struct {
	UserID            int64     `json:"user_id"`
	Name              string    `json:"name"`
	Username          string    `json:"username"`
	Role              auth.Role `json:"role"`
	TotalHours        float64   `json:"total_hours"`
	ParentID          *int64    `json:"parent_id,omitempty"`
	HTEID             *int64    `json:"hte_id,omitempty"`
	SelectedStudentID *int64    `json:"selected_student_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Username string `json:"username" form:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Role     auth.Role `json:"role" form:"role" binding:"required,role"`
}

type AssignHTERequest struct {
	StudentID int64 `json:"student_id" form:"student_id" binding:"required"`
	HTEID     int64 `json:"hte_id" form:"hte_id" binding:"required"`
}

type LinkChildRequest struct {
	StudentID int64 `json:"student_id" form:"student_id" binding:"required"`
}
