package users

import (
	"database/sql"
	"time"

	"IMS-backend/internal/platform/auth"
)

// DB行に対応
type User struct {
	UserID            int64
	Name              string
	Username          string
	Password          string // bcrypt ハッシュ（旧データは平文）
	Role              auth.Role
	TotalHours        float64
	ParentID          sql.NullInt64
	HTEID             sql.NullInt64
	SelectedStudentID sql.NullInt64
	CreatedAt         time.Time
}

func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func (u User) AssignedTo(hteID int64) bool {
	return u.Role == auth.RoleStudent && u.HTEID.Valid && u.HTEID.Int64 == hteID
}

func (u User) ChildOf(parentID int64) bool {
	return u.Role == auth.RoleStudent && u.ParentID.Valid && u.ParentID.Int64 == parentID
}

func nullID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func (u User) toDTO() UserResponse {
	return UserResponse{
		UserID:            u.UserID,
		Name:              u.Name,
		Username:          u.Username,
		Role:              u.Role,
		TotalHours:        u.TotalHours,
		ParentID:          nullID(u.ParentID),
		HTEID:             nullID(u.HTEID),
		SelectedStudentID: nullID(u.SelectedStudentID),
		CreatedAt:         u.CreatedAt,
	}
}

func toDTOs(list []User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}
