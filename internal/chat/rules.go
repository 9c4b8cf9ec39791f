package chat

import (
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

// Allowed: 管理者は他の全ロールと、HTE は担当学生とだけ話せる
func Allowed(a, b *users.User) bool {
	if a == nil || b == nil || a.UserID == b.UserID {
		return false
	}
	switch {
	case a.Role == auth.RoleAdmin:
		return b.Role != auth.RoleAdmin && b.Role.Valid()
	case b.Role == auth.RoleAdmin:
		return a.Role.Valid()
	case a.Role == auth.RoleHTE && b.Role == auth.RoleStudent:
		return b.AssignedTo(a.UserID)
	case a.Role == auth.RoleStudent && b.Role == auth.RoleHTE:
		return a.AssignedTo(b.UserID)
	}
	return false
}
