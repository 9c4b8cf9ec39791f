package auth

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleHTE     Role = "hte"
	RoleParent  Role = "parent"
)

// Roles: 画面のセレクトボックス用（表示順）
func Roles() []Role { return []Role{RoleStudent, RoleHTE, RoleParent, RoleAdmin} }

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleHTE, RoleParent:
		return true
	}
	return false
}

// Dashboard: ロールごとのトップページ
func (r Role) Dashboard() string {
	if r.Valid() {
		return "/" + string(r)
	}
	return "/"
}

// RegisterValidators: `binding:"role"` を gin のバリデータに登録する
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
}
