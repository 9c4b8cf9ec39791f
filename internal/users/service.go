package users

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/db"
)

type Service struct {
	store UserStore
	log   *zap.Logger
}

func NewService(conn *sql.DB, log *zap.Logger) *Service {
	return NewServiceWithStore(NewStore(conn), log)
}

func NewServiceWithStore(store UserStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func isBcrypt(s string) bool { return strings.HasPrefix(s, "$2") }

// POST /register
func (s *Service) Register(ctx context.Context, in RegisterRequest) (UserResponse, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return UserResponse{}, apierr.Invalid("username and password are required")
	}
	if !in.Role.Valid() {
		return UserResponse{}, apierr.Invalid("role must be one of admin, student, hte, parent")
	}
	exists, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return UserResponse{}, err
	}
	if exists != nil {
		return UserResponse{}, apierr.Conflict("Username already exists!")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return UserResponse{}, err
	}
	u := User{Name: strings.TrimSpace(in.Name), Username: username, Password: hash, Role: in.Role}
	id, err := s.store.Create(ctx, &u)
	if err != nil {
		// 同時登録で UNIQUE に当たった場合
		if db.IsDuplicateKey(err) {
			return UserResponse{}, apierr.Conflict("Username already exists!")
		}
		return UserResponse{}, err
	}
	u.UserID = id
	s.log.Info("user registered", zap.Int64("user_id", id), zap.String("role", string(in.Role)))
	return u.toDTO(), nil
}

// Authenticate: role が空でなければ一致も確認する。平文の旧パスワードは一致した時点で bcrypt に置き換える
func (s *Service) Authenticate(ctx context.Context, username, password string, role auth.Role) (*User, error) {
	u, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil || (role != "" && u.Role != role) {
		return nil, apierr.Unauthenticated("Invalid credentials!")
	}

	if isBcrypt(u.Password) {
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
			return nil, apierr.Unauthenticated("Invalid credentials!")
		}
		return u, nil
	}

	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return nil, apierr.Unauthenticated("Invalid credentials!")
	}
	if hash, err := hashPassword(password); err == nil {
		if err := s.store.UpdatePassword(ctx, u.UserID, hash); err != nil {
			s.log.Warn("password rehash failed", zap.Int64("user_id", u.UserID), zap.Error(err))
		} else {
			u.Password = hash
		}
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apierr.NotFound("user not found")
	}
	return u, nil
}

func (s *Service) getWithRole(ctx context.Context, id int64, role auth.Role) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != role {
		return nil, apierr.NotFound(string(role) + " not found")
	}
	return u, nil
}

func (s *Service) GetStudent(ctx context.Context, id int64) (*User, error) {
	return s.getWithRole(ctx, id, auth.RoleStudent)
}

func (s *Service) ListByRole(ctx context.Context, role auth.Role) ([]User, error) {
	if !role.Valid() {
		return nil, apierr.Invalid("unknown role")
	}
	return s.store.ListByRole(ctx, role)
}

// POST /admin/assign-hte
func (s *Service) AssignHTE(ctx context.Context, studentID, hteID int64) error {
	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return err
	}
	if _, err := s.getWithRole(ctx, hteID, auth.RoleHTE); err != nil {
		return err
	}
	if err := s.store.AssignHTE(ctx, studentID, hteID); err != nil {
		return err
	}
	s.log.Info("hte assigned", zap.Int64("student_id", studentID), zap.Int64("hte_id", hteID))
	return nil
}

func (s *Service) LinkChild(ctx context.Context, parentID, studentID int64) error {
	if _, err := s.getWithRole(ctx, parentID, auth.RoleParent); err != nil {
		return err
	}
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if st.ParentID.Valid && st.ParentID.Int64 != parentID {
		return apierr.Conflict("Student is already linked to another parent.")
	}
	return s.store.SetParent(ctx, studentID, parentID)
}

func (s *Service) Children(ctx context.Context, parentID int64) ([]User, error) {
	return s.store.ListByParent(ctx, parentID)
}

func (s *Service) SelectStudent(ctx context.Context, parentID, studentID int64) error {
	st, err := s.store.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	if st == nil || !st.ChildOf(parentID) {
		return apierr.Forbidden("Invalid student selected.")
	}
	return s.store.SetSelectedStudent(ctx, parentID, studentID)
}

// SelectedChild: 選択中の子。未選択・無効なら最初の子。子がいなければ nil
func (s *Service) SelectedChild(ctx context.Context, parentID int64) (*User, []User, error) {
	parent, err := s.getWithRole(ctx, parentID, auth.RoleParent)
	if err != nil {
		return nil, nil, err
	}
	children, err := s.store.ListByParent(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if len(children) == 0 {
		return nil, nil, nil
	}
	if parent.SelectedStudentID.Valid {
		for i := range children {
			if children[i].UserID == parent.SelectedStudentID.Int64 {
				return &children[i], children, nil
			}
		}
	}
	return &children[0], children, nil
}

func (s *Service) AssignedStudents(ctx context.Context, hteID int64) ([]User, error) {
	return s.store.ListByHTE(ctx, hteID)
}

func (s *Service) IsAssigned(ctx context.Context, hteID, studentID int64) (bool, error) {
	st, err := s.store.GetByID(ctx, studentID)
	if err != nil {
		return false, err
	}
	return st != nil && st.AssignedTo(hteID), nil
}

// ViewStudent: admin は全員、HTE は担当学生、学生は本人、保護者は自分の子だけ見られる
func (s *Service) ViewStudent(ctx context.Context, viewerID int64, viewerRole auth.Role, studentID int64) (*User, error) {
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	switch viewerRole {
	case auth.RoleAdmin:
		return st, nil
	case auth.RoleHTE:
		if st.AssignedTo(viewerID) {
			return st, nil
		}
	case auth.RoleStudent:
		if st.UserID == viewerID {
			return st, nil
		}
	case auth.RoleParent:
		if st.ChildOf(viewerID) {
			return st, nil
		}
	}
	return nil, apierr.Forbidden("Access denied.")
}

// DefaultAdmin: チャットの既定相手（最初の admin）
func (s *Service) DefaultAdmin(ctx context.Context) (*User, error) {
	u, err := s.store.FirstByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apierr.NotFound("No admin found.")
	}
	return u, nil
}

type seedUser struct {
	name, username, password string
	role                     auth.Role
}

var defaultSeed = []seedUser{
	{"Administrator", "admin1", "admin123", auth.RoleAdmin},
	{"Student One", "stud1", "stud123", auth.RoleStudent},
	{"Parent One", "parent1", "parent123", auth.RoleParent},
	{"HTE One", "hte1", "hte123", auth.RoleHTE},
}

// Seed: admin が1人もいない時だけ初期ユーザーを入れる
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.store.CountByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	created := 0
	for _, su := range defaultSeed {
		exists, err := s.store.GetByUsername(ctx, su.username)
		if err != nil {
			return created, err
		}
		if exists != nil {
			continue
		}
		hash, err := hashPassword(su.password)
		if err != nil {
			return created, err
		}
		if _, err := s.store.Create(ctx, &User{Name: su.name, Username: su.username, Password: hash, Role: su.role}); err != nil {
			return created, err
		}
		created++
	}
	s.log.Info("seeded default users", zap.Int("created", created))
	return created, nil
}
