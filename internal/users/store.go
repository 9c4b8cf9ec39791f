package users

import (
	"context"
	"database/sql"
	"errors"

	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/db"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) (int64, error)
	ListByRole(ctx context.Context, role auth.Role) ([]User, error)
	ListByHTE(ctx context.Context, hteID int64) ([]User, error)
	ListByParent(ctx context.Context, parentID int64) ([]User, error)
	FirstByRole(ctx context.Context, role auth.Role) (*User, error)
	AssignHTE(ctx context.Context, studentID, hteID int64) error
	SetParent(ctx context.Context, studentID, parentID int64) error
	SetSelectedStudent(ctx context.Context, parentID, studentID int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	CountByRole(ctx context.Context, role auth.Role) (int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const userColumns = `user_id, name, username, password, role, total_hours, parent_id, hte_id, selected_student_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var role string
	if err := row.Scan(
		&u.UserID, &u.Name, &u.Username, &u.Password, &role, &u.TotalHours,
		&u.ParentID, &u.HTEID, &u.SelectedStudentID, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (s *Store) getOne(ctx context.Context, q string, args ...any) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ? LIMIT 1`, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? LIMIT 1`, username)
}

func (s *Store) FirstByRole(ctx context.Context, role auth.Role) (*User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY user_id LIMIT 1`, string(role))
}

func (s *Store) Create(ctx context.Context, u *User) (int64, error) {
	const q = `
INSERT INTO users (name, username, password, role, total_hours, created_at)
VALUES (?, ?, ?, ?, 0, NOW(6))
`
	res, err := s.db.ExecContext(ctx, q, u.Name, u.Username, u.Password, string(u.Role))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListByRole(ctx context.Context, role auth.Role) ([]User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY name, user_id`, string(role))
}

func (s *Store) ListByHTE(ctx context.Context, hteID int64) ([]User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = 'student' AND hte_id = ? ORDER BY name, user_id`, hteID)
}

func (s *Store) ListByParent(ctx context.Context, parentID int64) ([]User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = 'student' AND parent_id = ? ORDER BY name, user_id`, parentID)
}

// AssignHTE: 学生の HTE を付け替え、その学生の推薦状も新しい HTE に向ける
func (s *Store) AssignHTE(ctx context.Context, studentID, hteID int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET hte_id = ? WHERE user_id = ? AND role = 'student'`, hteID, studentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE endorsements SET hte_id = ? WHERE student_id = ?`, hteID, studentID)
		return err
	})
}

func (s *Store) SetParent(ctx context.Context, studentID, parentID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET parent_id = ? WHERE user_id = ? AND role = 'student'`, parentID, studentID)
	return err
}

func (s *Store) SetSelectedStudent(ctx context.Context, parentID, studentID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET selected_student_id = ? WHERE user_id = ?`, studentID, parentID)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE user_id = ?`, hash, id)
	return err
}

func (s *Store) CountByRole(ctx context.Context, role auth.Role) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	return n, err
}
