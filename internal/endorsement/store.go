package endorsement

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"IMS-backend/internal/platform/db"
)

type EndorsementStore interface {
	Create(ctx context.Context, e *Endorsement) (int64, error)
	Get(ctx context.Context, id int64) (*Endorsement, error)
	List(ctx context.Context, f ListFilter) ([]Endorsement, error)
	Advance(ctx context.Context, id int64, from, to Status, slot FileSlot, file string, comment *string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// ListFilter: どちらも nil なら全件（管理者）
type ListFilter struct {
	StudentID *int64
	HTEID     *int64
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const selectColumns = `
	SELECT e.endorsement_id, e.student_id, COALESCE(u.name, ''), e.hte_id, e.title, e.description, e.status,
	       e.admin_comment, e.hte_file, e.admin_file, e.created_at, e.updated_at
	FROM endorsements e
	JOIN users u ON u.user_id = e.student_id`

func scanEndorsement(row interface{ Scan(...any) error }) (Endorsement, error) {
	var e Endorsement
	err := row.Scan(&e.EndorsementID, &e.StudentID, &e.StudentName, &e.HTEID, &e.Title, &e.Description, &e.Status,
		&e.AdminComment, &e.HTEFile, &e.AdminFile, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) Create(ctx context.Context, e *Endorsement) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO endorsements (student_id, hte_id, title, description, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, NOW(6), NOW(6))`, e.StudentID, e.HTEID, e.Title, e.Description, e.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Get(ctx context.Context, id int64) (*Endorsement, error) {
	e, err := scanEndorsement(s.db.QueryRowContext(ctx, selectColumns+` WHERE e.endorsement_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Endorsement, error) {
	var (
		buf  bytes.Buffer
		args []any
	)
	buf.WriteString(selectColumns)
	switch {
	case f.StudentID != nil:
		buf.WriteString(" WHERE e.student_id = ?")
		args = append(args, *f.StudentID)
	case f.HTEID != nil:
		buf.WriteString(" WHERE e.hte_id = ?")
		args = append(args, *f.HTEID)
	}
	buf.WriteString(" ORDER BY e.created_at DESC, e.endorsement_id DESC")

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Endorsement
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Advance: status が from のままなら遷移させる。他の誰かが先に進めていれば false
func (s *Store) Advance(ctx context.Context, id int64, from, to Status, slot FileSlot, file string, comment *string) (bool, error) {
	var (
		buf  bytes.Buffer
		args []any
	)
	buf.WriteString("UPDATE endorsements SET status = ?")
	args = append(args, to)
	if file != "" {
		switch slot {
		case SlotAdmin:
			buf.WriteString(", admin_file = ?")
		case SlotHTE:
			buf.WriteString(", hte_file = ?")
		}
		args = append(args, file)
	}
	if comment != nil {
		buf.WriteString(", admin_comment = ?")
		args = append(args, *comment)
	}
	buf.WriteString(" WHERE endorsement_id = ? AND status = ?")
	args = append(args, id, from)

	res, err := s.db.ExecContext(ctx, buf.String(), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM endorsements WHERE endorsement_id = ?`, id)
	return err
}
