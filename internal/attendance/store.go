package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"IMS-backend/internal/platform/db"
)

type AttendanceStore interface {
	Insert(ctx context.Context, a *Attendance) (int64, error)
	Get(ctx context.Context, id int64) (*Attendance, error)
	CountActiveOn(ctx context.Context, studentID int64, day time.Time) (int, error)
	List(ctx context.Context, q ListQuery) ([]Attendance, error)
	SetDeleted(ctx context.Context, id int64, deleted bool, at time.Time) error
	SetMark(ctx context.Context, id int64, present, approved bool) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const selectColumns = `
	SELECT a.attendance_id, a.student_id, COALESCE(u.name, ''), a.file_name, a.attended_on, a.captured_at,
	       a.in_am, a.out_am, a.in_pm, a.out_pm, a.total_hours, a.present, a.hte_approved, a.is_deleted, a.deleted_at
	FROM attendances a
	JOIN users u ON u.user_id = a.student_id
	`

func scanAttendance(row interface{ Scan(...any) error }) (Attendance, error) {
	var a Attendance
	err := row.Scan(
		&a.AttendanceID, &a.StudentID, &a.StudentName, &a.FileName, &a.AttendedOn, &a.CapturedAt,
		&a.InAM, &a.OutAM, &a.InPM, &a.OutPM, &a.TotalHours, &a.Present, &a.HTEApproved, &a.IsDeleted, &a.DeletedAt,
	)
	return a, err
}

func (s *Store) Insert(ctx context.Context, a *Attendance) (int64, error) {
	const q = `
	INSERT INTO attendances (student_id, file_name, attended_on, captured_at, present, hte_approved, is_deleted, created_at)
	VALUES (?, ?, ?, ?, ?, ?, 0, NOW(6))`
	res, err := s.db.ExecContext(ctx, q,
		a.StudentID, a.FileName, a.AttendedOn.Format(DateLayout), a.CapturedAt, a.Present, a.HTEApproved)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Get(ctx context.Context, id int64) (*Attendance, error) {
	a, err := scanAttendance(s.db.QueryRowContext(ctx, selectColumns+` WHERE a.attendance_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountActiveOn: 指定日の未削除キャプチャ数
func (s *Store) CountActiveOn(ctx context.Context, studentID int64, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM attendances
	WHERE student_id = ? AND attended_on = ? AND is_deleted = 0`,
		studentID, day.Format(DateLayout),
	).Scan(&n)
	return n, err
}

// List: 条件に応じて動的WHERE + ORDER + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]Attendance, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)
	buf.WriteString(selectColumns)

	if q.StudentID != nil {
		wheres = append(wheres, "a.student_id = ?")
		args = append(args, *q.StudentID)
	}
	if q.HTEID != nil {
		wheres = append(wheres, "u.hte_id = ?")
		args = append(args, *q.HTEID)
	}
	if q.Deleted != nil {
		wheres = append(wheres, "a.is_deleted = ?")
		args = append(args, *q.Deleted)
	}
	if q.From != nil {
		wheres = append(wheres, "a.attended_on >= ?")
		args = append(args, q.From.Format(DateLayout))
	}
	if q.To != nil {
		wheres = append(wheres, "a.attended_on <= ?")
		args = append(args, q.To.Format(DateLayout))
	}
	if q.ApprovedOnly {
		wheres = append(wheres, "a.hte_approved = 1")
	}
	if q.PresentOnly {
		wheres = append(wheres, "a.present = 1")
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	// ORDER
	switch q.Sort {
	case SortCapturedAtAsc:
		buf.WriteString(" ORDER BY a.captured_at ASC, a.attendance_id ASC")
	default:
		buf.WriteString(" ORDER BY a.captured_at DESC, a.attendance_id DESC")
	}

	// LIMIT/OFFSET
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SetDeleted(ctx context.Context, id int64, deleted bool, at time.Time) error {
	var deletedAt any
	if deleted {
		deletedAt = at
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE attendances SET is_deleted = ?, deleted_at = ? WHERE attendance_id = ?`, deleted, deletedAt, id)
	return err
}

// SetMark: HTE による出欠確認。present と承認は同時に切り替わる
func (s *Store) SetMark(ctx context.Context, id int64, present, approved bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE attendances SET present = ?, hte_approved = ? WHERE attendance_id = ?`, present, approved, id)
	return err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attendances WHERE attendance_id = ?`, id)
	return err
}

// Stats: 期間のキャプチャ数と承認済み時間を学生別に（TOP N）
func (s *Store) Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT a.student_id, COALESCE(u.name, ''), COUNT(*) AS cnt,
	       COALESCE(ROUND(SUM(CASE WHEN a.hte_approved = 1 THEN a.total_hours ELSE 0 END), 2), 0) AS approved
	FROM attendances a
	JOIN users u ON u.user_id = a.student_id
	WHERE a.is_deleted = 0 AND a.attended_on BETWEEN ? AND ?
	GROUP BY a.student_id, u.name
	ORDER BY approved DESC, cnt DESC, a.student_id ASC
	LIMIT ?`, from.Format(DateLayout), to.Format(DateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var row StatsRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.Captures, &row.ApprovedHours); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
