package dailylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/db"
)

type LogStore interface {
	// 再計算（トランザクション内で使う）
	LockStudent(ctx context.Context, studentID int64) error
	DayCaptures(ctx context.Context, studentID int64, day time.Time) ([]CaptureRef, error)
	StampCapture(ctx context.Context, s Stamp) error
	GetByDate(ctx context.Context, studentID int64, day time.Time) (*DailyLog, error)
	UpsertAuto(ctx context.Context, l *DailyLog) error
	SetVisibility(ctx context.Context, logID int64, visible bool) error
	Delete(ctx context.Context, logID int64) error
	RefreshTotalHours(ctx context.Context, studentID int64) (float64, error)

	// 日報
	UpsertManual(ctx context.Context, l *DailyLog) error
	Get(ctx context.Context, logID int64) (*DailyLog, error)
	List(ctx context.Context, studentID int64, visibleOnly bool) ([]DailyLog, error)
	ResyncAllHours(ctx context.Context) (int64, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// approvedHoursExpr: 承認済み・未削除キャプチャの合計
const approvedHoursExpr = `
	SELECT COALESCE(ROUND(SUM(a.total_hours), 2), 0) FROM attendances a
	WHERE a.student_id = %s AND a.hte_approved = 1 AND a.is_deleted = 0`

// LockStudent: 学生行をロックして同じ学生の再計算を直列化する
func (s *Store) LockStudent(ctx context.Context, studentID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE user_id = ? AND role = 'student' FOR UPDATE`, studentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.NotFound("student not found")
	}
	return err
}

func (s *Store) DayCaptures(ctx context.Context, studentID int64, day time.Time) ([]CaptureRef, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT attendance_id, captured_at, hte_approved
	FROM attendances
	WHERE student_id = ? AND attended_on = ? AND is_deleted = 0
	ORDER BY captured_at ASC, attendance_id ASC
	FOR UPDATE`, studentID, day.Format(hours.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRef
	for rows.Next() {
		var c CaptureRef
		if err := rows.Scan(&c.AttendanceID, &c.CapturedAt, &c.Approved); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StampCapture: 自分の枠だけを埋め、他の枠は NULL に戻す
func (s *Store) StampCapture(ctx context.Context, st Stamp) error {
	slots := [4]any{}
	slots[st.Slot] = st.At
	_, err := s.db.ExecContext(ctx, `
	UPDATE attendances SET in_am = ?, out_am = ?, in_pm = ?, out_pm = ?, total_hours = ?
	WHERE attendance_id = ?`,
		slots[hours.InAM], slots[hours.OutAM], slots[hours.InPM], slots[hours.OutPM], st.Hours, st.AttendanceID)
	return err
}

const logColumns = `
	SELECT log_id, student_id, log_date, in_am, out_am, in_pm, out_pm, total_hours,
	       description, visible_to_admin, manual, created_at, updated_at
	FROM daily_logs`

func scanLog(row interface{ Scan(...any) error }) (DailyLog, error) {
	var l DailyLog
	err := row.Scan(&l.LogID, &l.StudentID, &l.LogDate, &l.InAM, &l.OutAM, &l.InPM, &l.OutPM, &l.TotalHours,
		&l.Description, &l.VisibleToAdmin, &l.Manual, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) GetByDate(ctx context.Context, studentID int64, day time.Time) (*DailyLog, error) {
	l, err := scanLog(s.db.QueryRowContext(ctx, logColumns+` WHERE student_id = ? AND log_date = ?`,
		studentID, day.Format(hours.DateLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) Get(ctx context.Context, logID int64) (*DailyLog, error) {
	l, err := scanLog(s.db.QueryRowContext(ctx, logColumns+` WHERE log_id = ?`, logID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertAuto: キャプチャ由来の日報。説明文は既存のものを残す
func (s *Store) UpsertAuto(ctx context.Context, l *DailyLog) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO daily_logs
	  (student_id, log_date, in_am, out_am, in_pm, out_pm, total_hours, description, visible_to_admin, manual)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	ON DUPLICATE KEY UPDATE
	  in_am = VALUES(in_am), out_am = VALUES(out_am), in_pm = VALUES(in_pm), out_pm = VALUES(out_pm),
	  total_hours = VALUES(total_hours), visible_to_admin = VALUES(visible_to_admin)`,
		l.StudentID, l.LogDate.Format(hours.DateLayout), l.InAM, l.OutAM, l.InPM, l.OutPM,
		l.TotalHours, l.Description, l.VisibleToAdmin)
	return err
}

// UpsertManual: 手入力は打刻・時間・説明を上書きし manual を立てる（表示フラグは再計算に任せる）
func (s *Store) UpsertManual(ctx context.Context, l *DailyLog) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO daily_logs
	  (student_id, log_date, in_am, out_am, in_pm, out_pm, total_hours, description, visible_to_admin, manual)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 1)
	ON DUPLICATE KEY UPDATE
	  in_am = VALUES(in_am), out_am = VALUES(out_am), in_pm = VALUES(in_pm), out_pm = VALUES(out_pm),
	  total_hours = VALUES(total_hours), description = VALUES(description), manual = 1`,
		l.StudentID, l.LogDate.Format(hours.DateLayout), l.InAM, l.OutAM, l.InPM, l.OutPM,
		l.TotalHours, l.Description)
	return err
}

func (s *Store) SetVisibility(ctx context.Context, logID int64, visible bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE daily_logs SET visible_to_admin = ? WHERE log_id = ?`, visible, logID)
	return err
}

func (s *Store) Delete(ctx context.Context, logID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM daily_logs WHERE log_id = ?`, logID)
	return err
}

// RefreshTotalHours: users.total_hours を承認済みキャプチャから再計算
func (s *Store) RefreshTotalHours(ctx context.Context, studentID int64) (float64, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_hours = (`+fmt.Sprintf(approvedHoursExpr, "?")+`) WHERE user_id = ?`,
		studentID, studentID); err != nil {
		return 0, err
	}
	var total float64
	err := s.db.QueryRowContext(ctx, `SELECT total_hours FROM users WHERE user_id = ?`, studentID).Scan(&total)
	return total, err
}

// ResyncAllHours: 全学生の total_hours を一括で再計算（ジョブ用）
func (s *Store) ResyncAllHours(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users u SET u.total_hours = (`+fmt.Sprintf(approvedHoursExpr, "u.user_id")+`) WHERE u.role = 'student'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context, studentID int64, visibleOnly bool) ([]DailyLog, error) {
	q := logColumns + ` WHERE student_id = ?`
	if visibleOnly {
		q += ` AND visible_to_admin = 1`
	}
	q += ` ORDER BY log_date DESC, log_id DESC`

	rows, err := s.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
