package accomplishment

import (
	"context"
	"encoding/json"
	"fmt"

	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/db"
)

type ReportStore interface {
	Upsert(ctx context.Context, r *Report) error
	ListByStudent(ctx context.Context, studentID int64) ([]Report, error)
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// Upsert: student_id + report_date（UNIQUE）で1行。既存行にはファイル一覧を追記する。
// r には確定した dar_id・ファイル一覧・作成日時を書き戻す
func (s *Store) Upsert(ctx context.Context, r *Report) error {
	b, err := json.Marshal(r.Files)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO accomplishment_reports (student_id, report_date, files, created_at)
	VALUES (?, ?, ?, NOW(6))
	ON DUPLICATE KEY UPDATE
	  files  = JSON_MERGE_PRESERVE(files, VALUES(files)),
	  dar_id = LAST_INSERT_ID(dar_id)`, r.StudentID, r.ReportDate.Format(hours.DateLayout), string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	var raw []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT files, created_at FROM accomplishment_reports WHERE dar_id = ?`, id,
	).Scan(&raw, &r.CreatedAt); err != nil {
		return err
	}
	r.DARID = id
	r.Files = nil
	if err := json.Unmarshal(raw, &r.Files); err != nil {
		return fmt.Errorf("dar %d files: %w", id, err)
	}
	return nil
}

// ListByStudent: 新しい日付順
func (s *Store) ListByStudent(ctx context.Context, studentID int64) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT dar_id, student_id, report_date, files, created_at
	FROM accomplishment_reports
	WHERE student_id = ?
	ORDER BY report_date DESC, dar_id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var (
			r   Report
			raw []byte
		)
		if err := rows.Scan(&r.DARID, &r.StudentID, &r.ReportDate, &raw, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r.Files); err != nil {
				return nil, fmt.Errorf("dar %d files: %w", r.DARID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
