package accomplishment

import (
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"go.uber.org/zap"

	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

type Uploader interface {
	SaveUpload(prefix string, fh *multipart.FileHeader) (string, error)
	Remove(name string) error
}

type Roster interface {
	ViewStudent(ctx context.Context, viewerID int64, viewerRole auth.Role, studentID int64) (*users.User, error)
}

type Service struct {
	store  ReportStore
	files  Uploader
	roster Roster
	loc    *time.Location
	log    *zap.Logger
}

func NewService(conn *sql.DB, files Uploader, roster Roster, loc *time.Location, log *zap.Logger) *Service {
	return NewServiceWithStore(NewStore(conn), files, roster, loc, log)
}

func NewServiceWithStore(store ReportStore, files Uploader, roster Roster, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, files: files, roster: roster, loc: loc, log: log}
}

// POST /student/dar
func (s *Service) Upload(ctx context.Context, studentID int64, date string, uploads []*multipart.FileHeader) (ReportResponse, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return ReportResponse{}, apierr.Invalid("Date is required.")
	}
	day, err := time.ParseInLocation(hours.DateLayout, date, s.loc)
	if err != nil {
		return ReportResponse{}, apierr.Invalid("date must be YYYY-MM-DD")
	}

	var saved []string
	cleanup := func() {
		for _, name := range saved {
			if err := s.files.Remove(name); err != nil {
				s.log.Warn("remove dar file failed", zap.String("file", name), zap.Error(err))
			}
		}
	}
	prefix := fmt.Sprintf("dar_%d", studentID)
	for _, fh := range uploads {
		if fh == nil || fh.Filename == "" || fh.Size == 0 {
			continue
		}
		name, err := s.files.SaveUpload(prefix, fh)
		if err != nil {
			cleanup()
			return ReportResponse{}, err
		}
		saved = append(saved, name)
	}
	if len(saved) == 0 {
		return ReportResponse{}, apierr.Invalid("No valid files uploaded.")
	}

	// 同じ日付の報告は1件にまとめる
	r := Report{StudentID: studentID, ReportDate: day, Files: saved}
	if err := s.store.Upsert(ctx, &r); err != nil {
		cleanup()
		return ReportResponse{}, err
	}
	s.log.Info("dar uploaded", zap.Int64("student_id", studentID), zap.Int64("dar_id", r.DARID), zap.Int("files", len(saved)))
	return r.toDTO(), nil
}

// GET /dar/:student_id
// 管理者は全員、HTE は担当学生、保護者は自分の子、学生は自分のみ
func (s *Service) List(ctx context.Context, viewer auth.Principal, studentID int64) ([]ReportResponse, error) {
	if _, err := s.roster.ViewStudent(ctx, viewer.UserID, viewer.Role, studentID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return toDTOs(list), nil
}
