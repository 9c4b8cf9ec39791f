package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/db"
	"IMS-backend/internal/platform/files"
	"IMS-backend/internal/platform/metrics"
	"IMS-backend/internal/users"
)

const dayFullMessage = "Already completed 4 attendance logs today!"

type Clock interface {
	Now() time.Time
}

type realClock struct{ loc *time.Location }

func (c realClock) Now() time.Time { return time.Now().In(c.loc) }

// DayApplier: mutate と日次ログの再計算を1トランザクションで行う（dailylog.Service）
type DayApplier interface {
	Apply(ctx context.Context, studentID int64, day time.Time, mutate func(ctx context.Context, tx db.DBTX) error) error
}

// Roster: 担当・閲覧権限の判定（users.Service）
type Roster interface {
	IsAssigned(ctx context.Context, hteID, studentID int64) (bool, error)
	ViewStudent(ctx context.Context, viewerID int64, viewerRole auth.Role, studentID int64) (*users.User, error)
}

type PhotoStore interface {
	SaveImageDataURL(prefix, data string) (string, error)
	Remove(name string) error
}

type Service struct {
	store   AttendanceStore
	txStore func(db.DBTX) AttendanceStore
	days    DayApplier
	roster  Roster
	photos  PhotoStore
	clock   Clock
	log     *zap.Logger
}

func NewService(conn *sql.DB, days DayApplier, roster Roster, photos PhotoStore, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := NewServiceWithStore(NewStore(conn), days, roster, photos, realClock{loc: loc}, log)
	s.txStore = func(tx db.DBTX) AttendanceStore { return NewStore(tx) }
	return s
}

// NewServiceWithStore: トランザクション内でも同じ store を使う（テスト用）
func NewServiceWithStore(store AttendanceStore, days DayApplier, roster Roster, photos PhotoStore, clock Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		txStore: func(db.DBTX) AttendanceStore { return store },
		days:    days,
		roster:  roster,
		photos:  photos,
		clock:   clock,
		log:     log,
	}
}

func (s *Service) Location() *time.Location {
	return s.clock.Now().Location()
}

func dayFull(err error) bool { return errors.Is(err, hours.ErrDayFull) }

// insertIfRoom: 当日の未削除キャプチャが4件未満なら挿入
func (s *Service) insertIfRoom(a *Attendance) func(ctx context.Context, tx db.DBTX) error {
	return func(ctx context.Context, tx db.DBTX) error {
		st := s.txStore(tx)
		n, err := st.CountActiveOn(ctx, a.StudentID, a.AttendedOn)
		if err != nil {
			return err
		}
		if n >= hours.MaxPunchesPerDay {
			return hours.ErrDayFull
		}
		id, err := st.Insert(ctx, a)
		if err != nil {
			return err
		}
		a.AttendanceID = id
		return nil
	}
}

// POST /student/attendance
func (s *Service) Capture(ctx context.Context, studentID int64, dataURL string) (CaptureResponse, error) {
	if dataURL == "" {
		return CaptureResponse{}, apierr.Invalid("No image data received")
	}
	now := s.clock.Now()
	day := hours.DateOf(now)

	// 先に枠を確認して無駄な画像保存を避ける（最終判定はトランザクション内）
	n, err := s.store.CountActiveOn(ctx, studentID, day)
	if err != nil {
		return CaptureResponse{}, err
	}
	if n >= hours.MaxPunchesPerDay {
		metrics.AttendanceCaptures.WithLabelValues("day_full").Inc()
		return CaptureResponse{}, apierr.Conflict(dayFullMessage)
	}

	name, err := s.photos.SaveImageDataURL(fmt.Sprintf("attendance_%d", studentID), dataURL)
	if err != nil {
		metrics.AttendanceCaptures.WithLabelValues("bad_image").Inc()
		if errors.Is(err, files.ErrBadImage) {
			return CaptureResponse{}, apierr.Invalid("invalid image data")
		}
		return CaptureResponse{}, err
	}

	a := &Attendance{StudentID: studentID, FileName: name, AttendedOn: day, CapturedAt: now}
	if err := s.days.Apply(ctx, studentID, day, s.insertIfRoom(a)); err != nil {
		s.removeFile(name)
		if dayFull(err) {
			metrics.AttendanceCaptures.WithLabelValues("day_full").Inc()
			return CaptureResponse{}, apierr.Conflict(dayFullMessage)
		}
		metrics.AttendanceCaptures.WithLabelValues("error").Inc()
		return CaptureResponse{}, err
	}
	metrics.AttendanceCaptures.WithLabelValues("ok").Inc()

	saved, err := s.get(ctx, a.AttendanceID)
	if err != nil {
		return CaptureResponse{}, err
	}
	return CaptureResponse{Success: true, AttendanceResponse: saved.toDTO(), Message: "Attendance captured and saved!"}, nil
}

// POST /student/attendance/save: 写真なしで出席を記録
func (s *Service) Save(ctx context.Context, studentID int64) (AttendanceResponse, error) {
	now := s.clock.Now()
	day := hours.DateOf(now)
	a := &Attendance{StudentID: studentID, AttendedOn: day, CapturedAt: now, Present: true}
	if err := s.days.Apply(ctx, studentID, day, s.insertIfRoom(a)); err != nil {
		if dayFull(err) {
			return AttendanceResponse{}, apierr.Conflict(dayFullMessage)
		}
		return AttendanceResponse{}, err
	}
	saved, err := s.get(ctx, a.AttendanceID)
	if err != nil {
		return AttendanceResponse{}, err
	}
	return saved.toDTO(), nil
}

func (s *Service) get(ctx context.Context, id int64) (*Attendance, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apierr.NotFound("attendance not found")
	}
	return a, nil
}

func (s *Service) owned(ctx context.Context, studentID, id int64) (*Attendance, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, apierr.Forbidden("Unauthorized")
	}
	return a, nil
}

// POST /hte/attendance/:id/mark
func (s *Service) Mark(ctx context.Context, hteID, id int64, present bool) (AttendanceResponse, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return AttendanceResponse{}, err
	}
	ok, err := s.roster.IsAssigned(ctx, hteID, a.StudentID)
	if err != nil {
		return AttendanceResponse{}, err
	}
	if !ok {
		return AttendanceResponse{}, apierr.Forbidden("Unauthorized")
	}
	err = s.days.Apply(ctx, a.StudentID, a.AttendedOn, func(ctx context.Context, tx db.DBTX) error {
		return s.txStore(tx).SetMark(ctx, id, present, present)
	})
	if err != nil {
		return AttendanceResponse{}, err
	}
	s.log.Info("attendance marked",
		zap.Int64("attendance_id", id), zap.Int64("hte_id", hteID), zap.Bool("present", present))

	saved, err := s.get(ctx, id)
	if err != nil {
		return AttendanceResponse{}, err
	}
	return saved.toDTO(), nil
}

// POST /student/attendance/:id/delete（論理削除）
func (s *Service) SoftDelete(ctx context.Context, studentID, id int64) error {
	a, err := s.owned(ctx, studentID, id)
	if err != nil {
		return err
	}
	if a.IsDeleted {
		return nil
	}
	now := s.clock.Now()
	return s.days.Apply(ctx, studentID, a.AttendedOn, func(ctx context.Context, tx db.DBTX) error {
		return s.txStore(tx).SetDeleted(ctx, id, true, now)
	})
}

// POST /student/attendance/:id/restore
func (s *Service) Restore(ctx context.Context, studentID, id int64) error {
	a, err := s.owned(ctx, studentID, id)
	if err != nil {
		return err
	}
	if !a.IsDeleted {
		return nil
	}
	err = s.days.Apply(ctx, studentID, a.AttendedOn, func(ctx context.Context, tx db.DBTX) error {
		st := s.txStore(tx)
		n, err := st.CountActiveOn(ctx, studentID, a.AttendedOn)
		if err != nil {
			return err
		}
		if n >= hours.MaxPunchesPerDay {
			return hours.ErrDayFull
		}
		return st.SetDeleted(ctx, id, false, time.Time{})
	})
	if dayFull(err) {
		return apierr.Conflict("That day already has 4 attendance logs.")
	}
	return err
}

// POST /student/attendance/:id/purge（行とファイルを削除）
func (s *Service) PermanentDelete(ctx context.Context, studentID, id int64) error {
	a, err := s.owned(ctx, studentID, id)
	if err != nil {
		return err
	}
	err = s.days.Apply(ctx, studentID, a.AttendedOn, func(ctx context.Context, tx db.DBTX) error {
		return s.txStore(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.removeFile(a.FileName)
	return nil
}

func (s *Service) removeFile(name string) {
	if name == "" {
		return
	}
	if err := s.photos.Remove(name); err != nil {
		s.log.Warn("remove attendance photo failed", zap.String("file", name), zap.Error(err))
	}
}

func boolPtr(b bool) *bool { return &b }

// GET /student/attendance
func (s *Service) StudentView(ctx context.Context, studentID int64) (StudentView, error) {
	active, err := s.store.List(ctx, ListQuery{StudentID: &studentID, Deleted: boolPtr(false), Limit: MaxPageLimit})
	if err != nil {
		return StudentView{}, err
	}
	deleted, err := s.store.List(ctx, ListQuery{StudentID: &studentID, Deleted: boolPtr(true), Limit: MaxPageLimit})
	if err != nil {
		return StudentView{}, err
	}
	return StudentView{
		Active:  hours.GroupByFiveDays(toDTOs(active)),
		Deleted: toDTOs(deleted),
		Summary: hours.Summarize(hours.Rendered(active)),
	}, nil
}

// GET /hte/attendance: 担当学生の記録を 学生→月→週 でまとめる
// 上限を超える場合は新しい方を残す
func (s *Service) ListForHTE(ctx context.Context, hteID int64) ([]hours.StudentGroup[AttendanceResponse], error) {
	list, err := s.store.List(ctx, ListQuery{HTEID: &hteID, Deleted: boolPtr(false), Sort: SortCapturedAtDesc, Limit: MaxPageLimit})
	if err != nil {
		return nil, err
	}
	slices.Reverse(list)
	return hours.GroupForSupervisor(toDTOs(list)), nil
}

// GET /attendance/:student_id/calendar?year=&month=
func (s *Service) Calendar(ctx context.Context, viewer auth.Principal, studentID int64, year int, month time.Month) (hours.Calendar[AttendanceResponse], *users.User, error) {
	st, err := s.roster.ViewStudent(ctx, viewer.UserID, viewer.Role, studentID)
	if err != nil {
		return hours.Calendar[AttendanceResponse]{}, nil, err
	}
	now := s.clock.Now()
	if year == 0 {
		year = now.Year()
	}
	if month < time.January || month > time.December {
		month = now.Month()
	}
	loc := now.Location()
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, -1)
	list, err := s.store.List(ctx, ListQuery{
		StudentID: &studentID, Deleted: boolPtr(false), From: &from, To: &to, Sort: SortCapturedAtAsc, Limit: MaxPageLimit,
	})
	if err != nil {
		return hours.Calendar[AttendanceResponse]{}, nil, err
	}
	return hours.MonthGrid(year, month, loc, toDTOs(list)), st, nil
}

// MonthFilter: 月別一覧の対象
type MonthFilter string

const (
	FilterApproved MonthFilter = "approved"
	FilterPresent  MonthFilter = "present"
	FilterAll      MonthFilter = "all"
)

// GET /attendance/:student_id/months
func (s *Service) ByMonth(ctx context.Context, viewer auth.Principal, studentID int64, filter MonthFilter) ([]hours.Bucket[AttendanceResponse], hours.Summary, error) {
	if _, err := s.roster.ViewStudent(ctx, viewer.UserID, viewer.Role, studentID); err != nil {
		return nil, hours.Summary{}, err
	}
	q := ListQuery{StudentID: &studentID, Deleted: boolPtr(false), Limit: MaxPageLimit}
	switch filter {
	case FilterApproved:
		q.ApprovedOnly = true
	case FilterPresent:
		q.PresentOnly = true
	}
	list, err := s.store.List(ctx, q)
	if err != nil {
		return nil, hours.Summary{}, err
	}
	return hours.GroupByMonth(toDTOs(list)), hours.Summarize(hours.Rendered(list)), nil
}

// GET /admin/attendance/stats
func (s *Service) Stats(ctx context.Context, req StatsRequest) ([]StatsRow, error) {
	loc := s.Location()
	from, err := time.ParseInLocation(DateLayout, req.From, loc)
	if err != nil {
		return nil, apierr.Invalid("from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(DateLayout, req.To, loc)
	if err != nil {
		return nil, apierr.Invalid("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, apierr.Invalid("to must be >= from")
	}
	return s.store.Stats(ctx, from, to, req.Limit)
}
