package dailylog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/db"
	"IMS-backend/internal/platform/metrics"
)

type Service struct {
	store   LogStore
	txStore func(db.DBTX) LogStore
	inTx    func(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error
	loc     *time.Location
	log     *zap.Logger
}

func NewService(conn *sql.DB, loc *time.Location, log *zap.Logger) *Service {
	s := NewServiceWithStore(NewStore(conn), loc, log)
	s.txStore = func(tx db.DBTX) LogStore { return NewStore(tx) }
	s.inTx = func(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
		return db.RunInTx(ctx, conn, nil, fn)
	}
	return s
}

// NewServiceWithStore: トランザクションを張らずに store を直接使う（テスト用）
func NewServiceWithStore(store LogStore, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		txStore: func(db.DBTX) LogStore { return store },
		inTx: func(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
			return fn(ctx, nil)
		},
		loc: loc,
		log: log,
	}
}

// ReconcileDay: (student, date) の日報とキャプチャの打刻・時間、users.total_hours を揃える。冪等
func (s *Service) ReconcileDay(ctx context.Context, studentID int64, day time.Time) error {
	return s.Apply(ctx, studentID, day, nil)
}

// Apply: mutate を実行してからその日を再計算する。どちらかが失敗すれば全体をロールバック
func (s *Service) Apply(ctx context.Context, studentID int64, day time.Time, mutate func(ctx context.Context, tx db.DBTX) error) error {
	day = hours.DateOf(day.In(s.loc))
	err := s.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := s.txStore(tx)
		if err := st.LockStudent(ctx, studentID); err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(ctx, tx); err != nil {
				return err
			}
		}
		return s.reconcile(ctx, st, studentID, day)
	})

	switch {
	case err == nil:
		metrics.Reconciles.WithLabelValues("ok").Inc()
	case errors.Is(err, hours.ErrDayFull):
		metrics.Reconciles.WithLabelValues("day_full").Inc()
	default:
		metrics.Reconciles.WithLabelValues("error").Inc()
		if apierr.HTTPStatus(err) >= 500 {
			s.log.Error("reconcile day failed",
				zap.Int64("student_id", studentID), zap.String("date", day.Format(hours.DateLayout)), zap.Error(err))
		}
	}
	return err
}

func (s *Service) reconcile(ctx context.Context, st LogStore, studentID int64, day time.Time) error {
	caps, err := st.DayCaptures(ctx, studentID, day)
	if err != nil {
		return err
	}
	existing, err := st.GetByDate(ctx, studentID, day)
	if err != nil {
		return err
	}
	plan, err := planDay(day, caps, existing)
	if err != nil {
		return err
	}

	for _, stamp := range plan.Stamps {
		if err := st.StampCapture(ctx, stamp); err != nil {
			return err
		}
	}

	switch plan.Action {
	case ActionUpsert:
		l := fromDay(studentID, plan.Day)
		l.VisibleToAdmin = plan.Visible
		l.Description = autoDescription
		if err := st.UpsertAuto(ctx, &l); err != nil {
			return err
		}
	case ActionVisibility:
		if err := st.SetVisibility(ctx, plan.LogID, plan.Visible); err != nil {
			return err
		}
	case ActionDelete:
		if err := st.Delete(ctx, plan.LogID); err != nil {
			return err
		}
	}

	_, err = st.RefreshTotalHours(ctx, studentID)
	return err
}

// ResyncAllHours: 全学生の total_hours を作り直す
func (s *Service) ResyncAllHours(ctx context.Context) (int64, error) {
	return s.store.ResyncAllHours(ctx)
}

func (s *Service) parseClock(date time.Time, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			at := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, s.loc)
			return &at, nil
		}
	}
	return nil, apierr.Invalid("times must be HH:MM")
}

// POST /student/daily-logs
func (s *Service) Add(ctx context.Context, studentID int64, in AddRequest) (LogResponse, error) {
	desc := strings.TrimSpace(in.Description)
	if strings.TrimSpace(in.Date) == "" || desc == "" {
		return LogResponse{}, apierr.Invalid("Date and task description are required!")
	}
	date, err := time.ParseInLocation(hours.DateLayout, strings.TrimSpace(in.Date), s.loc)
	if err != nil {
		return LogResponse{}, apierr.Invalid("date must be YYYY-MM-DD")
	}

	d := hours.Day{Date: date}
	for _, f := range []struct {
		dst **time.Time
		raw string
	}{{&d.InAM, in.InAM}, {&d.OutAM, in.OutAM}, {&d.InPM, in.InPM}, {&d.OutPM, in.OutPM}} {
		if *f.dst, err = s.parseClock(date, f.raw); err != nil {
			return LogResponse{}, err
		}
	}

	l := fromDay(studentID, d)
	l.Description = desc
	l.Manual = true
	if in.TotalHours != nil {
		if *in.TotalHours < 0 || *in.TotalHours > 24 {
			return LogResponse{}, apierr.Invalid("total_hours must be between 0 and 24")
		}
		l.TotalHours = hours.Round2(*in.TotalHours)
	}

	err = s.Apply(ctx, studentID, date, func(ctx context.Context, tx db.DBTX) error {
		return s.txStore(tx).UpsertManual(ctx, &l)
	})
	if err != nil {
		return LogResponse{}, err
	}

	saved, err := s.store.GetByDate(ctx, studentID, date)
	if err != nil {
		return LogResponse{}, err
	}
	if saved == nil {
		return LogResponse{}, apierr.Internal("daily log not saved")
	}
	return saved.toDTO(), nil
}

// POST /student/daily-logs/:id/delete
// 削除後にその日を再計算する。キャプチャが残っていれば自動日報として作り直される
func (s *Service) Delete(ctx context.Context, studentID, logID int64) error {
	l, err := s.store.Get(ctx, logID)
	if err != nil {
		return err
	}
	if l == nil {
		return apierr.NotFound("daily log not found")
	}
	if l.StudentID != studentID {
		return apierr.Forbidden("Unauthorized")
	}
	return s.Apply(ctx, studentID, l.LogDate, func(ctx context.Context, tx db.DBTX) error {
		return s.txStore(tx).Delete(ctx, logID)
	})
}

// GET /student/daily-logs
func (s *Service) List(ctx context.Context, studentID int64) (ListResponse, error) {
	return s.list(ctx, studentID, false)
}

// ListVisible: 管理者ダッシュボード用（visible_to_admin のみ）
func (s *Service) ListVisible(ctx context.Context, studentID int64) (ListResponse, error) {
	return s.list(ctx, studentID, true)
}

func (s *Service) list(ctx context.Context, studentID int64, visibleOnly bool) (ListResponse, error) {
	logs, err := s.store.List(ctx, studentID, visibleOnly)
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{
		Items:   toDTOs(logs),
		Total:   len(logs),
		Summary: hours.Summarize(hours.Rendered(logs)),
	}, nil
}

// Logs: エクスポート用に生のモデルを返す
func (s *Service) Logs(ctx context.Context, studentID int64) ([]DailyLog, error) {
	return s.store.List(ctx, studentID, false)
}
