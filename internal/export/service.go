package export

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"IMS-backend/internal/dailylog"
	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

type Roster interface {
	ListByRole(ctx context.Context, role auth.Role) ([]users.User, error)
	ViewStudent(ctx context.Context, viewerID int64, viewerRole auth.Role, studentID int64) (*users.User, error)
}

type LogSource interface {
	Logs(ctx context.Context, studentID int64) ([]dailylog.DailyLog, error)
}

type Service struct {
	roster Roster
	logs   LogSource
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger
}

func NewService(roster Roster, logs LogSource, loc *time.Location, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{roster: roster, logs: logs, loc: loc, now: time.Now, log: log}
}

var (
	summaryHeader = []string{"Student ID", "Name", "Username", "HTE ID", "Rendered Hours", "Remaining Hours", "Progress %"}
	logHeader     = []string{"Date", "In AM", "Out AM", "In PM", "Out PM", "Total Hours", "Description", "Visible To Admin", "Manual"}
)

func fmtHours(f float64) string { return strconv.FormatFloat(hours.Round2(f), 'f', 2, 64) }

func (s *Service) clock(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.In(s.loc).Format("15:04")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (s *Service) logRows(list []dailylog.DailyLog) [][]string {
	rows := make([][]string, 0, len(list))
	for _, l := range list {
		rows = append(rows, []string{
			l.LogDate.Format(hours.DateLayout),
			s.clock(l.InAM), s.clock(l.OutAM), s.clock(l.InPM), s.clock(l.OutPM),
			fmtHours(l.TotalHours),
			l.Description,
			yesNo(l.VisibleToAdmin),
			yesNo(l.Manual),
		})
	}
	return rows
}

// HoursWorkbook: 1枚目が全学生のサマリ、以降は学生ごとの日報シート
func (s *Service) HoursWorkbook(ctx context.Context) ([]byte, string, error) {
	students, err := s.roster.ListByRole(ctx, auth.RoleStudent)
	if err != nil {
		return nil, "", fmt.Errorf("list students: %w", err)
	}

	summary := SheetSpec{Title: "Summary", Header: summaryHeader}
	sheets := []SheetSpec{}
	for _, st := range students {
		sum := hours.Summarize(st.TotalHours)
		hte := ""
		if st.HTEID.Valid {
			hte = strconv.FormatInt(st.HTEID.Int64, 10)
		}
		summary.Rows = append(summary.Rows, []string{
			strconv.FormatInt(st.UserID, 10), st.DisplayName(), st.Username, hte,
			fmtHours(sum.Rendered), fmtHours(sum.Remaining), fmtHours(sum.Percent),
		})

		logs, err := s.logs.Logs(ctx, st.UserID)
		if err != nil {
			return nil, "", fmt.Errorf("load daily logs: %w", err)
		}
		sheets = append(sheets, SheetSpec{
			Title:  fmt.Sprintf("%d %s", st.UserID, st.DisplayName()),
			Header: logHeader,
			Rows:   s.logRows(logs),
		})
	}

	f, err := NewWorkbook(append([]SheetSpec{summary}, sheets...))
	if err != nil {
		return nil, "", fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}
	name := fmt.Sprintf("ojt_hours_%s.xlsx", s.now().In(s.loc).Format("2006-01-02"))
	s.log.Info("hours workbook exported", zap.Int("students", len(students)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), name, nil
}

// DailyLogCSV: 閲覧権限は ViewStudent と同じ
func (s *Service) DailyLogCSV(ctx context.Context, viewer auth.Principal, studentID int64) ([]byte, string, error) {
	st, err := s.roster.ViewStudent(ctx, viewer.UserID, viewer.Role, studentID)
	if err != nil {
		return nil, "", err
	}
	logs, err := s.logs.Logs(ctx, studentID)
	if err != nil {
		return nil, "", fmt.Errorf("load daily logs: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, logHeader, s.logRows(logs)); err != nil {
		return nil, "", fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("daily_logs_%s.csv", st.Username), nil
}
