package dailylog

import (
	"database/sql"
	"time"

	"IMS-backend/internal/hours"
)

const autoDescription = "Auto-generated from attendance capture"

// Service ↔ Store で使うモデル。(student_id, log_date) で一意
type DailyLog struct {
	LogID          int64
	StudentID      int64
	LogDate        time.Time
	InAM           sql.NullTime
	OutAM          sql.NullTime
	InPM           sql.NullTime
	OutPM          sql.NullTime
	TotalHours     float64
	Description    string
	VisibleToAdmin bool
	Manual         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (l DailyLog) CreditedHours() float64 { return l.TotalHours }
func (l DailyLog) Counts() bool           { return true }
func (l DailyLog) At() time.Time          { return l.LogDate }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func fromDay(studentID int64, d hours.Day) DailyLog {
	return DailyLog{
		StudentID:  studentID,
		LogDate:    d.Date,
		InAM:       nullTime(d.InAM),
		OutAM:      nullTime(d.OutAM),
		InPM:       nullTime(d.InPM),
		OutPM:      nullTime(d.OutPM),
		TotalHours: d.Hours(),
	}
}

func (l DailyLog) toDTO() LogResponse {
	return LogResponse{
		LogID:          l.LogID,
		StudentID:      l.StudentID,
		Date:           l.LogDate.Format(hours.DateLayout),
		InAM:           timePtr(l.InAM),
		OutAM:          timePtr(l.OutAM),
		InPM:           timePtr(l.InPM),
		OutPM:          timePtr(l.OutPM),
		TotalHours:     l.TotalHours,
		Description:    l.Description,
		VisibleToAdmin: l.VisibleToAdmin,
		Manual:         l.Manual,
	}
}

func toDTOs(list []DailyLog) []LogResponse {
	out := make([]LogResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}
