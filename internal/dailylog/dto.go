package dailylog

import (
	"time"

	"IMS-backend/internal/hours"
)

// AddRequest: 手入力の日報。時刻は HH:MM（空欄可）
type AddRequest struct {
	Date        string   `json:"date" form:"date"`
	InAM        string   `json:"in_am" form:"in_am"`
	OutAM       string   `json:"out_am" form:"out_am"`
	InPM        string   `json:"in_pm" form:"in_pm"`
	OutPM       string   `json:"out_pm" form:"out_pm"`
	Description string   `json:"description" form:"description"`
	TotalHours  *float64 `json:"total_hours" form:"total_hours"`
}

type LogResponse struct {
	LogID          int64      `json:"log_id"`
	StudentID      int64      `json:"student_id"`
	Date           string     `json:"date"` // YYYY-MM-DD
	InAM           *time.Time `json:"in_am,omitempty"`
	OutAM          *time.Time `json:"out_am,omitempty"`
	InPM           *time.Time `json:"in_pm,omitempty"`
	OutPM          *time.Time `json:"out_pm,omitempty"`
	TotalHours     float64    `json:"total_hours"`
	Description    string     `json:"description"`
	VisibleToAdmin bool       `json:"visible_to_admin"`
	Manual         bool       `json:"manual"`
}

type ListResponse struct {
	Items   []LogResponse `json:"items"`
	Total   int           `json:"total"`
	Summary hours.Summary `json:"summary"`
}
