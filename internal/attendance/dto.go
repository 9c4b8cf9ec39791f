package attendance

import (
	"time"

	"IMS-backend/internal/hours"
)

const (
	SortCapturedAtDesc = "captured_at_desc"
	SortCapturedAtAsc  = "captured_at_asc"
	DefaultPageLimit   = 500
	MaxPageLimit       = 2000
	DateLayout         = hours.DateLayout
)

type CaptureRequest struct {
	AttendanceFile string `json:"attendance_file" form:"attendance_file" binding:"required"`
}

type MarkRequest struct {
	Present bool `json:"present" form:"present"`
}

type AttendanceResponse struct {
	AttendanceID int64      `json:"attendance_id"`
	StudentID    int64      `json:"student_id"`
	StudentName  string     `json:"student_name,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	FileURL      string     `json:"file_url,omitempty"`
	AttendedOn   string     `json:"attended_on"` // YYYY-MM-DD
	CapturedAt   time.Time  `json:"captured_at"`
	InAM         *time.Time `json:"in_am,omitempty"`
	OutAM        *time.Time `json:"out_am,omitempty"`
	InPM         *time.Time `json:"in_pm,omitempty"`
	OutPM        *time.Time `json:"out_pm,omitempty"`
	TotalHours   float64    `json:"total_hours"`
	Present      bool       `json:"present"`
	HTEApproved  bool       `json:"hte_approved"`
	IsDeleted    bool       `json:"is_deleted"`
}

type CaptureResponse struct {
	Success bool `json:"success"`
	AttendanceResponse
	Message string `json:"message"`
}

// ListQuery: Store.List の絞り込み条件
type ListQuery struct {
	StudentID    *int64
	HTEID        *int64 // 担当 HTE で絞る（users.hte_id）
	Deleted      *bool
	From         *time.Time
	To           *time.Time
	ApprovedOnly bool
	PresentOnly  bool
	Limit        int
	Offset       int
	Sort         string
}

type StatsRequest struct {
	From  string // YYYY-MM-DD
	To    string // YYYY-MM-DD
	Limit int
}

type StatsRow struct {
	StudentID     int64   `json:"student_id"`
	StudentName   string  `json:"student_name"`
	Captures      int64   `json:"captures"`
	ApprovedHours float64 `json:"approved_hours"`
}

// 学生画面用
type StudentView struct {
	Active  []hours.DayGroup[AttendanceResponse] `json:"active"`
	Deleted []AttendanceResponse                 `json:"deleted"`
	Summary hours.Summary                        `json:"summary"`
}
