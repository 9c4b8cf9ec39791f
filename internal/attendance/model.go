package attendance

import (
	"database/sql"
	"time"
)

// Service ↔ Store で使うモデル
type Attendance struct {
	AttendanceID int64
	StudentID    int64
	StudentName  string
	FileName     string
	AttendedOn   time.Time
	CapturedAt   time.Time
	InAM         sql.NullTime
	OutAM        sql.NullTime
	InPM         sql.NullTime
	OutPM        sql.NullTime
	TotalHours   float64
	Present      bool
	HTEApproved  bool
	IsDeleted    bool
	DeletedAt    sql.NullTime
}

// hours パッケージの集計・グルーピング用
func (a Attendance) At() time.Time          { return a.CapturedAt }
func (a Attendance) OwnerID() int64         { return a.StudentID }
func (a Attendance) OwnerName() string      { return a.StudentName }
func (a Attendance) CreditedHours() float64 { return a.TotalHours }
func (a Attendance) Counts() bool           { return a.HTEApproved && !a.IsDeleted }

func (r AttendanceResponse) At() time.Time     { return r.CapturedAt }
func (r AttendanceResponse) OwnerID() int64    { return r.StudentID }
func (r AttendanceResponse) OwnerName() string { return r.StudentName }

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (a Attendance) toDTO() AttendanceResponse {
	res := AttendanceResponse{
		AttendanceID: a.AttendanceID,
		StudentID:    a.StudentID,
		StudentName:  a.StudentName,
		FileName:     a.FileName,
		AttendedOn:   a.AttendedOn.Format(DateLayout),
		CapturedAt:   a.CapturedAt,
		InAM:         timePtr(a.InAM),
		OutAM:        timePtr(a.OutAM),
		InPM:         timePtr(a.InPM),
		OutPM:        timePtr(a.OutPM),
		TotalHours:   a.TotalHours,
		Present:      a.Present,
		HTEApproved:  a.HTEApproved,
		IsDeleted:    a.IsDeleted,
	}
	if a.FileName != "" {
		res.FileURL = "/uploads/" + a.FileName
	}
	return res
}

func toDTOs(list []Attendance) []AttendanceResponse {
	out := make([]AttendanceResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}
