package dailylog

import (
	"sort"
	"time"

	"IMS-backend/internal/hours"
)

// CaptureRef: 再計算に必要なキャプチャの最小情報
type CaptureRef struct {
	AttendanceID int64
	CapturedAt   time.Time
	Approved     bool
}

// Stamp: キャプチャ行に書き戻す枠と時間
type Stamp struct {
	AttendanceID int64
	Slot         hours.Slot
	At           time.Time
	Hours        float64
}

type Action int

const (
	ActionNone Action = iota
	ActionUpsert
	ActionVisibility // 手入力の日報は表示フラグだけ更新
	ActionDelete
)

type Plan struct {
	Day     hours.Day
	Stamps  []Stamp
	Action  Action
	Visible bool
	LogID   int64
}

// planDay: その日の未削除キャプチャと既存日報から、書き込む内容を決める
func planDay(date time.Time, caps []CaptureRef, existing *DailyLog) (Plan, error) {
	sorted := append([]CaptureRef(nil), caps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CapturedAt.Equal(sorted[j].CapturedAt) {
			return sorted[i].AttendanceID < sorted[j].AttendanceID
		}
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})

	times := make([]time.Time, len(sorted))
	for i, c := range sorted {
		times[i] = c.CapturedAt
	}
	day, err := hours.AssignPunches(date, times)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{Day: day, Stamps: make([]Stamp, 0, len(sorted))}
	for i, c := range sorted {
		slot := hours.Slot(i)
		p.Stamps = append(p.Stamps, Stamp{
			AttendanceID: c.AttendanceID,
			Slot:         slot,
			At:           c.CapturedAt,
			Hours:        day.SlotHours(slot),
		})
		if c.Approved {
			p.Visible = true
		}
	}
	if existing != nil {
		p.LogID = existing.LogID
	}

	switch {
	case existing != nil && existing.Manual:
		p.Action = ActionVisibility
	case len(sorted) == 0 && existing != nil:
		p.Action = ActionDelete
	case len(sorted) == 0:
		p.Action = ActionNone
	default:
		p.Action = ActionUpsert
	}
	return p, nil
}
