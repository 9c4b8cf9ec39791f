// Package hours は出席記録から稼働時間を計算する純粋関数群。
// DB にも HTTP にも依存しない。
package hours

import (
	"errors"
	"math"
	"sort"
	"time"
)

const (
	RequiredHours      = 600.0
	MaxPunchesPerDay   = 4
	GroupDays          = 5
	FullMonthThreshold = 25
	WeekDays           = 7
	DateLayout         = "2006-01-02"
	MonthLayout        = "January 2006"
)

var ErrDayFull = errors.New("day already has 4 captures")

// Slot: 1日の打刻枠（撮影順に埋まる）
type Slot int

const (
	InAM Slot = iota
	OutAM
	InPM
	OutPM
)

func (s Slot) String() string {
	switch s {
	case InAM:
		return "in_am"
	case OutAM:
		return "out_am"
	case InPM:
		return "in_pm"
	case OutPM:
		return "out_pm"
	}
	return "unknown"
}

// Day: 1日分の4打刻
type Day struct {
	Date  time.Time
	InAM  *time.Time
	OutAM *time.Time
	InPM  *time.Time
	OutPM *time.Time
}

// AssignPunches: 撮影時刻を昇順に並べて in_am→out_am→in_pm→out_pm に割り当てる
func AssignPunches(date time.Time, captures []time.Time) (Day, error) {
	if len(captures) > MaxPunchesPerDay {
		return Day{}, ErrDayFull
	}
	ts := append([]time.Time(nil), captures...)
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	d := Day{Date: DateOf(date)}
	for i := range ts {
		t := ts[i]
		switch Slot(i) {
		case InAM:
			d.InAM = &t
		case OutAM:
			d.OutAM = &t
		case InPM:
			d.InPM = &t
		case OutPM:
			d.OutPM = &t
		}
	}
	return d, nil
}

// SegmentHours: 片方でも欠けていれば 0。逆転も 0
func SegmentHours(in, out *time.Time) float64 {
	if in == nil || out == nil {
		return 0
	}
	d := out.Sub(*in).Hours()
	if d < 0 {
		return 0
	}
	return d
}

func (d Day) Hours() float64 {
	return Round2(SegmentHours(d.InAM, d.OutAM) + SegmentHours(d.InPM, d.OutPM))
}

// SlotHours: ペアを閉じる枠（out_am / out_pm）だけがそのペアの時間を持つ
func (d Day) SlotHours(s Slot) float64 {
	switch s {
	case OutAM:
		return Round2(SegmentHours(d.InAM, d.OutAM))
	case OutPM:
		return Round2(SegmentHours(d.InPM, d.OutPM))
	}
	return 0
}

func (d Day) Complete() bool {
	return d.InAM != nil && d.OutAM != nil && d.InPM != nil && d.OutPM != nil
}

func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// DateOf: 時刻を切り捨てて同じロケーションの 0:00 にする
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
