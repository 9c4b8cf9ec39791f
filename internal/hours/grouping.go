package hours

import (
	"fmt"
	"time"
)

// Timed: 撮影時刻を持つ記録
type Timed interface {
	At() time.Time
}

// Owned: 学生ごとに束ねられる記録
type Owned interface {
	Timed
	OwnerID() int64
	OwnerName() string
}

type DayBucket[T any] struct {
	Date  time.Time `json:"date"`
	Items []T       `json:"items"`
}

type DayGroup[T any] struct {
	Start time.Time      `json:"start"`
	End   time.Time      `json:"end"`
	Days  []DayBucket[T] `json:"days"`
}

// GroupByFiveDays: 入力順のまま連続する同日をまとめ、5日ごとに区切る。1日は最大4件
func GroupByFiveDays[T Timed](items []T) []DayGroup[T] {
	if len(items) == 0 {
		return nil
	}
	var (
		out     []DayGroup[T]
		current = DayGroup[T]{Start: DateOf(items[0].At()), End: DateOf(items[0].At())}
		day     []T
		days    int
	)
	flushDay := func() {
		if len(day) == 0 {
			return
		}
		if len(day) > MaxPunchesPerDay {
			day = day[:MaxPunchesPerDay]
		}
		current.Days = append(current.Days, DayBucket[T]{Date: DateOf(day[0].At()), Items: day})
		days++
		day = nil
	}

	for _, it := range items {
		d := DateOf(it.At())
		if len(day) == 0 || !SameDate(day[len(day)-1].At(), d) {
			flushDay()
			if days == GroupDays {
				out = append(out, current)
				current = DayGroup[T]{Start: d, End: d}
				days = 0
			}
		}
		day = append(day, it)
		current.End = d
	}
	flushDay()
	if len(current.Days) > 0 {
		out = append(out, current)
	}
	return out
}

type Bucket[T any] struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Items []T       `json:"items"`
}

// GroupByMonth: "January 2006" 単位。最初に現れた順
func GroupByMonth[T Timed](items []T) []Bucket[T] {
	var out []Bucket[T]
	index := map[string]int{}
	for _, it := range items {
		at := it.At()
		key := at.Format(MonthLayout)
		i, ok := index[key]
		if !ok {
			first := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
			out = append(out, Bucket[T]{Label: key, Start: first, End: first.AddDate(0, 1, -1)})
			i = len(out) - 1
			index[key] = i
		}
		out[i].Items = append(out[i].Items, it)
	}
	return out
}

type MonthGroup[T any] struct {
	Label   string      `json:"label"`
	Buckets []Bucket[T] `json:"buckets"`
}

type StudentGroup[T any] struct {
	StudentID int64           `json:"student_id"`
	Student   string          `json:"student"`
	Months    []MonthGroup[T] `json:"months"`
}

// GroupForSupervisor: 学生→月→（Full Month | 7日ごとの Week N）。
// 記録のある最初と最後の日が 25 日以上離れていれば月まとめ
func GroupForSupervisor[T Owned](items []T) []StudentGroup[T] {
	var out []StudentGroup[T]
	perStudent := map[int64][]T{}
	for _, it := range items {
		id := it.OwnerID()
		if _, ok := perStudent[id]; !ok {
			name := it.OwnerName()
			if name == "" {
				name = fmt.Sprintf("Student-%d", id)
			}
			out = append(out, StudentGroup[T]{StudentID: id, Student: name})
		}
		perStudent[id] = append(perStudent[id], it)
	}
	for i := range out {
		for _, m := range GroupByMonth(perStudent[out[i].StudentID]) {
			out[i].Months = append(out[i].Months, MonthGroup[T]{Label: m.Label, Buckets: splitMonth(m.Items)})
		}
	}
	return out
}

func splitMonth[T Timed](items []T) []Bucket[T] {
	if len(items) == 0 {
		return nil
	}
	start, end := DateOf(items[0].At()), DateOf(items[0].At())
	for _, it := range items[1:] {
		d := DateOf(it.At())
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
	}
	if daysBetween(start, end)+1 >= FullMonthThreshold {
		return []Bucket[T]{{Label: "Full Month", Start: start, End: end, Items: items}}
	}

	var out []Bucket[T]
	for week, ws := 1, start; !ws.After(end); week++ {
		we := ws.AddDate(0, 0, WeekDays-1)
		if we.After(end) {
			we = end
		}
		b := Bucket[T]{
			Label: fmt.Sprintf("Week %d (%s–%s)", week, ws.Format("Jan 02"), we.Format("02")),
			Start: ws,
			End:   we,
		}
		for _, it := range items {
			d := DateOf(it.At())
			if !d.Before(ws) && !d.After(we) {
				b.Items = append(b.Items, it)
			}
		}
		out = append(out, b)
		ws = we.AddDate(0, 0, 1)
	}
	return out
}

// daysBetween: DST をまたいでも暦日で数える
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
