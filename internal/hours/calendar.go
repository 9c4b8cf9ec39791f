package hours

import "time"

type CalendarDay[T any] struct {
	Date  time.Time `json:"date"`
	Items []T       `json:"items"`
}

// Calendar: Cells の先頭には日曜始まりに揃えるための nil が入る
type Calendar[T any] struct {
	Year      int               `json:"year"`
	Month     time.Month        `json:"month"`
	MonthName string            `json:"month_name"`
	Cells     []*CalendarDay[T] `json:"cells"`
}

func MonthGrid[T Timed](year int, month time.Month, loc *time.Location, items []T) Calendar[T] {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()

	byDay := make(map[int][]T, last)
	for _, it := range items {
		at := it.At().In(loc)
		if at.Year() == year && at.Month() == month {
			byDay[at.Day()] = append(byDay[at.Day()], it)
		}
	}

	lead := int(first.Weekday())
	cells := make([]*CalendarDay[T], lead, lead+last)
	for d := 1; d <= last; d++ {
		cells = append(cells, &CalendarDay[T]{
			Date:  time.Date(year, month, d, 0, 0, 0, 0, loc),
			Items: byDay[d],
		})
	}
	return Calendar[T]{Year: year, Month: month, MonthName: month.String(), Cells: cells}
}
