package hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manila = time.FixedZone("PHT", 8*3600)

func at(day, hour, min int) time.Time {
	return time.Date(2026, time.March, day, hour, min, 0, 0, manila)
}

type rec struct {
	owner int64
	name  string
	at    time.Time
	hours float64
	ok    bool
}

func (r rec) At() time.Time { return r.at }
func (r rec) OwnerID() int64 { return r.owner }
func (r rec) OwnerName() string { return r.name }
func (r rec) CreditedHours() float64 { return r.hours }
func (r rec) Counts() bool { return r.ok }

func TestAssignPunchesSortsIntoSlots(t *testing.T) {
	d, err := AssignPunches(at(2, 0, 0), []time.Time{at(2, 17, 30), at(2, 8, 0), at(2, 13, 0), at(2, 12, 0)})
	require.NoError(t, err)

	assert.Equal(t, at(2, 8, 0), *d.InAM)
	assert.Equal(t, at(2, 12, 0), *d.OutAM)
	assert.Equal(t, at(2, 13, 0), *d.InPM)
	assert.Equal(t, at(2, 17, 30), *d.OutPM)
	assert.True(t, d.Complete())
	assert.Equal(t, 8.5, d.Hours())
	assert.Equal(t, 4.0, d.SlotHours(OutAM))
	assert.Equal(t, 4.5, d.SlotHours(OutPM))
	assert.Equal(t, 0.0, d.SlotHours(InAM))
}

func TestAssignPunchesPartialDay(t *testing.T) {
	d, err := AssignPunches(at(2, 0, 0), []time.Time{at(2, 8, 0), at(2, 12, 0), at(2, 13, 0)})
	require.NoError(t, err)
	assert.Nil(t, d.OutPM)
	assert.False(t, d.Complete())
	assert.Equal(t, 4.0, d.Hours())
}

func TestAssignPunchesRejectsFifth(t *testing.T) {
	caps := []time.Time{at(2, 8, 0), at(2, 9, 0), at(2, 10, 0), at(2, 11, 0), at(2, 12, 0)}
	_, err := AssignPunches(at(2, 0, 0), caps)
	assert.ErrorIs(t, err, ErrDayFull)
}

func TestSegmentHours(t *testing.T) {
	in, out := at(2, 8, 0), at(2, 7, 0)
	assert.Equal(t, 0.0, SegmentHours(&in, &out))
	assert.Equal(t, 0.0, SegmentHours(&in, nil))
	out = at(2, 8, 20)
	assert.Equal(t, 0.33, Round2(SegmentHours(&in, &out)))
}

func TestSummarize(t *testing.T) {
	s := Summarize(0)
	assert.Equal(t, Summary{Rendered: 0, Remaining: 600, Required: 600, Percent: 0}, s)

	s = Summarize(650)
	assert.Equal(t, 0.0, s.Remaining)
	assert.Equal(t, 100.0, s.Percent)

	s = Summarize(123.456)
	assert.Equal(t, 123.46, s.Rendered)
	assert.Equal(t, 476.54, s.Remaining)
	assert.Equal(t, 20.58, s.Percent)
}

func TestRenderedCountsOnlyCredited(t *testing.T) {
	items := []rec{
		{hours: 4, ok: true},
		{hours: 4.5, ok: true},
		{hours: 8, ok: false},
	}
	assert.Equal(t, 8.5, Rendered(items))
}

func TestGroupByFiveDays(t *testing.T) {
	var items []rec
	for i := 0; i < 5; i++ {
		items = append(items, rec{at: at(1, 8+i, 0)})
	}
	for day := 2; day <= 7; day++ {
		items = append(items, rec{at: at(day, 8, 0)})
	}

	groups := GroupByFiveDays(items)
	require.Len(t, groups, 2)

	assert.Equal(t, DateOf(at(1, 0, 0)), groups[0].Start)
	assert.Equal(t, DateOf(at(5, 0, 0)), groups[0].End)
	require.Len(t, groups[0].Days, 5)
	assert.Len(t, groups[0].Days[0].Items, MaxPunchesPerDay)

	assert.Equal(t, DateOf(at(6, 0, 0)), groups[1].Start)
	assert.Equal(t, DateOf(at(7, 0, 0)), groups[1].End)
	assert.Len(t, groups[1].Days, 2)
}

func TestGroupByFiveDaysEmpty(t *testing.T) {
	assert.Nil(t, GroupByFiveDays[rec](nil))
}

func TestGroupByMonth(t *testing.T) {
	items := []rec{
		{at: time.Date(2026, time.January, 30, 8, 0, 0, 0, manila)},
		{at: time.Date(2026, time.February, 2, 8, 0, 0, 0, manila)},
		{at: time.Date(2026, time.January, 31, 8, 0, 0, 0, manila)},
	}
	months := GroupByMonth(items)
	require.Len(t, months, 2)
	assert.Equal(t, "January 2026", months[0].Label)
	assert.Len(t, months[0].Items, 2)
	assert.Equal(t, "February 2026", months[1].Label)
	assert.Equal(t, 28, months[1].End.Day())
}

func TestGroupForSupervisor(t *testing.T) {
	items := []rec{
		{owner: 1, name: "Ana", at: at(1, 8, 0)},
		{owner: 2, name: "", at: at(2, 8, 0)},
		{owner: 2, name: "", at: at(10, 8, 0)},
		{owner: 1, name: "Ana", at: at(28, 8, 0)},
	}
	groups := GroupForSupervisor(items)
	require.Len(t, groups, 2)

	assert.Equal(t, "Ana", groups[0].Student)
	require.Len(t, groups[0].Months, 1)
	assert.Equal(t, "March 2026", groups[0].Months[0].Label)
	require.Len(t, groups[0].Months[0].Buckets, 1)
	assert.Equal(t, "Full Month", groups[0].Months[0].Buckets[0].Label)
	assert.Len(t, groups[0].Months[0].Buckets[0].Items, 2)

	assert.Equal(t, "Student-2", groups[1].Student)
	weeks := groups[1].Months[0].Buckets
	require.Len(t, weeks, 2)
	assert.Equal(t, "Week 1 (Mar 02–08)", weeks[0].Label)
	assert.Len(t, weeks[0].Items, 1)
	assert.Equal(t, "Week 2 (Mar 09–10)", weeks[1].Label)
	assert.Len(t, weeks[1].Items, 1)
}

func TestGroupForSupervisorKeepsEmptyWeeks(t *testing.T) {
	items := []rec{
		{owner: 1, at: at(1, 8, 0)},
		{owner: 1, at: at(20, 8, 0)},
	}
	weeks := GroupForSupervisor(items)[0].Months[0].Buckets
	require.Len(t, weeks, 3)
	assert.Empty(t, weeks[1].Items)
	assert.Equal(t, "Week 3 (Mar 15–20)", weeks[2].Label)
}

func TestGroupForSupervisorFullMonthBoundary(t *testing.T) {
	span := func(lastDay int) []Bucket[rec] {
		items := []rec{{owner: 1, at: at(1, 8, 0)}, {owner: 1, at: at(lastDay, 17, 0)}}
		return GroupForSupervisor(items)[0].Months[0].Buckets
	}

	// 3/1〜3/24 は 24 日間なので週ごと
	weeks := span(24)
	require.Len(t, weeks, 4)
	assert.Equal(t, "Week 1 (Mar 01–07)", weeks[0].Label)
	assert.Equal(t, "Week 4 (Mar 22–24)", weeks[3].Label)

	// 3/1〜3/25 は 25 日間で月まとめ
	full := span(FullMonthThreshold)
	require.Len(t, full, 1)
	assert.Equal(t, "Full Month", full[0].Label)
	assert.Len(t, full[0].Items, 2)
}

func TestMonthGridStartsOnSunday(t *testing.T) {
	items := []rec{
		{at: time.Date(2026, time.April, 15, 9, 0, 0, 0, manila)},
		{at: time.Date(2026, time.May, 1, 9, 0, 0, 0, manila)},
	}
	cal := MonthGrid(2026, time.April, manila, items)

	assert.Equal(t, "April", cal.MonthName)
	// 2026-04-01 は水曜
	require.Len(t, cal.Cells, 3+30)
	assert.Nil(t, cal.Cells[0])
	assert.Nil(t, cal.Cells[2])
	assert.Equal(t, 1, cal.Cells[3].Date.Day())
	assert.Len(t, cal.Cells[3+14].Items, 1)
	assert.Empty(t, cal.Cells[3].Items)
}
