package dailylog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/hours"
)

var manila = time.FixedZone("PHT", 8*3600)

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, manila)
}

func TestPlanDayStampsPairClosers(t *testing.T) {
	caps := []CaptureRef{
		{AttendanceID: 3, CapturedAt: at(13, 0)},
		{AttendanceID: 1, CapturedAt: at(8, 0), Approved: true},
		{AttendanceID: 4, CapturedAt: at(17, 0)},
		{AttendanceID: 2, CapturedAt: at(12, 0)},
	}
	p, err := planDay(at(0, 0), caps, nil)
	require.NoError(t, err)

	assert.Equal(t, ActionUpsert, p.Action)
	assert.True(t, p.Visible)
	assert.Equal(t, 8.0, p.Day.Hours())

	require.Len(t, p.Stamps, 4)
	assert.Equal(t, Stamp{AttendanceID: 1, Slot: hours.InAM, At: at(8, 0), Hours: 0}, p.Stamps[0])
	assert.Equal(t, Stamp{AttendanceID: 2, Slot: hours.OutAM, At: at(12, 0), Hours: 4}, p.Stamps[1])
	assert.Equal(t, hours.InPM, p.Stamps[2].Slot)
	assert.Equal(t, 4.0, p.Stamps[3].Hours)
}

func TestPlanDayTieBreaksOnID(t *testing.T) {
	caps := []CaptureRef{{AttendanceID: 9, CapturedAt: at(8, 0)}, {AttendanceID: 5, CapturedAt: at(8, 0)}}
	p, err := planDay(at(0, 0), caps, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stamps[0].AttendanceID)
	assert.False(t, p.Visible)
}

func TestPlanDayActions(t *testing.T) {
	auto := &DailyLog{LogID: 10}
	manual := &DailyLog{LogID: 11, Manual: true}
	one := []CaptureRef{{AttendanceID: 1, CapturedAt: at(8, 0), Approved: true}}

	p, _ := planDay(at(0, 0), nil, nil)
	assert.Equal(t, ActionNone, p.Action)

	p, _ = planDay(at(0, 0), nil, auto)
	assert.Equal(t, ActionDelete, p.Action)
	assert.Equal(t, int64(10), p.LogID)

	p, _ = planDay(at(0, 0), one, auto)
	assert.Equal(t, ActionUpsert, p.Action)

	p, _ = planDay(at(0, 0), one, manual)
	assert.Equal(t, ActionVisibility, p.Action)
	assert.True(t, p.Visible)

	p, _ = planDay(at(0, 0), nil, manual)
	assert.Equal(t, ActionVisibility, p.Action)
	assert.False(t, p.Visible)
}

func TestPlanDayRejectsFifth(t *testing.T) {
	var caps []CaptureRef
	for i := 0; i < 5; i++ {
		caps = append(caps, CaptureRef{AttendanceID: int64(i + 1), CapturedAt: at(8+i, 0)})
	}
	_, err := planDay(at(0, 0), caps, nil)
	assert.ErrorIs(t, err, hours.ErrDayFull)
}
