package schedule

import (
	"errors"
	"testing"
	"time"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestEndTime(t *testing.T) {
	end := EndTime(at(10, 0), 120, DefaultBuffer)
	assert.Equal(t, at(12, 15), end)
}

func TestOverlaps(t *testing.T) {
	existingStart, existingEnd := at(10, 0), at(12, 15)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"starts inside", at(11, 0), at(13, 15), true},
		{"touches end", at(12, 15), at(14, 30), false},
		{"touches start", at(7, 45), at(10, 0), false},
		{"contains", at(9, 0), at(13, 0), true},
		{"before", at(7, 0), at(9, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(existingStart, existingEnd, tt.start, tt.end))
		})
	}
}

func TestDayType(t *testing.T) {
	assert.Equal(t, models.DayWeekday, DayType(time.Date(2026, 3, 13, 18, 0, 0, 0, time.UTC))) // Friday
	assert.Equal(t, models.DayWeekend, DayType(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))) // Saturday
	assert.Equal(t, models.DayWeekend, DayType(time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC))) // Sunday
}

func TestInReleaseWindow(t *testing.T) {
	releaseStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	releaseEnd := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.True(t, InReleaseWindow(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), releaseStart, releaseEnd, time.UTC))
	assert.True(t, InReleaseWindow(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC), releaseStart, releaseEnd, time.UTC))
	assert.False(t, InReleaseWindow(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC), releaseStart, releaseEnd, time.UTC))
	assert.False(t, InReleaseWindow(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), releaseStart, releaseEnd, time.UTC))
}

func TestCheckSlotGaps(t *testing.T) {
	gap := 135 * time.Minute

	_, err := CheckSlotGaps([]string{"10:00", "12:00"}, gap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTimeslotConflict))

	var tsErr *apperr.TimeslotConflictError
	require.True(t, errors.As(err, &tsErr))
	assert.Equal(t, "10:00", tsErr.First)
	assert.Equal(t, "12:00", tsErr.Second)
	assert.Equal(t, 120*time.Minute, tsErr.ActualGap)
	assert.Equal(t, gap, tsErr.RequiredGap)

	minutes, err := CheckSlotGaps([]string{"12:30", "10:00"}, gap)
	require.NoError(t, err)
	assert.Equal(t, []int{600, 750}, minutes)
}

func TestCheckSlotGapsRejectsDuplicatesAndGarbage(t *testing.T) {
	_, err := CheckSlotGaps([]string{"10:00", "10:00"}, time.Minute)
	assert.ErrorIs(t, err, apperr.ErrTimeslotConflict)

	_, err = CheckSlotGaps([]string{"25:00"}, time.Minute)
	assert.Error(t, err)
}

func TestDays(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	daily, err := Days(start, end, models.RepeatDaily, nil)
	require.NoError(t, err)
	assert.Len(t, daily, 14)

	weekly, err := Days(start, end, models.RepeatWeekly, nil)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, time.Monday, weekly[1].Weekday())

	custom, err := Days(start, end, models.RepeatCustomWeekdays, []int{0, 6})
	require.NoError(t, err)
	assert.Len(t, custom, 4)
	for _, d := range custom {
		assert.Equal(t, models.DayWeekend, DayType(d))
	}

	_, err = Days(start, end, models.RepeatCustomWeekdays, nil)
	assert.Error(t, err)

	_, err = Days(end, start, models.RepeatDaily, nil)
	assert.Error(t, err)
}

func TestAt(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 22, 45, 0, 0, time.UTC), At(day, 22*60+45))
}
