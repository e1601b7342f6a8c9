// Package schedule holds the time arithmetic behind showtime validation:
// end times, interval overlap, batch slot spacing and day enumeration.
package schedule

import (
	"fmt"
	"sort"
	"time"

	apperr "seatkeeper/internal/errors"
	"seatkeeper/internal/models"
)

// DefaultBuffer is the cleaning gap appended to every showtime
const DefaultBuffer = 15 * time.Minute

const (
	dateLayout = "2006-01-02"
	slotLayout = "15:04"
)

// EndTime returns start + runtime + buffer.
func EndTime(start time.Time, runtimeMinutes int, buffer time.Duration) time.Time {
	return start.Add(time.Duration(runtimeMinutes)*time.Minute + buffer)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DayType classifies a date as WEEKEND (Saturday, Sunday) or WEEKDAY.
func DayType(t time.Time) string {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return models.DayWeekend
	default:
		return models.DayWeekday
	}
}

// InReleaseWindow reports whether start falls on or after the release start
// date and before the day after the release end date, both taken in loc.
func InReleaseWindow(start, releaseStart, releaseEnd time.Time, loc *time.Location) bool {
	from := midnight(releaseStart, loc)
	until := midnight(releaseEnd, loc).AddDate(0, 0, 1)
	return !start.Before(from) && start.Before(until)
}

// midnight keeps the calendar date of t and places it at 00:00 in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseSlot converts "HH:MM" to minutes after midnight.
func ParseSlot(slot string) (int, error) {
	t, err := time.Parse(slotLayout, slot)
	if err != nil {
		return 0, fmt.Errorf("invalid time slot %q: %w", slot, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// At places a slot (minutes after midnight) on the given day.
func At(day time.Time, slotMinutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, slotMinutes/60, slotMinutes%60, 0, 0, day.Location())
}

// CheckSlotGaps verifies that all slots are at least minGap apart. The check
// runs over the sorted slot starts, so the first offending neighbouring pair
// is reported. Slots are returned sorted in minutes.
func CheckSlotGaps(slots []string, minGap time.Duration) ([]int, error) {
	type slot struct {
		label   string
		minutes int
	}

	parsed := make([]slot, 0, len(slots))
	for _, s := range slots {
		m, err := ParseSlot(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, slot{label: s, minutes: m})
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].minutes < parsed[j].minutes })

	for i := 1; i < len(parsed); i++ {
		gap := time.Duration(parsed[i].minutes-parsed[i-1].minutes) * time.Minute
		if gap < minGap {
			return nil, &apperr.TimeslotConflictError{
				First:       parsed[i-1].label,
				Second:      parsed[i].label,
				RequiredGap: minGap,
				ActualGap:   gap,
			}
		}
	}

	minutes := make([]int, len(parsed))
	for i, p := range parsed {
		minutes[i] = p.minutes
	}
	return minutes, nil
}

// Days enumerates the dates in [start, end] selected by the repeat policy.
// WEEKLY keeps the weekday of start; CUSTOM_WEEKDAYS keeps the listed
// weekdays (0 = Sunday).
func Days(start, end time.Time, repeat string, weekdays []int) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	var keep func(time.Time) bool
	switch repeat {
	case models.RepeatDaily:
		keep = func(time.Time) bool { return true }
	case models.RepeatWeekly:
		wd := start.Weekday()
		keep = func(d time.Time) bool { return d.Weekday() == wd }
	case models.RepeatCustomWeekdays:
		if len(weekdays) == 0 {
			return nil, fmt.Errorf("weekdays are required for %s", models.RepeatCustomWeekdays)
		}
		set := make(map[time.Weekday]bool, len(weekdays))
		for _, w := range weekdays {
			if w < 0 || w > 6 {
				return nil, fmt.Errorf("invalid weekday %d", w)
			}
			set[time.Weekday(w)] = true
		}
		keep = func(d time.Time) bool { return set[d.Weekday()] }
	default:
		return nil, fmt.Errorf("unknown repeat policy %q", repeat)
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if keep(d) {
			days = append(days, d)
		}
	}
	return days, nil
}
