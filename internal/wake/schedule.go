package wake

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime     = errors.New("invalid alarm time")
	ErrInvalidPeriod   = errors.New("invalid alarm period")
	ErrInvalidSchedule = errors.New("invalid alarm schedule")
)

// MinutesPerDay is the number of distinct minute-of-day values.
const MinutesPerDay = 24 * 60

// TimeToMinutesOfDay converts a 12-hour "hh:mm" time and its period into
// minutes from midnight (0..1439). 12 AM is midnight, 12 PM is noon.
func TimeToMinutesOfDay(hhmm string, period Period) (int, error) {
	hourStr, minStr, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not hh:mm", ErrInvalidTime, hhmm)
	}
	if len(hourStr) == 0 || len(hourStr) > 2 || len(minStr) != 2 {
		return 0, fmt.Errorf("%w: %q is not hh:mm", ErrInvalidTime, hhmm)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, fmt.Errorf("%w: hour %q", ErrInvalidTime, hourStr)
	}
	minute, err := strconv.Atoi(minStr)
	if err != nil {
		return 0, fmt.Errorf("%w: minute %q", ErrInvalidTime, minStr)
	}
	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: hour %d outside 1-12", ErrInvalidTime, hour)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute %d outside 0-59", ErrInvalidTime, minute)
	}

	switch period {
	case AM:
		if hour == 12 {
			hour = 0
		}
	case PM:
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return hour*60 + minute, nil
}

// FormatMinutesOfDay is the inverse of TimeToMinutesOfDay.
func FormatMinutesOfDay(m int) (string, Period, error) {
	if m < 0 || m >= MinutesPerDay {
		return "", "", fmt.Errorf("%w: minute-of-day %d outside 0-1439", ErrInvalidTime, m)
	}
	hour, minute := m/60, m%60
	period := AM
	if hour >= 12 {
		period = PM
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), period, nil
}

// DaySet is a set of weekdays, bit i set for time.Weekday(i).
type DaySet uint8

// AllDays contains every weekday.
const AllDays DaySet = 0x7f

// NewDaySet builds a set from the given weekdays.
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Has reports whether d is in the set.
func (s DaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

// Empty reports whether the set has no days.
func (s DaySet) Empty() bool { return s&AllDays == 0 }

// Days returns the members in Sunday-first order.
func (s DaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s DaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, dayAbbrev[d])
	}
	return strings.Join(names, ", ")
}

// dayAbbrev is the fixed lookup table for custom day lists, indexed by weekday.
var dayAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ParseScheduleToDays resolves a schedule string to the weekdays it fires on.
// Once yields the empty set. A custom list must consist entirely of known
// day abbreviations; one bad token rejects the whole schedule.
func ParseScheduleToDays(schedule string) (DaySet, error) {
	s := strings.TrimSpace(schedule)
	switch {
	case s == "":
		return 0, fmt.Errorf("%w: empty schedule", ErrInvalidSchedule)
	case strings.EqualFold(s, ScheduleOnce):
		return 0, nil
	case strings.EqualFold(s, ScheduleDaily):
		return AllDays, nil
	case strings.EqualFold(s, ScheduleWeekdays):
		return NewDaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday), nil
	case strings.EqualFold(s, ScheduleWeekends):
		return NewDaySet(time.Saturday, time.Sunday), nil
	}

	var set DaySet
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		day, ok := lookupDay(tok)
		if !ok {
			return 0, fmt.Errorf("%w: unknown day %q in %q", ErrInvalidSchedule, tok, schedule)
		}
		set |= 1 << uint(day)
	}
	return set, nil
}

func lookupDay(tok string) (time.Weekday, bool) {
	for i, abbrev := range dayAbbrev {
		if strings.EqualFold(tok, abbrev) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// NextTrigger returns the next instant strictly after now at which the alarm
// fires. An alarm whose time equals now resolves to its following occurrence.
// Dates are computed in now's location.
func NextTrigger(a *Alarm, now time.Time) (time.Time, error) {
	minutes, err := TimeToMinutesOfDay(a.Time, a.Period)
	if err != nil {
		return time.Time{}, err
	}
	days, err := ParseScheduleToDays(a.Schedule)
	if err != nil {
		return time.Time{}, err
	}

	at := func(offset int) time.Time {
		y, m, d := now.Date()
		return time.Date(y, m, d+offset, minutes/60, minutes%60, 0, 0, now.Location())
	}

	today := at(0)
	if days.Empty() {
		if today.After(now) {
			return today, nil
		}
		return at(1), nil
	}

	if days.Has(now.Weekday()) && today.After(now) {
		return today, nil
	}
	for offset := 1; offset <= 7; offset++ {
		candidate := at(offset)
		if days.Has(candidate.Weekday()) {
			return candidate, nil
		}
	}
	return at(1), nil
}
