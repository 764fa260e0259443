// Package timeutil converts between UTC instants and the operator's local
// wall clock. All schedule arithmetic goes through Clock so DST handling
// lives in one place.
//
// A wall time skipped by a spring-forward transition resolves to the
// instant the clocks jump. A wall time repeated by a fall-back transition
// resolves to its first occurrence.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Clock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{loc: loc}
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Clock) Local(t time.Time) time.Time {
	return t.In(c.Location())
}

// LocalDate is the operator-local calendar date of t.
func (c Clock) LocalDate(t time.Time) string {
	return c.Local(t).Format(DateLayout)
}

// At returns the UTC instant of hh:mm on the local calendar day containing day.
func (c Clock) At(day time.Time, hh, mm int) time.Time {
	y, m, d := c.Local(day).Date()
	return c.wall(y, m, d, hh, mm)
}

// StartOfDay is the first instant of the local day containing t.
func (c Clock) StartOfDay(t time.Time) time.Time {
	return c.At(t, 0, 0)
}

// StartOfWeek is the first instant of the local Monday-based week containing t.
func (c Clock) StartOfWeek(t time.Time) time.Time {
	local := c.Local(t)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return c.wall(y, m, d-offset, 0, 0)
}

// DayInWeek returns a time on weekday wd of the Monday-based week containing t.
func (c Clock) DayInWeek(t time.Time, wd time.Weekday) time.Time {
	local := c.Local(t)
	offset := (int(local.Weekday()) + 6) % 7
	target := (int(wd) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset+target, 12, 0, 0, 0, c.Location())
}

func (c Clock) wall(y int, m time.Month, d, hh, mm int) time.Time {
	loc := c.Location()
	t := time.Date(y, m, d, hh, mm, 0, 0, loc)
	want := time.Date(y, m, d, hh, mm, 0, 0, time.UTC)

	if got := wallClock(t); !got.Equal(want) {
		// hh:mm does not exist on this day; pick the transition instant.
		start, end := t.ZoneBounds()
		if got.After(want) {
			return start.UTC()
		}
		return end.UTC()
	}

	start, _ := t.ZoneBounds()
	if !start.IsZero() {
		_, prevOffset := start.Add(-time.Second).Zone()
		_, curOffset := t.Zone()
		if prevOffset > curOffset {
			earlier := t.Add(-time.Duration(prevOffset-curOffset) * time.Second)
			if earlier.Before(start) && wallClock(earlier).Equal(want) {
				return earlier.UTC()
			}
		}
	}
	return t.UTC()
}

// wallClock re-expresses the local wall reading of t as a UTC time so two
// readings can be compared without zone effects.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// ParseHHMM parses a "15:04" time of day. "15:04:05" is accepted and the
// seconds are dropped.
func ParseHHMM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh, mm, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return wd, nil
}
