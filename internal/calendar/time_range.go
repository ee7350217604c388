package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidClockTime = errors.New("invalid time of day")
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// WindowOf returns [start, start+duration).
func WindowOf(start time.Time, duration time.Duration) (TimeRange, error) {
	if duration <= 0 {
		return TimeRange{}, ErrInvalidDuration
	}
	if start.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: start.Add(duration)}, nil
}

// ParseWindow builds a window from a local date ("2006-01-02"), a local time
// of day ("15:04") and a length in minutes. The result is expressed in UTC.
func ParseWindow(date, clock string, durationMin int, loc *time.Location) (TimeRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	c, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, clock)
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
	tr, err := WindowOf(start, time.Duration(durationMin)*time.Minute)
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{Start: tr.Start.UTC(), End: tr.End.UTC()}, nil
}

// Overlaps reports whether two half-open ranges intersect.
// Ranges that only touch at an endpoint do not overlap.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	// [a.Start, a.End) и [b.Start, b.End) пересекаются,
	// если a.Start < b.End && b.Start < a.End
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

func (tr TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339))
}

// HasOverlap проверяет, пересекается ли newRange с existing, и возвращает
// все пересечения.
func HasOverlap(newRange TimeRange, existing []TimeRange) (bool, []TimeRange) {
	var conflicts []TimeRange

	for _, tr := range existing {
		if newRange.Overlaps(tr) {
			conflicts = append(conflicts, tr)
		}
	}

	return len(conflicts) > 0, conflicts
}

// DateOf returns the calendar day of t in loc, as midnight UTC. Dates built
// this way compare equal in storage regardless of the server time zone.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateOf(a, loc).Equal(DateOf(b, loc))
}
