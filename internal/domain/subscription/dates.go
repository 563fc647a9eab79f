package subscription

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock supplies the current time; the lifecycle engine only reads its date.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// DateOf drops the time of day, keeping the calendar date t has in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date according to c.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// EndDate is start plus the plan duration in whole days.
func EndDate(start time.Time, durationDays int) time.Time {
	return DateOf(start).AddDate(0, 0, durationDays)
}

// ParseDate parses a YYYY-MM-DD string as a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
