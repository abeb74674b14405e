// Package clock provides the household clock. Day boundaries are computed in
// the configured timezone rather than on each device.
package clock

import "time"

// DayLayout is the format of day stamps such as last_reset_date.
const DayLayout = "2006-01-02"

type Clock struct {
	now func() time.Time
	loc *time.Location
}

func New(loc *time.Location) Clock {
	return WithNow(time.Now, loc)
}

// WithNow returns a clock backed by now, used by tests to pin time.
func WithNow(now func() time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: now, loc: loc}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Today returns the current day stamp.
func (c Clock) Today() string {
	return c.Now().Format(DayLayout)
}

// DayStamp formats t as a day stamp in the clock's timezone.
func (c Clock) DayStamp(t time.Time) string {
	return t.In(c.Location()).Format(DayLayout)
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
