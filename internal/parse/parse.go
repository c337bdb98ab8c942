package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts carrying an explicit zone or offset. Fractional seconds are accepted
// after the seconds field even though the layouts do not spell them out.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
}

// Layouts without zone information. These are read as UTC wall-clock time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Instant parses an observation timestamp and returns it in UTC. Timestamps
// without an offset are taken to already be UTC, not site-local time.
func Instant(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", raw)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

var (
	StartOfDay = Clock{}
	EndOfDay   = Clock{Hour: 23, Minute: 59, Second: 59}
)

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Offset is the duration since midnight on a day without transitions.
func (c Clock) Offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute + time.Duration(c.Second)*time.Second
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// On anchors c to the calendar date of day in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, c.Second, 0, loc)
}

// ParseClock parses "HH:MM:SS" or "HH:MM". Fractional seconds are dropped.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("invalid time of day, expected HH:MM:SS: %q", raw)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", raw)
	}

	second := 0
	if len(parts) == 3 {
		sec := parts[2]
		if i := strings.IndexByte(sec, '.'); i >= 0 {
			sec = sec[:i]
		}
		second, err = strconv.Atoi(sec)
		if err != nil || second < 0 || second > 59 {
			return Clock{}, fmt.Errorf("invalid second in %q", raw)
		}
	}

	return Clock{Hour: hour, Minute: minute, Second: second}, nil
}
