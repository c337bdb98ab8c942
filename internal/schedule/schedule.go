// Package schedule expands a site's recurring weekly business hours, defined
// in site-local wall-clock time, into concrete UTC intervals.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"uptime-report-backend/internal/parse"
)

// Day of week as stored in business-hour rules. Monday is 0.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Rule is one weekly open-hours entry for a site. End is exclusive.
type Rule struct {
	SiteID    string
	DayOfWeek int
	Start     parse.Clock
	End       parse.Clock
}

// Interval is a half-open UTC range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval, or zero when it is empty.
func (iv Interval) Duration() time.Duration {
	if !iv.End.After(iv.Start) {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Intersect returns the overlap of two intervals. The result is empty when
// they do not overlap.
func (iv Interval) Intersect(other Interval) Interval {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return Interval{Start: start, End: start}
	}
	return Interval{Start: start, End: end}
}

// MalformedRuleError reports an unparseable time of day in a stored rule. The
// rule returned alongside it uses the full-day bound in place of the bad value.
type MalformedRuleError struct {
	SiteID string
	Field  string
	Value  string
	Err    error
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("site %s: malformed %s %q: %v", e.SiteID, e.Field, e.Value, e.Err)
}

func (e *MalformedRuleError) Unwrap() error {
	return e.Err
}

// RuleFromStrings builds a rule from stored values. Empty bounds default to
// the full day. A bound that fails to parse also falls back to the full-day
// value and the first such failure is returned as a *MalformedRuleError.
func RuleFromStrings(siteID string, dayOfWeek int, start, end string) (Rule, error) {
	rule := Rule{SiteID: siteID, DayOfWeek: dayOfWeek, Start: parse.StartOfDay, End: parse.EndOfDay}
	var firstErr error

	if start != "" {
		c, err := parse.ParseClock(start)
		if err != nil {
			firstErr = &MalformedRuleError{SiteID: siteID, Field: "start_time_local", Value: start, Err: err}
		} else {
			rule.Start = c
		}
	}
	if end != "" {
		c, err := parse.ParseClock(end)
		if err != nil {
			if firstErr == nil {
				firstErr = &MalformedRuleError{SiteID: siteID, Field: "end_time_local", Value: end, Err: err}
			}
		} else {
			rule.End = c
		}
	}
	return rule, firstErr
}

// Weekday maps a Go weekday onto the rule enumeration.
func Weekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Resolve returns the business windows of rules for every local calendar day
// touching [spanStart, spanEnd], widened by one day on each side so windows
// crossing the span boundary are included. Overlapping windows are returned
// as they are; an empty rule set yields no windows.
func Resolve(rules []Rule, loc *time.Location, spanStart, spanEnd time.Time) []Interval {
	if len(rules) == 0 || spanEnd.Before(spanStart) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[int][]Rule, 7)
	for _, r := range rules {
		byDay[r.DayOfWeek] = append(byDay[r.DayOfWeek], r)
	}

	first := localMidnight(spanStart, loc).AddDate(0, 0, -1)
	last := localMidnight(spanEnd, loc).AddDate(0, 0, 1)

	var windows []Interval
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, r := range byDay[Weekday(day.Weekday())] {
			start := r.Start.On(day, loc).UTC()
			end := r.End.On(day, loc).UTC()
			if !end.After(start) {
				continue
			}
			windows = append(windows, Interval{Start: start, End: end})
		}
	}

	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Start.Equal(windows[j].Start) {
			return windows[i].End.Before(windows[j].End)
		}
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
