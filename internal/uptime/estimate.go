package uptime

import (
	"sort"
	"time"

	"uptime-report-backend/internal/schedule"
	"uptime-report-backend/internal/timeline"
)

// MergeIntervals returns the union of in as sorted, non-overlapping
// intervals. Touching intervals are coalesced and empty ones dropped.
func MergeIntervals(in []schedule.Interval) []schedule.Interval {
	sorted := make([]schedule.Interval, 0, len(in))
	for _, iv := range in {
		if iv.Duration() > 0 {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var merged []schedule.Interval
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Estimate integrates the site's observed status over the business windows
// inside [start, end].
//
// Each sample's status holds until the next sample; the last sample in range
// holds until end. Nothing is inferred before the first sample, and a range
// with fewer than two samples measures nothing.
func Estimate(tl timeline.Timeline, windows []schedule.Interval, start, end time.Time) (up, down time.Duration) {
	samples := tl.Range(start, end)
	if len(samples) < 2 {
		return 0, 0
	}
	merged := MergeIntervals(windows)
	if len(merged) == 0 {
		return 0, 0
	}

	query := schedule.Interval{Start: start, End: end}
	j := 0
	for i, s := range samples {
		segEnd := end
		if i+1 < len(samples) {
			segEnd = samples[i+1].Instant
		}
		seg := schedule.Interval{Start: s.Instant, End: segEnd}.Intersect(query)
		if seg.Duration() == 0 {
			continue
		}

		// Windows ending before this segment cannot overlap later ones either.
		for j < len(merged) && !merged[j].End.After(seg.Start) {
			j++
		}
		for k := j; k < len(merged) && merged[k].Start.Before(seg.End); k++ {
			d := seg.Intersect(merged[k]).Duration()
			if s.Status == timeline.StatusActive {
				up += d
			} else {
				down += d
			}
		}
	}
	return up, down
}
