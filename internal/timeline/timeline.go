// Package timeline holds the ordered status observations of a single site.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the observed state of a site.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus accepts "active" or "inactive", case-insensitively.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Sample is one observation. Instant is in UTC.
type Sample struct {
	Instant time.Time
	Status  Status
}

// Timeline is a site's samples sorted by instant with at most one sample per
// instant.
type Timeline struct {
	samples []Sample
}

// New builds a timeline from samples given in ingestion order. The input is
// not modified. When two samples share an instant the later one in ingestion
// order wins.
func New(samples []Sample) Timeline {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Instant.Before(sorted[j].Instant)
	})

	out := sorted[:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Instant.Equal(s.Instant) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return Timeline{samples: out}
}

// Len returns the number of distinct samples.
func (tl Timeline) Len() int {
	return len(tl.samples)
}

// Samples returns the ordered samples. The slice must not be modified.
func (tl Timeline) Samples() []Sample {
	return tl.samples
}

// Range returns the samples whose instant lies in [start, end], both ends
// inclusive. The result shares storage with the timeline.
func (tl Timeline) Range(start, end time.Time) []Sample {
	if end.Before(start) {
		return nil
	}
	lo := sort.Search(len(tl.samples), func(i int) bool {
		return !tl.samples[i].Instant.Before(start)
	})
	hi := sort.Search(len(tl.samples), func(i int) bool {
		return tl.samples[i].Instant.After(end)
	})
	if lo >= hi {
		return nil
	}
	return tl.samples[lo:hi]
}

// Latest returns the most recent sample.
func (tl Timeline) Latest() (Sample, bool) {
	if len(tl.samples) == 0 {
		return Sample{}, false
	}
	return tl.samples[len(tl.samples)-1], true
}
