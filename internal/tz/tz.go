// Package tz resolves site time zones and converts instants between a site's
// local wall clock and the UTC reference frame used by every computation.
package tz

import (
	"fmt"
	"sync"
	"time"
)

// DefaultZone is used for sites without a time zone and for zone names that
// cannot be loaded.
const DefaultZone = "America/Chicago"

// InvalidZoneError reports a zone name that could not be loaded. The location
// returned alongside it is the default zone, so callers may log and continue.
type InvalidZoneError struct {
	Name string
	Err  error
}

func (e *InvalidZoneError) Error() string {
	return fmt.Sprintf("invalid time zone %q, using %s: %v", e.Name, DefaultZone, e.Err)
}

func (e *InvalidZoneError) Unwrap() error {
	return e.Err
}

// zone is a memoised lookup. err is set for names that failed to load, in
// which case loc is the fallback.
type zone struct {
	loc *time.Location
	err error
}

var (
	mu    sync.RWMutex
	zones = map[string]zone{}
)

// Load returns the location for name. An empty name yields the default zone.
// An unknown name also yields the default zone together with an
// *InvalidZoneError. Both outcomes are memoised.
func Load(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}

	mu.RLock()
	z, ok := zones[name]
	mu.RUnlock()
	if ok {
		return z.loc, z.err
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		fallback, ferr := defaultLocation()
		if ferr != nil {
			fallback = time.UTC
		}
		z = zone{loc: fallback, err: &InvalidZoneError{Name: name, Err: err}}
	} else {
		z = zone{loc: loc}
	}

	mu.Lock()
	zones[name] = z
	mu.Unlock()
	return z.loc, z.err
}

func defaultLocation() (*time.Location, error) {
	mu.RLock()
	z, ok := zones[DefaultZone]
	mu.RUnlock()
	if ok {
		return z.loc, z.err
	}
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	zones[DefaultZone] = zone{loc: loc}
	mu.Unlock()
	return loc, nil
}

// ToReference returns t in the reference frame (UTC).
func ToReference(t time.Time) time.Time {
	return t.UTC()
}

// ToLocal returns t on the wall clock of loc. The instant is unchanged.
func ToLocal(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}
