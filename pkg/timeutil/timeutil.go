// Package timeutil provides calendar-day helpers for streak tracking.
// Every study timestamp is normalized to a single reference zone before
// day boundaries are computed; the zone is configured at startup.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sync"
	"time"
)

var (
	mu        sync.RWMutex
	reference = time.UTC
)

// SetReference sets the reference zone used by Now and ToReference.
// A nil location resets it to UTC.
func SetReference(loc *time.Location) {
	mu.Lock()
	defer mu.Unlock()
	if loc == nil {
		loc = time.UTC
	}
	reference = loc
}

// Reference returns the current reference zone.
func Reference() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return reference
}

// LoadLocation resolves a zone name, falling back to UTC when the name is
// empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Now returns the current time in the reference zone.
func Now() time.Time {
	return time.Now().In(Reference())
}

// ToReference converts a time to the reference zone.
func ToReference(t time.Time) time.Time {
	return t.In(Reference())
}

// CalendarDaysBetween returns the signed number of calendar days from the
// date of `from` to the date of `to`, each read in its own location.
// Daylight-saving shifts do not affect the result.
func CalendarDaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
