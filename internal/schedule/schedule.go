// Package schedule resolves which class period is running at a given instant.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
)

// Resolver answers "which period is running right now" from the timetable.
type Resolver struct {
	timetable store.TimetableStore
}

// NewResolver creates a resolver backed by the given timetable store.
func NewResolver(timetable store.TimetableStore) *Resolver {
	return &Resolver{timetable: timetable}
}

// Weekday converts a time to the timetable's weekday numbering, 0=Monday
// through 6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Covers reports whether the entry's time window contains the given instant.
// The start bound is inclusive, the end bound exclusive. Times compare as
// zero-padded HH:MM strings, which orders the same as the clock.
func Covers(entry store.TimetableEntry, t time.Time) bool {
	if entry.Weekday != Weekday(t) {
		return false
	}
	clock := t.Format("15:04")
	return entry.Start <= clock && clock < entry.End
}

// CurrentPeriod returns the period running at the given instant, or nil when
// no period is scheduled. When entries overlap, the first match in the
// store's (start time, class) order wins.
func (r *Resolver) CurrentPeriod(ctx context.Context, t time.Time) (*store.TimetableEntry, error) {
	entries, err := r.timetable.EntriesForWeekday(ctx, Weekday(t))
	if err != nil {
		return nil, fmt.Errorf("failed to load timetable: %w", err)
	}

	for i := range entries {
		if Covers(entries[i], t) {
			return &entries[i], nil
		}
	}
	return nil, nil
}
