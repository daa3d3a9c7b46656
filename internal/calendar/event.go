package calendar

import (
	"slices"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

const allDayLayout = "2006-01-02"

// parseEventTime returns the instant of a start or end: the precise
// timestamp when present, else the all-day date (midnight UTC).
func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		t, err := time.Parse(allDayLayout, dt.Date)
		return t, err == nil
	}
	return time.Time{}, false
}

// EffectiveStart returns the event's effective start instant.
func EffectiveStart(ev *calendar.Event) (time.Time, bool) {
	if ev == nil {
		return time.Time{}, false
	}
	return parseEventTime(ev.Start)
}

// Select applies the partition filter, truncates to limit in arrival order
// and then sorts what is left: ascending for future, descending for past.
// Events without a parseable start are dropped.
func Select(events []*calendar.Event, p Partition, limit int, now time.Time) []*calendar.Event {
	type timed struct {
		ev    *calendar.Event
		start time.Time
	}

	kept := make([]timed, 0, min(len(events), limit))
	for _, ev := range events {
		if len(kept) == limit {
			break
		}
		start, ok := EffectiveStart(ev)
		if !ok || !p.Includes(start, now) {
			continue
		}
		kept = append(kept, timed{ev: ev, start: start})
	}

	slices.SortStableFunc(kept, func(a, b timed) int {
		if p == PartitionPast {
			return b.start.Compare(a.start)
		}
		return a.start.Compare(b.start)
	})

	out := make([]*calendar.Event, len(kept))
	for i, t := range kept {
		out[i] = t.ev
	}
	return out
}
