package calendar

import (
	"fmt"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

const (
	// TimeLayout renders a booking's start time.
	TimeLayout = "1/2/2006, 3:04:05 PM"

	// DefaultTitle replaces a missing event summary.
	DefaultTitle = "No Title"

	// UnknownDuration is shown when an event lacks a start or an end.
	UnknownDuration = "Unknown"
)

// Booking is the display projection of a calendar event.
type Booking struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Time        string   `json:"time"`
	Duration    string   `json:"duration"`
	Attendees   []string `json:"attendees"`
	Description string   `json:"description"`
	Summary     string   `json:"summary,omitempty"`
}

// NewBooking projects an event, rendering its start in loc.
func NewBooking(ev *calendar.Event, loc *time.Location) Booking {
	if loc == nil {
		loc = time.Local
	}

	b := Booking{
		ID:          ev.Id,
		Title:       ev.Summary,
		Duration:    FormatDuration(ev.Start, ev.End),
		Attendees:   []string{},
		Description: ev.Description,
	}
	if b.Title == "" {
		b.Title = DefaultTitle
	}
	if start, ok := EffectiveStart(ev); ok {
		b.Time = start.In(loc).Format(TimeLayout)
	}
	for _, a := range ev.Attendees {
		if a != nil && a.Email != "" {
			b.Attendees = append(b.Attendees, a.Email)
		}
	}
	return b
}

// FormatDuration renders the span between start and end as
// "N hour(s) M min(s)". Partial minutes are dropped and negative spans
// render as "0 mins".
func FormatDuration(start, end *calendar.EventDateTime) string {
	from, ok := parseEventTime(start)
	if !ok {
		return UnknownDuration
	}
	to, ok := parseEventTime(end)
	if !ok {
		return UnknownDuration
	}

	total := int(to.Sub(from) / time.Minute)
	if total < 0 {
		total = 0
	}
	hours, mins := total/60, total%60

	if hours == 0 {
		return plural(mins, "min")
	}
	parts := []string{plural(hours, "hour")}
	if mins > 0 {
		parts = append(parts, plural(mins, "min"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
