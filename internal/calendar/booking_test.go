package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendar "google.golang.org/api/calendar/v3"
)

func at(dt string) *calendar.EventDateTime { return &calendar.EventDateTime{DateTime: dt} }
func on(d string) *calendar.EventDateTime  { return &calendar.EventDateTime{Date: d} }

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name       string
		start, end *calendar.EventDateTime
		want       string
	}{
		{name: "half hour", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T09:30:00Z"), want: "30 mins"},
		{name: "one minute", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T09:01:00Z"), want: "1 min"},
		{name: "zero", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T09:00:00Z"), want: "0 mins"},
		{name: "one hour", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T10:00:00Z"), want: "1 hour"},
		{name: "hour and a half", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T10:30:00Z"), want: "1 hour 30 mins"},
		{name: "hours and a minute", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T11:01:00Z"), want: "2 hours 1 min"},
		{name: "partial minute dropped", start: at("2025-03-10T09:00:00Z"), end: at("2025-03-10T09:10:59Z"), want: "10 mins"},
		{name: "mixed offsets", start: at("2025-03-10T09:00:00+01:00"), end: at("2025-03-10T09:00:00Z"), want: "1 hour"},
		{name: "all day", start: on("2025-03-10"), end: on("2025-03-11"), want: "24 hours"},
		{name: "negative span", start: at("2025-03-10T10:00:00Z"), end: at("2025-03-10T09:00:00Z"), want: "0 mins"},
		{name: "missing end", start: at("2025-03-10T09:00:00Z"), end: nil, want: UnknownDuration},
		{name: "missing start", start: nil, end: at("2025-03-10T09:00:00Z"), want: UnknownDuration},
		{name: "empty endpoint", start: &calendar.EventDateTime{}, end: at("2025-03-10T09:00:00Z"), want: UnknownDuration},
		{name: "unparseable", start: at("tomorrow"), end: at("2025-03-10T09:00:00Z"), want: UnknownDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.start, tt.end))
		})
	}
}

func TestNewBooking(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)

	ev := &calendar.Event{
		Id:          "evt-1",
		Summary:     "Design review",
		Description: "Quarterly roadmap",
		Start:       at("2025-03-10T15:04:05Z"),
		End:         at("2025-03-10T16:34:05Z"),
		Attendees: []*calendar.EventAttendee{
			{Email: "ana@example.com"},
			{Email: ""},
			{Email: "bo@example.com"},
		},
	}

	got := NewBooking(ev, loc)
	assert.Equal(t, Booking{
		ID:          "evt-1",
		Title:       "Design review",
		Time:        "3/10/2025, 10:04:05 AM",
		Duration:    "1 hour 30 mins",
		Attendees:   []string{"ana@example.com", "bo@example.com"},
		Description: "Quarterly roadmap",
	}, got)
}

func TestNewBooking_Defaults(t *testing.T) {
	got := NewBooking(&calendar.Event{Id: "evt-2", Start: on("2025-03-10")}, time.UTC)

	assert.Equal(t, DefaultTitle, got.Title)
	assert.Equal(t, "3/10/2025, 12:00:00 AM", got.Time)
	assert.Equal(t, UnknownDuration, got.Duration)
	assert.NotNil(t, got.Attendees)
	assert.Empty(t, got.Attendees)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.Summary)
}
