// Package calendar implements the event query pipeline: it asks the tool
// gateway for the user's primary calendar events inside a 30-day window,
// tolerates the several encodings the gateway may use for the event list,
// keeps the events on the requested side of "now" and projects them to
// Booking records for display.
//
// Events are decoded into google.golang.org/api/calendar/v3 Event values, so
// the field names follow the Google Calendar API.
//
// Example usage:
//
//	svc := calendar.NewService(calendar.Config{
//		Endpoints: endpoints,
//		Invoker:   invoker,
//		Location:  time.Local,
//	})
//
//	bookings, err := svc.ListBookings(ctx, calendar.Query{
//		Partition: calendar.PartitionFuture,
//		Limit:     5,
//	}, linkage)
package calendar
