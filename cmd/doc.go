// Package cmd implements the command-line interface for calendarassist.
//
// This package provides the following commands:
//   - serve: Start the HTTP API (bookings, question answering, calendar connection)
//   - bookings: Print upcoming or past bookings for an existing connection
//   - version: Display version information
//
// Settings are read from flags, then from environment variables (a .env file
// in the working directory is loaded first), then from built-in defaults.
package cmd
