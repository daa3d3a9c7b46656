// Package logging provides structured logging utilities for calendarassist.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "bookings.list")
//	logger.Info("listed bookings",
//	    logging.Partition("future"),
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("asking model",
//	    logging.UserHash(linkage.UserID),
//	    logging.Credential(apiKey))
//
// # Security Considerations
//
//   - User ids are hashed; they are bearer identifiers stored in cookies
//   - API keys and model credentials are never logged, only their length
package logging
