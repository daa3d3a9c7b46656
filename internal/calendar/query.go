package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Partition selects which side of "now" a query returns.
type Partition string

const (
	PartitionFuture Partition = "future"
	PartitionPast   Partition = "past"
)

const (
	// DefaultLimit is used when a caller does not ask for a specific count.
	DefaultLimit = 5
	// MaxLimit is the largest accepted limit.
	MaxLimit = 50

	// WindowSpan is the look-ahead or look-back distance from "now".
	WindowSpan = 30 * 24 * time.Hour

	// The gateway does not filter by direction, so more events than the
	// limit are requested.
	overfetchFactor = 4
	maxFetch        = 250
)

// ErrInvalidQuery is returned for an unknown partition or an out-of-range limit.
var ErrInvalidQuery = errors.New("invalid query")

// ParsePartition parses a partition name. An empty string means future.
func ParsePartition(s string) (Partition, error) {
	switch p := Partition(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PartitionFuture, nil
	case PartitionFuture, PartitionPast:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown partition %q (want %q or %q)", ErrInvalidQuery, s, PartitionFuture, PartitionPast)
	}
}

// ParseLimit parses a limit. An empty string means DefaultLimit.
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: limit %q is not a number", ErrInvalidQuery, s)
	}
	return n, nil
}

// Query is one list-bookings request.
type Query struct {
	Partition Partition
	Limit     int
}

// Validate checks the partition and the 1..MaxLimit range.
func (q Query) Validate() error {
	if q.Partition != PartitionFuture && q.Partition != PartitionPast {
		return fmt.Errorf("%w: unknown partition %q", ErrInvalidQuery, q.Partition)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidQuery, MaxLimit, q.Limit)
	}
	return nil
}

// Includes reports whether an event starting at start belongs to the
// partition: start >= now for future, start < now for past.
func (p Partition) Includes(start, now time.Time) bool {
	if p == PartitionPast {
		return start.Before(now)
	}
	return !start.Before(now)
}

// Window is the time range sent to the gateway.
type Window struct {
	Min time.Time
	Max time.Time
}

// WindowFor returns [now, now+30d] for future and [now-30d, now] for past.
func WindowFor(p Partition, now time.Time) Window {
	if p == PartitionPast {
		return Window{Min: now.Add(-WindowSpan), Max: now}
	}
	return Window{Min: now, Max: now.Add(WindowSpan)}
}

// FetchSize is the number of raw events requested for a limit.
func FetchSize(limit int) int {
	return min(limit*overfetchFactor, maxFetch)
}
