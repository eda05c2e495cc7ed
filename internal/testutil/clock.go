package testutil

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/tsql2/internal/temporal"
)

// MockClock returns a mock clock set to at, which is parsed like a TSQL2
// date literal ("2024-06-01 12:00:00").
//
// Tests that translate statements use it so that NOW and the transaction-time
// columns are reproducible.
func MockClock(t testing.TB, at string) *clock.Mock {
	t.Helper()
	instant, err := temporal.ParseInstant(at)
	if err != nil {
		t.Fatalf("MockClock(%q): %v", at, err)
	}
	mock := clock.NewMock()
	mock.Set(instant.Time())
	return mock
}

// Advance moves the mock clock forward and returns the new instant.
func Advance(mock *clock.Mock, d time.Duration) temporal.Instant {
	mock.Add(d)
	return temporal.FromTime(mock.Now())
}

// Instant parses a date literal or fails the test.
func Instant(t testing.TB, text string) temporal.Instant {
	t.Helper()
	i, err := temporal.ParseInstant(text)
	if err != nil {
		t.Fatalf("Instant(%q): %v", text, err)
	}
	return i
}
