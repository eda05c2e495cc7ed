package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Instant is a point in time: seconds since the Unix epoch, UTC.
type Instant int64

// Forever is the open end of a period, 10000-01-01 00:00:00 UTC.
const Forever Instant = 253402300800

// Layout is the rendering of an instant in results and generated SQL comments.
const Layout = "2006-01-02 15:04:05"

var instantPattern = regexp.MustCompile(
	`^(\d{4})(?:-(\d{1,2})(?:-(\d{1,2})(?:[ T](\d{1,2})(?::(\d{1,2})(?::(\d{1,2}))?)?)?)?)?$`)

// FromTime converts a wall-clock time to an Instant.
func FromTime(t time.Time) Instant {
	return Instant(t.Unix())
}

// ParseInstant parses YYYY[-MM[-DD[ HH[:MM[:SS]]]]] or FOREVER.
// Omitted fields take their lowest value.
func ParseInstant(text string) (Instant, error) {
	s := strings.TrimSpace(text)
	if strings.EqualFold(s, "FOREVER") {
		return Forever, nil
	}
	m := instantPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid date %q: expected YYYY[-MM[-DD[ HH[:MM[:SS]]]]]", text)
	}
	fields := [6]int{0, 1, 1, 0, 0, 0}
	for i := 1; i < len(m); i++ {
		if m[i] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i])
		if err != nil {
			return 0, fmt.Errorf("invalid date %q: %w", text, err)
		}
		fields[i-1] = v
	}
	if fields[1] < 1 || fields[1] > 12 || fields[2] < 1 || fields[2] > 31 ||
		fields[3] > 23 || fields[4] > 59 || fields[5] > 59 {
		return 0, fmt.Errorf("invalid date %q: field out of range", text)
	}
	t := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, time.UTC)
	// time.Date normalises 2001-02-31 to March 3rd.
	if t.Day() != fields[2] || int(t.Month()) != fields[1] {
		return 0, fmt.Errorf("invalid date %q: no such day", text)
	}
	return FromTime(t), nil
}

// Add shifts the instant by n units of scale. Forever is absorbing.
func (i Instant) Add(n int64, s Scale) Instant {
	if i == Forever {
		return Forever
	}
	return i + Instant(n*s.Chronons())
}

// Time returns the instant as a UTC time.
func (i Instant) Time() time.Time {
	return time.Unix(int64(i), 0).UTC()
}

// String renders the instant as "YYYY-MM-DD HH:MM:SS", or FOREVER.
func (i Instant) String() string {
	if i >= Forever {
		return "FOREVER"
	}
	return i.Time().Format(Layout)
}
