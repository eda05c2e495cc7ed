package temporal

import (
	"fmt"
	"strings"
)

// Scale is the granularity of a valid-time axis or of an interval.
type Scale int

const (
	// ScaleNone marks an unset scale; callers fall back to Second.
	ScaleNone Scale = iota
	Second
	Minute
	Hour
	Day
	Week
	Month
	Year
)

var scaleNames = map[Scale]string{
	Second: "SECOND",
	Minute: "MINUTE",
	Hour:   "HOUR",
	Day:    "DAY",
	Week:   "WEEK",
	Month:  "MONTH",
	Year:   "YEAR",
}

var scaleChronons = map[Scale]int64{
	Second: 1,
	Minute: 60,
	Hour:   3600,
	Day:    86400,
	Week:   7 * 86400,
	Month:  30 * 86400,
	Year:   365 * 86400,
}

// ParseScale resolves a scale keyword. The plural form (DAYS) is accepted.
// An empty string yields ScaleNone.
func ParseScale(s string) (Scale, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return ScaleNone, nil
	}
	name = strings.TrimSuffix(name, "S")
	for sc, n := range scaleNames {
		if n == name {
			return sc, nil
		}
	}
	return ScaleNone, &InvalidScaleError{Scale: s}
}

// Chronons returns the number of seconds in one unit of the scale.
// ScaleNone counts as Second.
func (s Scale) Chronons() int64 {
	if c, ok := scaleChronons[s]; ok {
		return c
	}
	return 1
}

// OrDefault returns s, or def when s is unset.
func (s Scale) OrDefault(def Scale) Scale {
	if s == ScaleNone {
		return def
	}
	return s
}

func (s Scale) String() string {
	if n, ok := scaleNames[s]; ok {
		return n
	}
	return "NONE"
}

// InvalidScaleError reports an unknown scale keyword.
type InvalidScaleError struct {
	Scale string
}

func (e *InvalidScaleError) Error() string {
	return fmt.Sprintf("invalid scale %q: must be one of SECOND, MINUTE, HOUR, DAY, WEEK, MONTH, YEAR", e.Scale)
}
