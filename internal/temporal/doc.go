// Package temporal holds the value types of the bitemporal model and the
// evaluator that turns TSQL2 time literals into them.
//
// An Instant is a signed count of seconds since the Unix epoch. Periods are
// half-open [Begin, End) intervals of instants; an End equal to Forever means
// the period is still open. Scales (SECOND..YEAR) are fixed chronon counts and
// are only used for NOW ± n SCALE arithmetic and CAST(... AS INTERVAL scale).
//
// Relative expressions are bound when a statement is translated, never when
// it executes: an Evaluator carries the "now" of the translation that created
// it.
package temporal
