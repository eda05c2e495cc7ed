// Package resultset decodes the rows of a translated TSQL2 query.
//
// A translated query returns physical columns: user expressions, the begin
// and end of every period, and the hidden valid-time columns the translator
// appends. A ResultSet reads those rows through the query's Layout and
// exposes the logical schema instead:
//
//   - a period is one column rendered "<begin> - <end>", with NOW for an
//     open end and NULL for an empty period
//   - an event is one column holding its instant
//   - system columns (_VTS, _VTE, _TTS, _TTE and the implicit _VTS__n
//     aliases) are hidden; reading them fails with RestrictedColumnError
//     unless the set was opened WithDebug
//
// Closing the set runs the owner's teardown exactly once, which is how the
// temporary tables of a coalescing query are dropped after the rows have
// been consumed.
package resultset
