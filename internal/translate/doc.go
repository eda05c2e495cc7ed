// Package translate rewrites TSQL2 statements into plain SQL.
//
// A Translator turns one parsed statement into a Result: an ordered list of
// physical statements that must run, in order, inside one transaction, plus
// for queries the Layout that maps physical result columns back onto the
// logical temporal schema.
//
// Tables fall into four regimes by their temporal support:
//
//	snapshot     no temporal columns; statements pass through
//	state        valid time (_VTS, _VTE) or, for event tables, _VTS alone
//	transaction  transaction time (_TTS, _TTE)
//	bitemporal   both
//
// Sequenced DML (with a VALID period) splits the rows that straddle the
// period's bounds so that only the stated sub-interval is affected. The
// rewriting is set based: each case of the split becomes one statement over
// all matching rows. Transaction time is maintained by staging new versions
// with _TTE = Pending, closing the superseded versions at now, dropping
// versions whose transaction time became empty and finally publishing the
// staged rows with _TTE = Forever.
//
// All temporal constants, including NOW, are bound at translation time and
// inlined into the generated SQL as integers.
package translate
