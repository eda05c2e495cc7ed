// Package catalog stores and serves temporal table descriptors.
//
// Three physical tables hold the metadata:
//
//	_TEMPORAL_SPEC   one row per table: folded name, valid/transaction support, scale, vacuum cutoff
//	_SURROGATE       one row per SURROGATE column: the next value to hand out
//	_TEMPORAL_KEY    the declared logical primary key, one row per column
//
// A Catalog is an explicitly owned value. Its optional LRU cache is safe for
// concurrent readers; surrogate allocation, vacuuming and cache mutation are
// serialised on the catalog mutex. All reads and writes go through a Querier
// so they join the caller's transaction.
//
// Every successful Lookup of a table with transaction time vacuums versions
// whose _TTE is at or before the table's cutoff. A vacuum failure does not
// fail the lookup: the descriptor is returned together with a *VacuumError.
// Inside a transaction the vacuum runs under a savepoint.
package catalog
