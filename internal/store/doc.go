// Package store opens the databases TSQL2 sessions run against.
//
// Three drivers are registered: "sqlite3" (mattn/go-sqlite3, the default),
// "sqlite" (modernc.org/sqlite, no cgo) and "pgx" (PostgreSQL through
// jackc/pgx). Each driver implies a dialect unless one is given.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// SQLite pools hold a single connection. Temporary coalescing tables and the
// transaction of a statement group live on one connection, and SQLite has
// one writer anyway.
package store
