// Package session runs TSQL2 statements against a database.
//
// A Session parses a statement, translates it against the catalog and runs
// the resulting physical statements as one atomic group on a pinned
// connection. Queries return a resultset.ResultSet that decodes period
// columns and hides system columns.
package session
