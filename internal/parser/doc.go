// Package parser turns TSQL2 text into the typed tree of package ast.
//
// The lexer keeps the original spelling and byte offsets of every token so
// that each node can recover its source text. Keywords are matched case
// insensitively. Unquoted date literals such as 2000-01-01 are lexed as one
// DATETIME token so that periods can be written PERIOD [2000-01-01 - 2005-01-01].
//
// The grammar covers the TSQL2 statement surface only: CREATE TABLE,
// DROP TABLE, INSERT, UPDATE, DELETE and SELECT with their temporal clauses.
package parser
