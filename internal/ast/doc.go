// Package ast defines the typed syntax tree of the TSQL2 dialect.
//
// The tree is immutable once built by the parser. Statements and expressions
// are sealed interfaces: only types in this package implement them, which lets
// the translator switch over them exhaustively. Every node carries the Span of
// source text it was parsed from so that untouched fragments can be re-emitted
// verbatim.
package ast
