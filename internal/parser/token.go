package parser

import "fmt"

// TokenType classifies lexical tokens.
type TokenType int

const (
	EOF TokenType = iota
	IDENT
	QUOTED_IDENT
	NUMBER
	STRING
	DATETIME
	OPERATOR
	COMMA
	DOT
	SEMICOLON
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	INVALID
)

var tokenNames = map[TokenType]string{
	EOF:          "end of input",
	IDENT:        "identifier",
	QUOTED_IDENT: "quoted identifier",
	NUMBER:       "number",
	STRING:       "string",
	DATETIME:     "date literal",
	OPERATOR:     "operator",
	COMMA:        "','",
	DOT:          "'.'",
	SEMICOLON:    "';'",
	LPAREN:       "'('",
	RPAREN:       "')'",
	LBRACKET:     "'['",
	RBRACKET:     "']'",
	INVALID:      "invalid character",
}

func (t TokenType) String() string {
	if n, ok := tokenNames[t]; ok {
		return n
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexeme. Value is the unquoted text for strings and quoted
// identifiers; Pos and End are byte offsets into the source.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// reserved words never taken as an implicit alias.
var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true, "CROSS": true,
	"ON": true, "AND": true, "OR": true, "NOT": true, "AS": true, "SET": true,
	"VALID": true, "VALUES": true, "UNION": true, "INTO": true, "ASC": true,
	"DESC": true, "IS": true, "IN": true, "LIKE": true, "BETWEEN": true,
	"PRECEDES": true, "MEETS": true, "OVERLAPS": true, "CONTAINS": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"SNAPSHOT": true, "DISTINCT": true, "ALL": true,
}
