package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the per-engine SQL vocabulary used when generating statements.
type Config struct {
	// Name identifies the dialect in logs and configuration.
	Name string `json:"name"`
	// BigInt is the 64-bit integer type used for temporal and surrogate columns.
	BigInt string `json:"bigint"`
	// Text is the character type used by the catalog tables.
	Text string `json:"text"`
	// Quote is the identifier quote character.
	Quote string `json:"quote"`
	// Placeholder is "?" for positional or "$" for numbered parameters.
	Placeholder string `json:"placeholder"`
	// TempTable is the statement prefix that creates a session-local table.
	TempTable string `json:"temp_table"`
}

// SQLite returns the dialect for mattn/go-sqlite3 and modernc.org/sqlite.
func SQLite() Config {
	return Config{
		Name:        "sqlite",
		BigInt:      "INTEGER",
		Text:        "TEXT",
		Quote:       `"`,
		Placeholder: "?",
		TempTable:   "CREATE TEMP TABLE",
	}
}

// Postgres returns the dialect for PostgreSQL through pgx.
func Postgres() Config {
	return Config{
		Name:        "postgres",
		BigInt:      "BIGINT",
		Text:        "TEXT",
		Quote:       `"`,
		Placeholder: "$",
		TempTable:   "CREATE TEMPORARY TABLE",
	}
}

// ByName resolves a preset name.
func ByName(name string) (Config, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite(), nil
	case "postgres", "postgresql", "pgx":
		return Postgres(), nil
	}
	return Config{}, fmt.Errorf("unknown dialect %q", name)
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("dialect: name is required")
	case c.BigInt == "":
		return fmt.Errorf("dialect %s: bigint type is required", c.Name)
	case c.Text == "":
		return fmt.Errorf("dialect %s: text type is required", c.Name)
	case len(c.Quote) != 1:
		return fmt.Errorf("dialect %s: quote must be a single character, got %q", c.Name, c.Quote)
	case c.Placeholder != "?" && c.Placeholder != "$":
		return fmt.Errorf("dialect %s: placeholder must be ? or $, got %q", c.Name, c.Placeholder)
	case c.TempTable == "":
		return fmt.Errorf("dialect %s: temp_table is required", c.Name)
	}
	return nil
}

// QuoteIdent quotes an identifier, doubling embedded quote characters.
func (c Config) QuoteIdent(name string) string {
	q := c.Quote
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// Ident renders a table or column name. Plain names are left as they are;
// anything else, such as a name read from a quoted identifier, is quoted.
// Each part of a schema-qualified name is treated on its own.
func (c Config) Ident(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if !plainIdent.MatchString(part) {
			parts[i] = c.QuoteIdent(part)
		}
	}
	return strings.Join(parts, ".")
}

// Literal renders s as a string literal.
func (c Config) Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside string literals and quoted identifiers are left alone.
func (c Config) Rebind(query string) string {
	if c.Placeholder != "$" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	var inQuote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case inQuote != 0:
			if ch == inQuote {
				inQuote = 0
			}
		case ch == '\'' || ch == '"':
			inQuote = ch
		case ch == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}
