package dialect

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "sqlite"},
		{"sqlite3", "sqlite"},
		{"SQLite", "sqlite"},
		{"pgx", "postgres"},
		{"postgresql", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Name)
			assert.NoError(t, cfg.Validate())
		})
	}

	_, err := ByName("oracle")
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	cfg := SQLite()
	assert.Equal(t, `"emp"`, cfg.QuoteIdent("emp"))
	assert.Equal(t, `"a""b"`, cfg.QuoteIdent(`a"b`))
}

func TestIdent(t *testing.T) {
	cfg := SQLite()
	assert.Equal(t, "emp", cfg.Ident("emp"))
	assert.Equal(t, "_VTS", cfg.Ident("_VTS"))
	assert.Equal(t, `"line item"`, cfg.Ident("line item"))
	assert.Equal(t, `public."line item"`, cfg.Ident("public.line item"))
	assert.Equal(t, `"1st"`, cfg.Ident("1st"))

	cfg.Quote = "`"
	assert.Equal(t, "`a``b c`", cfg.Ident("a`b c"))
}

func TestRebind(t *testing.T) {
	query := "SELECT x FROM t WHERE a = ? AND b = '?' AND c = ?"

	assert.Equal(t, query, SQLite().Rebind(query))
	assert.Equal(t, "SELECT x FROM t WHERE a = $1 AND b = '?' AND c = $2", Postgres().Rebind(query))
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "postgres.cue"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Name)
	assert.Equal(t, "BIGINT", cfg.BigInt)
	assert.Equal(t, "$", cfg.Placeholder)
	assert.Equal(t, "TEXT", cfg.Text, "omitted fields take schema defaults")
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "minimal.cue"))
	require.NoError(t, err)

	want := SQLite()
	want.Name = "embedded"
	assert.Equal(t, want, cfg)
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "bad_placeholder.cue"))
	require.Error(t, err)
	var le *LoadError
	assert.True(t, errors.As(err, &le))

	_, err = LoadFile(filepath.Join("testdata", "missing.cue"))
	assert.Error(t, err)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'O''Brien'", SQLite().Literal("O'Brien"))
}
