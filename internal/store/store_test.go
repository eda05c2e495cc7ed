package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsql2/internal/dialect"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), DriverSQLite3, path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, dialect.SQLite(), s.Dialect())
	assert.True(t, s.IsSQLite())
}

func TestOpen_AppliesPragmas(t *testing.T) {
	for _, driver := range []string{DriverSQLite3, DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			s, err := Open(context.Background(), driver, filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			defer s.Close()

			assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
			assert.NoError(t, s.verifyPragma("synchronous", "1"))
			assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
			assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
			assert.NoError(t, s.verifyPragma("user_version", "2"))
			assert.Equal(t, 1, s.DB().Stats().MaxOpenConnections)
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(context.Background(), DriverSQLite3, path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), DriverSQLite3, path)
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 7")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), DriverSQLite3, path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestOpen_RejectsOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), DriverSQLite3, path)
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), DriverSQLite3, path)
	assert.ErrorContains(t, err, "has no _TEMPORAL_SPEC.table_key")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestOpen_DialectOverride(t *testing.T) {
	custom := dialect.SQLite()
	custom.Name = "custom"
	s, err := Open(context.Background(), DriverModernc, filepath.Join(t.TempDir(), "test.db"), WithDialect(custom))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "custom", s.Dialect().Name)

	bad := dialect.SQLite()
	bad.Placeholder = "%"
	_, err = Open(context.Background(), DriverModernc, filepath.Join(t.TempDir(), "bad.db"), WithDialect(bad))
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor(DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres(), d)

	d, err = DialectFor(DriverModernc)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite(), d)
}

func TestClose_Nil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
