package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClock(t *testing.T) {
	mock := MockClock(t, "2024-06-01 12:00:00")
	assert.Equal(t, "2024-06-01 12:00:00", mock.Now().UTC().Format("2006-01-02 15:04:05"))

	next := Advance(mock, time.Hour)
	assert.Equal(t, "2024-06-01 13:00:00", next.String())
}

func TestOpenSQLite(t *testing.T) {
	db := OpenSQLite(t)
	_, err := db.Exec("CREATE TABLE t (a INTEGER, b TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO t VALUES (1, 'x'), (2, NULL)")
	require.NoError(t, err)

	rows := QueryStrings(t, db, "SELECT a, b FROM t ORDER BY a")
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "NULL"}}, rows)
}
