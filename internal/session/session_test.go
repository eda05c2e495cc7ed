package session

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsql2/internal/resultset"
	"github.com/roach88/tsql2/internal/testutil"
	"github.com/roach88/tsql2/internal/translate"
)

func openSession(t *testing.T, opts ...Option) (*Session, *clock.Mock) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	mock := testutil.MockClock(t, "2024-06-01 12:00:00")
	opts = append([]Option{WithClock(mock), WithLogger(testutil.DiscardLogger())}, opts...)
	s, err := Open(context.Background(), db, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func mustExec(t *testing.T, s *Session, text string) *translate.Result {
	t.Helper()
	res, err := s.Exec(context.Background(), text)
	require.NoError(t, err, text)
	return res
}

func queryStrings(t *testing.T, s *Session, text string) [][]string {
	t.Helper()
	rs, err := s.Query(context.Background(), text)
	require.NoError(t, err, text)
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		row, err := rs.Strings()
		require.NoError(t, err)
		out = append(out, row)
	}
	require.NoError(t, rs.Err())
	require.NoError(t, rs.Close())
	return out
}

func TestSession_StateDelete(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (id INT, name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES (1, 'a') VALID PERIOD [2000-01-01 - 2005-01-01]")
	res := mustExec(t, s, "DELETE FROM t VALID PERIOD [2002-01-01 - 2003-01-01]")
	assert.Len(t, res.Statements, 4)

	assert.Equal(t, [][]string{
		{"1", "a", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
		{"1", "a", "2003-01-01 00:00:00 - 2005-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT * FROM t ORDER BY VALID(t)"))
}

func TestSession_OpenEndedPeriodShowsNow(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - FOREVER]")

	assert.Equal(t, [][]string{
		{"a", "2000-01-01 00:00:00 - NOW"},
	}, queryStrings(t, s, "SELECT name FROM t"))
}

func TestSession_FailedGroupRollsBack(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE s (id INT, amount INT NOT NULL) AS VALID STATE")
	mustExec(t, s, "INSERT INTO s VALUES (1, 10) VALID PERIOD [2000-01-01 - 2010-01-01]")

	// The head and tail copies succeed; the clamped UPDATE then violates
	// NOT NULL and the copies must be undone.
	_, err := s.Exec(context.Background(), "UPDATE s SET amount = NULL VALID PERIOD [2002-01-01 - 2003-01-01] WHERE id = 1")
	require.Error(t, err)

	assert.Equal(t, [][]string{
		{"1", "10", "2000-01-01 00:00:00 - 2010-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT id, amount FROM s"))
}

func TestSession_ManualTransaction(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")

	require.NoError(t, s.SetAutoCommit(ctx, false))
	assert.False(t, s.AutoCommit())
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01]")
	assert.Len(t, queryStrings(t, s, "SELECT name FROM t"), 1)
	require.NoError(t, s.Rollback(ctx))
	assert.Empty(t, queryStrings(t, s, "SELECT name FROM t"))

	mustExec(t, s, "INSERT INTO t VALUES ('b') VALID PERIOD [2000-01-01 - 2001-01-01]")
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Rollback(ctx))
	assert.Equal(t, [][]string{
		{"b", "2000-01-01 00:00:00 - 2001-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT name FROM t"))

	mustExec(t, s, "INSERT INTO t VALUES ('c') VALID PERIOD [2000-01-01 - 2001-01-01]")
	require.NoError(t, s.SetAutoCommit(ctx, true))
	assert.Len(t, queryStrings(t, s, "SELECT name FROM t"), 2)
}

func TestSession_FailureDiscardsManualTransaction(t *testing.T) {
	s, _ := openSession(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10) NOT NULL) AS VALID STATE")

	require.NoError(t, s.SetAutoCommit(ctx, false))
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01]")
	_, err := s.Exec(ctx, "INSERT INTO t VALUES (NULL) VALID PERIOD [2000-01-01 - 2001-01-01]")
	require.Error(t, err)
	require.NoError(t, s.Commit(ctx))

	assert.Empty(t, queryStrings(t, s, "SELECT name FROM t"))
}

func TestSession_BitemporalHistory(t *testing.T) {
	s, mock := openSession(t)
	mustExec(t, s, "CREATE TABLE emp (name VARCHAR(20), salary INT, PRIMARY KEY (name)) AS VALID STATE AND TRANSACTION")
	mustExec(t, s, "INSERT INTO emp VALUES ('Ann', 100) VALID PERIOD [2000-01-01 - 2010-01-01]")

	testutil.Advance(mock, 24*time.Hour)
	mustExec(t, s, "UPDATE emp SET salary = 200 VALID PERIOD [2002-01-01 - 2003-01-01] WHERE name = 'Ann'")

	assert.Equal(t, [][]string{
		{"100", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
		{"200", "2002-01-01 00:00:00 - 2003-01-01 00:00:00"},
		{"100", "2003-01-01 00:00:00 - 2010-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT salary FROM emp ORDER BY VALID(emp)"))

	assert.Equal(t, [][]string{
		{"100", "2000-01-01 00:00:00 - 2010-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT salary FROM emp WHERE TRANSACTION(emp) PRECEDES DATE '2024-06-03'"))
}

func TestSession_Contains(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2008-01-01 - 2010-01-01]")
	mustExec(t, s, "INSERT INTO t VALUES ('b') VALID PERIOD [2000-01-01 - 2005-01-01]")

	assert.Equal(t, [][]string{
		{"a", "2008-01-01 00:00:00 - 2010-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT name FROM t WHERE VALID(t) CONTAINS DATE '2009-04-21'"))
}

func TestSession_HidesSystemColumns(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01]")

	rs, err := s.Query(context.Background(), "SELECT name FROM t")
	require.NoError(t, err)
	require.True(t, rs.Next())
	_, err = rs.ValueByLabel("_VTS__1")
	assert.True(t, resultset.IsRestrictedColumn(err))

	_, err = s.Exec(context.Background(), "DELETE FROM t")
	assert.ErrorIs(t, err, ErrResultOpen)
	require.NoError(t, rs.Close())

	mustExec(t, s, "DELETE FROM t")
}

func TestSession_HidesSelectedSystemColumns(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (id INT) AS VALID STATE AND TRANSACTION")
	mustExec(t, s, "INSERT INTO t VALUES (1) VALID PERIOD [2000-01-01 - 2001-01-01]")

	rs, err := s.Query(context.Background(), "SELECT id, _VTS, _TTE AS stamp FROM t")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "VALID"}, rs.Labels())

	require.True(t, rs.Next())
	for _, label := range []string{"_VTS", "_TTE", "stamp"} {
		_, err = rs.ValueByLabel(label)
		assert.True(t, resultset.IsRestrictedColumn(err), label)
	}
	_, err = rs.Value(2)
	assert.True(t, resultset.IsRestrictedColumn(err))

	v, err := rs.Value(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	require.NoError(t, rs.Close())

	assert.Equal(t, [][]string{
		{"1", "2000-01-01 00:00:00 - 2001-01-01 00:00:00"},
	}, queryStrings(t, s, "SELECT id, _VTS FROM t"))
}

func TestSession_Debug(t *testing.T) {
	s, _ := openSession(t, WithDebug(true))
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01]")

	rs, err := s.Query(context.Background(), "SELECT name FROM t")
	require.NoError(t, err)
	defer rs.Close()
	assert.Equal(t, []string{"name", "VALID", "_VTS__1", "_VTE__1"}, rs.Labels())
}

func TestSession_CoalescedQuery(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (name VARCHAR(10)) AS VALID STATE")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01]")
	mustExec(t, s, "INSERT INTO t VALUES ('a') VALID PERIOD [2001-01-01 - 2002-01-01]")

	want := [][]string{
		{"a", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
	}
	assert.Equal(t, want, queryStrings(t, s, "SELECT name FROM t(name)"))
	// The scratch table of the first query is gone; a second one starts clean.
	assert.Equal(t, want, queryStrings(t, s, "SELECT name FROM t(name)"))
}

func TestSession_TranslateIsDryRun(t *testing.T) {
	s, _ := openSession(t)
	mustExec(t, s, "CREATE TABLE t (id SURROGATE, name VARCHAR(10)) AS VALID STATE")

	res, err := s.Translate(context.Background(), "INSERT INTO t VALUES (NEW, 'a') VALID PERIOD [2000-01-01 - 2001-01-01]")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"INSERT INTO t (id, name, _VTS, _VTE) VALUES (1, 'a', 946684800, 978307200)",
	}, res.Statements)
	assert.Empty(t, queryStrings(t, s, "SELECT name FROM t"))

	// The surrogate drawn by the dry run was rolled back.
	res = mustExec(t, s, "INSERT INTO t VALUES (NEW, 'a') VALID PERIOD [2000-01-01 - 2001-01-01]")
	assert.Equal(t, "INSERT INTO t (id, name, _VTS, _VTE) VALUES (1, 'a', 946684800, 978307200)", res.Statements[0])
}

func TestSession_ExecScript(t *testing.T) {
	s, _ := openSession(t)
	results, err := s.ExecScript(context.Background(), `
		CREATE TABLE t (name VARCHAR(10)) AS VALID STATE;
		INSERT INTO t VALUES ('a') VALID PERIOD [2000-01-01 - 2001-01-01];
		INSERT INTO missing VALUES ('b');
		INSERT INTO t VALUES ('c') VALID PERIOD [2000-01-01 - 2001-01-01];
	`)
	assert.True(t, translate.IsUnknownTable(err), "%v", err)
	assert.Len(t, results, 2)
	assert.Len(t, queryStrings(t, s, "SELECT name FROM t"), 1)
}

func TestSession_Closed(t *testing.T) {
	s, _ := openSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Exec(context.Background(), "DROP TABLE t")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_QueryNeedsSelect(t *testing.T) {
	s, _ := openSession(t)
	_, err := s.Query(context.Background(), "DROP TABLE t")
	assert.True(t, translate.IsTranslationSyntax(err), "%v", err)
}
