package catalog

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsql2/internal/temporal"
	"github.com/roach88/tsql2/internal/testutil"
)

func createTestCatalog(t *testing.T, opts ...Option) (*Catalog, *sql.DB, *clock.Mock) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	mock := testutil.MockClock(t, "2024-06-01 12:00:00")
	opts = append([]Option{WithClock(mock), WithLogger(testutil.DiscardLogger())}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background(), db))
	return c, db, mock
}

// registerTable creates a physical table and its catalog rows.
func registerTable(t *testing.T, c *Catalog, db *sql.DB, ddl string, d *TableDescriptor) {
	t.Helper()
	_, err := db.Exec(ddl)
	require.NoError(t, err)
	for _, stmt := range c.RegisterStatements(d) {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestInit_Idempotent(t *testing.T) {
	c, db, _ := createTestCatalog(t)
	require.NoError(t, c.Init(context.Background(), db))

	for _, table := range []string{"_TEMPORAL_SPEC", "_SURROGATE", "_TEMPORAL_KEY"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestLookup_RoundTrip(t *testing.T) {
	c, db, _ := createTestCatalog(t)
	registerTable(t, c, db,
		"CREATE TABLE emp (id INTEGER, name TEXT, _VTS INTEGER, _VTE INTEGER, _TTS INTEGER, _TTE INTEGER)",
		&TableDescriptor{
			Name:           "emp",
			Valid:          ValidState,
			ValidScale:     temporal.Day,
			Transaction:    TransactionState,
			VacuumCutoff:   -3600,
			VacuumRelative: true,
			Surrogates:     map[string]int64{"id": 1},
			Key:            []string{"name"},
		})

	d, err := c.Lookup(context.Background(), db, "EMP")
	require.NoError(t, err)
	assert.Equal(t, "emp", d.Name)
	assert.Equal(t, ValidState, d.Valid)
	assert.Equal(t, temporal.Day, d.ValidScale)
	assert.Equal(t, RegimeBitemporal, d.Regime())
	assert.True(t, d.VacuumRelative)
	assert.Equal(t, temporal.Instant(-3600), d.VacuumCutoff)
	assert.Equal(t, map[string]int64{"id": 1}, d.Surrogates)
	assert.Equal(t, []string{"name"}, d.Key)
	assert.Equal(t, []string{"id", "name"}, d.Columns)
	assert.True(t, d.IsSurrogate("ID"))
}

func TestLookup_UnknownTable(t *testing.T) {
	c, db, _ := createTestCatalog(t)

	_, err := c.Lookup(context.Background(), db, "missing")
	require.Error(t, err)
	assert.True(t, IsUnknownTable(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestLookup_VacuumsExpiredVersions(t *testing.T) {
	c, db, mock := createTestCatalog(t)
	now := temporal.FromTime(mock.Now())
	registerTable(t, c, db,
		"CREATE TABLE acct (n INTEGER, _TTS INTEGER, _TTE INTEGER)",
		&TableDescriptor{Name: "acct", Transaction: TransactionState, VacuumCutoff: -86400, VacuumRelative: true})

	_, err := db.Exec("INSERT INTO acct VALUES (1, ?, ?), (2, ?, ?), (3, ?, ?)",
		int64(now-10*86400), int64(now-2*86400), // closed two days ago: vacuumed
		int64(now-2*86400), int64(now-3600), // closed an hour ago: kept
		int64(now-3600), int64(temporal.Forever))
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), db, "acct")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2"}, {"3"}}, testutil.QueryStrings(t, db, "SELECT n FROM acct ORDER BY n"))

	// The relative cutoff moves with the clock.
	mock.Add(48 * time.Hour)
	_, err = c.Lookup(context.Background(), db, "acct")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"3"}}, testutil.QueryStrings(t, db, "SELECT n FROM acct ORDER BY n"))
}

func TestLookup_VacuumFailureKeepsDescriptor(t *testing.T) {
	c, db, _ := createTestCatalog(t)
	// Registered with transaction time but the physical table lacks _TTE.
	registerTable(t, c, db,
		"CREATE TABLE broken (n INTEGER)",
		&TableDescriptor{Name: "broken", Transaction: TransactionState})

	d, err := c.Lookup(context.Background(), db, "broken")
	require.Error(t, err)
	assert.True(t, IsVacuumError(err))
	require.NotNil(t, d)
	assert.Equal(t, "broken", d.Name)
}

// stmtRecorder runs statements in a transaction and remembers them.
type stmtRecorder struct {
	*sql.Tx
	stmts []string
}

func (r *stmtRecorder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.stmts = append(r.stmts, query)
	return r.Tx.ExecContext(ctx, query, args...)
}

func TestLookup_VacuumInTransactionUsesSavepoint(t *testing.T) {
	ctx := context.Background()
	c, db, _ := createTestCatalog(t)
	registerTable(t, c, db,
		"CREATE TABLE acct (n INTEGER, _TTS INTEGER, _TTE INTEGER)",
		&TableDescriptor{Name: "acct", Transaction: TransactionState})

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	rec := &stmtRecorder{Tx: tx}
	_, err = c.Lookup(ctx, rec, "acct")
	require.NoError(t, err)
	require.Len(t, rec.stmts, 3)
	assert.Equal(t, "SAVEPOINT tsql2_vacuum", rec.stmts[0])
	assert.Contains(t, rec.stmts[1], "DELETE FROM acct WHERE _TTE <= ")
	assert.Equal(t, "RELEASE SAVEPOINT tsql2_vacuum", rec.stmts[2])
	require.NoError(t, tx.Commit())

	// Outside a transaction there is nothing to protect.
	_, err = c.Lookup(ctx, db, "acct")
	require.NoError(t, err)
}

func TestLookup_VacuumFailureLeavesTransactionUsable(t *testing.T) {
	ctx := context.Background()
	c, db, _ := createTestCatalog(t)
	registerTable(t, c, db,
		"CREATE TABLE broken (n INTEGER)",
		&TableDescriptor{Name: "broken", Transaction: TransactionState})

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	rec := &stmtRecorder{Tx: tx}
	_, err = rec.ExecContext(ctx, "INSERT INTO broken VALUES (1)")
	require.NoError(t, err)

	d, err := c.Lookup(ctx, rec, "broken")
	assert.True(t, IsVacuumError(err))
	require.NotNil(t, d)
	require.Len(t, rec.stmts, 5)
	assert.Equal(t, "ROLLBACK TO SAVEPOINT tsql2_vacuum", rec.stmts[3])
	assert.Equal(t, "RELEASE SAVEPOINT tsql2_vacuum", rec.stmts[4])

	_, err = rec.ExecContext(ctx, "INSERT INTO broken VALUES (2)")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, [][]string{{"1"}, {"2"}}, testutil.QueryStrings(t, db, "SELECT n FROM broken ORDER BY n"))
}

func TestLookup_CacheAndInvalidate(t *testing.T) {
	c, db, _ := createTestCatalog(t, WithCache(8))
	registerTable(t, c, db, "CREATE TABLE t (a INTEGER)", &TableDescriptor{Name: "t"})

	first, err := c.Lookup(context.Background(), db, "t")
	require.NoError(t, err)
	first.Columns = append(first.Columns, "mutated")

	// Remove the catalog rows behind the cache's back.
	for _, stmt := range c.UnregisterStatements("t") {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	cached, err := c.Lookup(context.Background(), db, "T")
	require.NoError(t, err, "served from cache")
	assert.Equal(t, []string{"a"}, cached.Columns, "cached descriptors are copies")

	c.Invalidate("t")
	_, err = c.Lookup(context.Background(), db, "t")
	assert.True(t, IsUnknownTable(err))
}

func TestLookup_FoldsNonASCIINames(t *testing.T) {
	c, db, _ := createTestCatalog(t)
	registerTable(t, c, db, `CREATE TABLE "émp" ("numéro" INTEGER, nom TEXT)`,
		&TableDescriptor{Name: "émp", Surrogates: map[string]int64{"numéro": 1}, Key: []string{"nom"}})

	ctx := context.Background()
	d, err := c.Lookup(ctx, db, "ÉMP")
	require.NoError(t, err)
	assert.Equal(t, "émp", d.Name)
	assert.Equal(t, []string{"numéro", "nom"}, d.Columns)

	v, err := c.NextSurrogate(ctx, db, "ÉMP", "NUMÉRO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, [][]string{{"2"}}, testutil.QueryStrings(t, db, "SELECT next_value FROM _SURROGATE"))

	for _, stmt := range c.UnregisterStatements("Émp") {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	for _, table := range []string{"_TEMPORAL_SPEC", "_SURROGATE", "_TEMPORAL_KEY"} {
		assert.Equal(t, [][]string{{"0"}}, testutil.QueryStrings(t, db, "SELECT COUNT(*) FROM "+table), table)
	}
}

func TestNextSurrogate_Monotonic(t *testing.T) {
	c, db, _ := createTestCatalog(t, WithCache(8))
	registerTable(t, c, db, "CREATE TABLE t (id INTEGER, v TEXT)",
		&TableDescriptor{Name: "t", Surrogates: map[string]int64{"id": 1}})

	ctx := context.Background()
	_, err := c.Lookup(ctx, db, "t")
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, err := c.NextSurrogate(ctx, db, "t", "ID")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[v], "duplicate surrogate %d", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.True(t, seen[1], "first value is the seed")

	d, err := c.Lookup(ctx, db, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker+1), d.Surrogates["id"], "cache follows allocations")
}

func TestNextSurrogate_UnknownColumn(t *testing.T) {
	c, db, _ := createTestCatalog(t)
	registerTable(t, c, db, "CREATE TABLE t (id INTEGER)", &TableDescriptor{Name: "t"})

	_, err := c.NextSurrogate(context.Background(), db, "t", "id")
	assert.Error(t, err)
}

func TestRegisterStatements(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	stmts := c.RegisterStatements(&TableDescriptor{
		Name:       "emp",
		Valid:      ValidEvent,
		ValidScale: temporal.Hour,
		Surrogates: map[string]int64{"b": 1, "a": 1},
		Key:        []string{"a"},
	})
	assert.Equal(t, []string{
		"INSERT INTO _TEMPORAL_SPEC (table_name, table_key, valid_time, valid_time_scale, transaction_time, vacuum_cutoff, vacuum_cutoff_relative) VALUES ('emp', 'EMP', 'EVENT', 'HOUR', 'NONE', NULL, 0)",
		"INSERT INTO _SURROGATE (table_name, column_name, next_value) VALUES ('emp', 'a', 1)",
		"INSERT INTO _SURROGATE (table_name, column_name, next_value) VALUES ('emp', 'b', 1)",
		"INSERT INTO _TEMPORAL_KEY (table_name, column_name, position) VALUES ('emp', 'a', 0)",
	}, stmts)
}

func TestDescriptor_Cutoff(t *testing.T) {
	abs := &TableDescriptor{VacuumCutoff: 1000}
	rel := &TableDescriptor{VacuumCutoff: -100, VacuumRelative: true}

	assert.Equal(t, temporal.Instant(1000), abs.Cutoff(5000))
	assert.Equal(t, temporal.Instant(4900), rel.Cutoff(5000))
}
