package catalog

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/multierr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/tsql2/internal/dialect"
	"github.com/roach88/tsql2/internal/temporal"
)

//go:embed schema.sql.tmpl
var schemaTemplate string

var schemaTmpl = template.Must(template.New("schema").Parse(schemaTemplate))

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the catalog needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Catalog serves table descriptors from the catalog tables.
type Catalog struct {
	dialect dialect.Config
	clock   clock.Clock
	logger  *slog.Logger

	// mu serialises writers: surrogate allocation, vacuuming and cache updates.
	mu    sync.Mutex
	cache *lru.Cache
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithCache enables an LRU descriptor cache holding up to size tables.
// A cached descriptor goes stale if another process changes the schema.
func WithCache(size int) Option {
	return func(c *Catalog) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New(size)
		if err != nil {
			return fmt.Errorf("create descriptor cache: %w", err)
		}
		c.cache = cache
		return nil
	}
}

// WithDialect sets the SQL dialect of catalog statements.
func WithDialect(d dialect.Config) Option {
	return func(c *Catalog) error {
		c.dialect = d
		return nil
	}
}

// WithClock sets the clock that relative vacuum cutoffs are resolved against.
func WithClock(clk clock.Clock) Option {
	return func(c *Catalog) error {
		c.clock = clk
		return nil
	}
}

// WithLogger sets the logger for vacuum failures and cache activity.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) error {
		c.logger = logger
		return nil
	}
}

// New creates a catalog. Without options it uses the SQLite dialect, the
// wall clock, slog.Default() and no cache.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		dialect: dialect.SQLite(),
		clock:   clock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dialect returns the catalog's dialect.
func (c *Catalog) Dialect() dialect.Config {
	return c.dialect
}

// Fold normalises a table or column name for case-insensitive comparison.
func Fold(name string) string {
	return cases.Upper(language.Und).String(name)
}

// Init creates the catalog tables if they do not exist.
func (c *Catalog) Init(ctx context.Context, q Querier) error {
	var buf bytes.Buffer
	if err := schemaTmpl.Execute(&buf, c.dialect); err != nil {
		return fmt.Errorf("render catalog schema: %w", err)
	}
	for _, stmt := range strings.Split(buf.String(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog tables: %w", err)
		}
	}
	return nil
}

// Lookup returns the descriptor of table. For tables with transaction time
// it also vacuums expired versions; if that fails the descriptor is still
// returned, together with a *VacuumError.
func (c *Catalog) Lookup(ctx context.Context, q Querier, table string) (*TableDescriptor, error) {
	key := Fold(table)

	desc, ok := c.cached(key)
	if !ok {
		loaded, err := c.load(ctx, q, table, key)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.mu.Lock()
			c.cache.Add(key, loaded)
			c.mu.Unlock()
		}
		desc = loaded.Clone()
	}

	if desc.HasTransaction() {
		if err := c.vacuum(ctx, q, desc); err != nil {
			c.logger.Warn("vacuum failed", "table", desc.Name, "error", err)
			return desc, err
		}
	}
	return desc, nil
}

// Invalidate drops a table from the cache. DDL calls it for the tables it
// creates or drops.
func (c *Catalog) Invalidate(table string) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(Fold(table))
}

// Purge empties the cache.
func (c *Catalog) Purge() {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// NextSurrogate allocates the next value of a SURROGATE column. It increments
// the stored counter first and reads it back, so two writers can never
// receive the same value. Call it inside the transaction of the INSERT that
// consumes the value.
func (c *Catalog) NextSurrogate(ctx context.Context, q Querier, table, column string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tableKey := Fold(table)
	name, col, err := c.surrogateColumn(ctx, q, tableKey, column)
	if err != nil {
		return 0, fmt.Errorf("advance surrogate %s.%s: %w", table, column, err)
	}
	res, err := q.ExecContext(ctx, c.dialect.Rebind(
		`UPDATE _SURROGATE SET next_value = next_value + 1 WHERE table_name = ? AND column_name = ?`),
		name, col)
	if err != nil {
		return 0, fmt.Errorf("advance surrogate %s.%s: %w", table, column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("advance surrogate %s.%s: no such surrogate column", table, column)
	}

	var next int64
	err = q.QueryRowContext(ctx, c.dialect.Rebind(
		`SELECT next_value FROM _SURROGATE WHERE table_name = ? AND column_name = ?`),
		name, col).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("read surrogate %s.%s: %w", table, column, err)
	}

	if c.cache != nil {
		if v, ok := c.cache.Get(tableKey); ok {
			updated := v.(*TableDescriptor).Clone()
			if name, ok := updated.surrogate(column); ok {
				updated.Surrogates[name] = next
				c.cache.Add(tableKey, updated)
			}
		}
	}
	return next - 1, nil
}

// surrogateColumn resolves table and column to the names stored in
// _SURROGATE. Names are compared with Fold in Go since SQL UPPER folds
// differently on each database.
func (c *Catalog) surrogateColumn(ctx context.Context, q Querier, tableKey, column string) (string, string, error) {
	rows, err := q.QueryContext(ctx, c.dialect.Rebind(
		`SELECT s.table_name, s.column_name FROM _SURROGATE s
		JOIN _TEMPORAL_SPEC t ON t.table_name = s.table_name
		WHERE t.table_key = ?`), tableKey)
	if err != nil {
		return "", "", err
	}
	defer rows.Close()

	columnKey := Fold(column)
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return "", "", err
		}
		if Fold(col) == columnKey {
			return name, col, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", "", err
	}
	return "", "", errors.New("no such surrogate column")
}

func (c *Catalog) cached(key string) (*TableDescriptor, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*TableDescriptor).Clone(), true
}

func (c *Catalog) load(ctx context.Context, q Querier, table, key string) (*TableDescriptor, error) {
	var (
		name, valid, transaction string
		scale                    sql.NullString
		cutoff                   sql.NullInt64
		relative                 int64
	)
	err := q.QueryRowContext(ctx, c.dialect.Rebind(
		`SELECT table_name, valid_time, valid_time_scale, transaction_time, vacuum_cutoff, vacuum_cutoff_relative
		FROM _TEMPORAL_SPEC WHERE table_key = ?`), key).
		Scan(&name, &valid, &scale, &transaction, &cutoff, &relative)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &UnknownTableError{Table: table}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}

	d := &TableDescriptor{
		Name:           name,
		VacuumCutoff:   temporal.Instant(cutoff.Int64),
		VacuumRelative: relative != 0,
		Surrogates:     map[string]int64{},
	}
	if d.Valid, err = ParseValidSupport(valid); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	if d.Transaction, err = ParseTransactionSupport(transaction); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	if scale.Valid {
		if d.ValidScale, err = temporal.ParseScale(scale.String); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
	}

	if err := c.loadSurrogates(ctx, q, d); err != nil {
		return nil, err
	}
	if err := c.loadKey(ctx, q, d); err != nil {
		return nil, err
	}
	if err := c.loadColumns(ctx, q, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Catalog) loadSurrogates(ctx context.Context, q Querier, d *TableDescriptor) error {
	rows, err := q.QueryContext(ctx, c.dialect.Rebind(
		`SELECT column_name, next_value FROM _SURROGATE WHERE table_name = ? ORDER BY column_name`), d.Name)
	if err != nil {
		return fmt.Errorf("load surrogates of %s: %w", d.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		var next int64
		if err := rows.Scan(&col, &next); err != nil {
			return fmt.Errorf("load surrogates of %s: %w", d.Name, err)
		}
		d.Surrogates[col] = next
	}
	return rows.Err()
}

func (c *Catalog) loadKey(ctx context.Context, q Querier, d *TableDescriptor) error {
	rows, err := q.QueryContext(ctx, c.dialect.Rebind(
		`SELECT column_name FROM _TEMPORAL_KEY WHERE table_name = ? ORDER BY position`), d.Name)
	if err != nil {
		return fmt.Errorf("load key of %s: %w", d.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return fmt.Errorf("load key of %s: %w", d.Name, err)
		}
		d.Key = append(d.Key, col)
	}
	return rows.Err()
}

// loadColumns reads the physical column order from an empty result and
// keeps the logical columns.
func (c *Catalog) loadColumns(ctx context.Context, q Querier, d *TableDescriptor) error {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+c.dialect.Ident(d.Name)+" WHERE 1 = 0")
	if err != nil {
		return fmt.Errorf("load columns of %s: %w", d.Name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("load columns of %s: %w", d.Name, err)
	}
	for _, col := range cols {
		if !IsTemporalColumn(col) {
			d.Columns = append(d.Columns, col)
		}
	}
	return nil
}

// txQuerier is a Querier bound to a transaction, such as *sql.Tx.
type txQuerier interface {
	Querier
	Commit() error
	Rollback() error
}

const vacuumSavepoint = "tsql2_vacuum"

// vacuum deletes the versions closed before the table's cutoff. Inside a
// transaction the delete runs under a savepoint: a failed statement aborts
// a PostgreSQL transaction, and the caller's statement must still run.
func (c *Catalog) vacuum(ctx context.Context, q Querier, d *TableDescriptor) error {
	cutoff := d.Cutoff(temporal.FromTime(c.clock.Now()))

	c.mu.Lock()
	defer c.mu.Unlock()

	_, inTx := q.(txQuerier)
	if inTx {
		if _, err := q.ExecContext(ctx, "SAVEPOINT "+vacuumSavepoint); err != nil {
			return &VacuumError{Table: d.Name, Err: err}
		}
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s <= %d",
		c.dialect.Ident(d.Name), ColTTE, int64(cutoff)))
	if inTx {
		if err != nil {
			_, rerr := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+vacuumSavepoint)
			err = multierr.Append(err, rerr)
		}
		_, rerr := q.ExecContext(ctx, "RELEASE SAVEPOINT "+vacuumSavepoint)
		err = multierr.Append(err, rerr)
	}
	if err != nil {
		return &VacuumError{Table: d.Name, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.logger.Debug("vacuumed expired versions", "table", d.Name, "rows", n, "cutoff", cutoff.String())
	}
	return nil
}

// RegisterStatements renders the catalog inserts that describe a new table:
// the descriptor row, one row per surrogate column seeded at 1 and one row
// per key column.
func (c *Catalog) RegisterStatements(d *TableDescriptor) []string {
	lit := c.dialect.Literal
	scale := "NULL"
	if d.HasValid() {
		scale = lit(d.ValidScale.OrDefault(temporal.Second).String())
	}
	cutoff := "NULL"
	if d.HasTransaction() {
		cutoff = fmt.Sprintf("%d", int64(d.VacuumCutoff))
	}
	relative := 0
	if d.VacuumRelative {
		relative = 1
	}

	stmts := []string{fmt.Sprintf(
		"INSERT INTO _TEMPORAL_SPEC (table_name, table_key, valid_time, valid_time_scale, transaction_time, vacuum_cutoff, vacuum_cutoff_relative) VALUES (%s, %s, %s, %s, %s, %s, %d)",
		lit(d.Name), lit(Fold(d.Name)), lit(d.Valid.String()), scale, lit(d.Transaction.String()), cutoff, relative)}

	surrogates := make([]string, 0, len(d.Surrogates))
	for col := range d.Surrogates {
		surrogates = append(surrogates, col)
	}
	sort.Strings(surrogates)
	for _, col := range surrogates {
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO _SURROGATE (table_name, column_name, next_value) VALUES (%s, %s, 1)",
			lit(d.Name), lit(col)))
	}
	for i, col := range d.Key {
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO _TEMPORAL_KEY (table_name, column_name, position) VALUES (%s, %s, %d)",
			lit(d.Name), lit(col), i))
	}
	return stmts
}

// UnregisterStatements renders the deletes that remove a table from the
// catalog: surrogates and key first, the descriptor last.
func (c *Catalog) UnregisterStatements(table string) []string {
	key := "table_key = " + c.dialect.Literal(Fold(table))
	owned := "WHERE table_name IN (SELECT table_name FROM _TEMPORAL_SPEC WHERE " + key + ")"
	return []string{
		"DELETE FROM _SURROGATE " + owned,
		"DELETE FROM _TEMPORAL_KEY " + owned,
		"DELETE FROM _TEMPORAL_SPEC WHERE " + key,
	}
}
