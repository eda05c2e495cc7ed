package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/dialect"
	"github.com/roach88/tsql2/internal/parser"
	"github.com/roach88/tsql2/internal/resultset"
	"github.com/roach88/tsql2/internal/translate"
)

// ErrResultOpen is returned when a statement is issued while the rows of a
// previous query are still open.
var ErrResultOpen = errors.New("session: a result set is still open")

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("session: closed")

// Session is a TSQL2 connection. It pins one database connection; every
// statement runs as one atomic group of physical statements.
//
// With auto-commit on (the default) each statement is its own transaction.
// With auto-commit off statements accumulate in one transaction until Commit
// or Rollback; a failing statement rolls that whole transaction back.
//
// A Session is safe for concurrent use, but statements are serialised.
type Session struct {
	conn    *sql.Conn
	catalog *catalog.Catalog
	clock   clock.Clock
	logger  *slog.Logger
	debug   bool

	mu         sync.Mutex
	autoCommit bool
	tx         *sql.Tx
	open       bool
	closed     bool
}

type config struct {
	dialect   dialect.Config
	cacheSize int
	catalog   *catalog.Catalog
	clock     clock.Clock
	logger    *slog.Logger
	debug     bool
}

// Option configures a Session.
type Option func(*config)

// WithDialect sets the SQL dialect. The default is SQLite.
func WithDialect(d dialect.Config) Option {
	return func(c *config) { c.dialect = d }
}

// WithCacheSize enables the descriptor cache with room for size tables.
func WithCacheSize(size int) Option {
	return func(c *config) { c.cacheSize = size }
}

// WithCatalog shares an existing catalog between sessions. WithDialect and
// WithCacheSize are then ignored.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *config) { c.catalog = cat }
}

// WithClock sets the clock that binds NOW and transaction time.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithDebug exposes system columns in query results.
func WithDebug(debug bool) Option {
	return func(c *config) { c.debug = debug }
}

// Open pins a connection from db, creates the catalog tables if needed and
// returns a session in auto-commit mode.
func Open(ctx context.Context, db *sql.DB, opts ...Option) (*Session, error) {
	cfg := config{
		dialect: dialect.SQLite(),
		clock:   clock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cat := cfg.catalog
	if cat == nil {
		catOpts := []catalog.Option{
			catalog.WithDialect(cfg.dialect),
			catalog.WithClock(cfg.clock),
			catalog.WithLogger(cfg.logger),
		}
		if cfg.cacheSize > 0 {
			catOpts = append(catOpts, catalog.WithCache(cfg.cacheSize))
		}
		var err error
		if cat, err = catalog.New(catOpts...); err != nil {
			return nil, err
		}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if err := cat.Init(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &Session{
		conn:       conn,
		catalog:    cat,
		clock:      cfg.clock,
		logger:     cfg.logger,
		debug:      cfg.debug,
		autoCommit: true,
	}, nil
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// AutoCommit reports the current mode.
func (s *Session) AutoCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoCommit
}

// SetAutoCommit switches the mode. Turning auto-commit on commits the open
// transaction, if any.
func (s *Session) SetAutoCommit(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if on && s.tx != nil {
		if err := s.commitLocked(); err != nil {
			return err
		}
	}
	s.autoCommit = on
	return nil
}

// Commit commits the open transaction. It is a no-op in auto-commit mode.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.commitLocked()
}

// Rollback discards the open transaction. It is a no-op in auto-commit mode.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Exec translates and runs one statement. Queries are run and their rows
// discarded.
func (s *Session) Exec(ctx context.Context, text string) (*translate.Result, error) {
	stmt, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.ExecStatement(ctx, stmt)
}

// ExecScript runs the statements of a script in order and stops at the
// first failure. The results of the statements that ran are returned.
func (s *Session) ExecScript(ctx context.Context, text string) ([]*translate.Result, error) {
	stmts, err := parser.ParseScript(text)
	if err != nil {
		return nil, err
	}
	var results []*translate.Result
	for _, stmt := range stmts {
		res, err := s.ExecStatement(ctx, stmt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ExecStatement runs a parsed statement.
func (s *Session) ExecStatement(ctx context.Context, stmt ast.Statement) (*translate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	var res *translate.Result
	err := s.group(ctx, func(tx *sql.Tx, tr *translate.Translator) error {
		var err error
		if res, err = tr.Translate(ctx, stmt); err != nil {
			return err
		}
		for i, physical := range res.Statements {
			if _, err := tx.ExecContext(ctx, physical); err != nil {
				return fmt.Errorf("statement %d of %d: %w", i+1, len(res.Statements), err)
			}
		}
		return tr.Teardown(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Query translates and runs a SELECT. The returned rows must be closed; in
// auto-commit mode the statement's transaction ends when they are.
func (s *Session) Query(ctx context.Context, text string) (*resultset.ResultSet, error) {
	stmt, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*ast.Select)
	if !ok {
		return nil, &translate.TranslationSyntaxError{Near: text, Message: "Query needs a SELECT statement"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	tx, owned, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	tr := s.translator(tx)

	fail := func(err error) (*resultset.ResultSet, error) {
		err = multierr.Append(err, tr.Teardown(ctx))
		return nil, s.abort(tx, err)
	}

	res, err := tr.Translate(ctx, sel)
	if err != nil {
		return fail(err)
	}
	rows, err := tx.QueryContext(ctx, res.Statements[len(res.Statements)-1])
	if err != nil {
		return fail(err)
	}
	rs, err := resultset.New(rows, res.Layout,
		resultset.WithDebug(s.debug),
		resultset.WithTeardown(func() error { return s.release(ctx, tx, owned, tr) }))
	if err != nil {
		return fail(err)
	}
	s.open = true
	return rs, nil
}

// Translate returns the physical statements for text without applying them.
// Outside a transaction the catalog reads run in one that is rolled back.
func (s *Session) Translate(ctx context.Context, text string) (*translate.Result, error) {
	stmt, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	// Inside an open transaction the catalog reads join it; surrogate
	// values drawn there stay allocated.
	if s.tx != nil {
		tr := s.translator(s.tx)
		res, err := tr.Translate(ctx, stmt)
		if err = multierr.Append(err, tr.Teardown(ctx)); err != nil {
			return nil, err
		}
		return res, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	tr := s.translator(tx)
	res, err := tr.Translate(ctx, stmt)
	err = multierr.Append(err, tr.Teardown(ctx))
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Close rolls back any open transaction and releases the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.tx != nil {
		if rbErr := s.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		s.tx = nil
	}
	return multierr.Append(err, s.conn.Close())
}

func (s *Session) ready() error {
	if s.closed {
		return ErrClosed
	}
	if s.open {
		return ErrResultOpen
	}
	return nil
}

func (s *Session) translator(q catalog.Querier) *translate.Translator {
	return translate.New(s.catalog, q, translate.WithClock(s.clock), translate.WithLogger(s.logger))
}

// begin returns the transaction a statement group runs in. owned is set
// when the group has its own transaction because auto-commit is on.
func (s *Session) begin(ctx context.Context) (*sql.Tx, bool, error) {
	if s.tx != nil {
		return s.tx, false, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	if s.autoCommit {
		return tx, true, nil
	}
	s.tx = tx
	return tx, false, nil
}

// group runs fn as one atomic unit: committed when auto-commit is on,
// otherwise left in the open transaction. Any failure rolls back.
func (s *Session) group(ctx context.Context, fn func(*sql.Tx, *translate.Translator) error) error {
	tx, owned, err := s.begin(ctx)
	if err != nil {
		return err
	}
	tr := s.translator(tx)
	if err := fn(tx, tr); err != nil {
		err = multierr.Append(err, tr.Teardown(ctx))
		return s.abort(tx, err)
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// abort rolls back tx after a failed group and returns cause. In manual
// mode the whole open transaction is lost.
func (s *Session) abort(tx *sql.Tx, cause error) error {
	if s.tx == tx {
		s.tx = nil
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("rollback failed", "error", err)
		return multierr.Append(cause, fmt.Errorf("rollback: %w", err))
	}
	s.logger.Warn("statement rolled back", "error", cause)
	return cause
}

// release ends a query once its rows are closed.
func (s *Session) release(ctx context.Context, tx *sql.Tx, owned bool, tr *translate.Translator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false

	err := tr.Teardown(ctx)
	if !owned {
		return err
	}
	if err != nil {
		return s.abort(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) commitLocked() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
