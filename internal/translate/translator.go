package translate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/dialect"
	"github.com/roach88/tsql2/internal/temporal"
)

// Pending marks versions staged by an UPDATE before they are published.
const Pending = temporal.Forever + 1

// StatementKind classifies a translated statement.
type StatementKind int

const (
	KindDDL StatementKind = iota
	KindDML
	KindQuery
)

func (k StatementKind) String() string {
	switch k {
	case KindDML:
		return "DML"
	case KindQuery:
		return "QUERY"
	default:
		return "DDL"
	}
}

// Result is the physical rewrite of one statement. The statements run in
// order inside one transaction; for a query the last one returns the rows.
type Result struct {
	Kind       StatementKind
	Statements []string
	// Layout is set for queries.
	Layout *Layout
}

// Translator rewrites statements against one catalog and one connection.
//
// Translation reads the catalog, allocates surrogate values, checks logical
// keys and materialises coalesced tables, all through the Querier. Callers
// pass the transaction the resulting statements will run in.
//
// A Translator owns the temporary tables created for coalescing; Teardown
// drops them. It is not safe for concurrent use.
type Translator struct {
	catalog *catalog.Catalog
	q       catalog.Querier
	dialect dialect.Config
	clock   clock.Clock
	logger  *slog.Logger

	now  temporal.Instant
	eval temporal.Evaluator

	temps []string
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock sets the clock that binds NOW and transaction time.
func WithClock(clk clock.Clock) Option {
	return func(t *Translator) { t.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) { t.logger = logger }
}

// New creates a translator. The dialect is the catalog's.
func New(cat *catalog.Catalog, q catalog.Querier, opts ...Option) *Translator {
	t := &Translator{
		catalog: cat,
		q:       q,
		dialect: cat.Dialect(),
		clock:   clock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// idents renders names for generated SQL.
func (t *Translator) idents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = t.dialect.Ident(n)
	}
	return out
}

// Now returns the instant the last translation was bound to.
func (t *Translator) Now() temporal.Instant {
	return t.now
}

// Translate rewrites one statement.
func (t *Translator) Translate(ctx context.Context, stmt ast.Statement) (*Result, error) {
	t.now = temporal.FromTime(t.clock.Now())
	t.eval = temporal.NewEvaluator(t.now)

	var (
		res *Result
		err error
	)
	switch s := stmt.(type) {
	case *ast.CreateTable:
		res, err = t.createTable(s)
	case *ast.DropTable:
		res, err = t.dropTable(s)
	case *ast.Insert:
		res, err = t.insert(ctx, s)
	case *ast.Update:
		res, err = t.update(ctx, s)
	case *ast.Delete:
		res, err = t.delete(ctx, s)
	case *ast.Select:
		res, err = t.query(ctx, s)
	case nil:
		return nil, syntaxErrorf("", "empty statement")
	default:
		return nil, syntaxErrorf(ast.TextOf(stmt), "unsupported statement %T", stmt)
	}
	if err != nil {
		return nil, err
	}
	t.logger.Debug("translated statement",
		"kind", res.Kind.String(),
		"statements", len(res.Statements),
		"now", t.now.String())
	return res, nil
}

// Teardown drops the temporary tables created by coalescing. It is safe to
// call more than once; each table is dropped once.
func (t *Translator) Teardown(ctx context.Context) error {
	temps := t.temps
	t.temps = nil

	var err error
	for _, name := range temps {
		if _, dropErr := t.q.ExecContext(ctx, "DROP TABLE "+name); dropErr != nil {
			err = multierr.Append(err, fmt.Errorf("drop %s: %w", name, dropErr))
			continue
		}
		t.logger.Debug("dropped coalescing table", "table", name)
	}
	return err
}

// lookup resolves a table descriptor. A failed vacuum is not fatal.
func (t *Translator) lookup(ctx context.Context, table string) (*catalog.TableDescriptor, error) {
	desc, err := t.catalog.Lookup(ctx, t.q, table)
	if err != nil {
		if desc != nil && catalog.IsVacuumError(err) {
			return desc, nil
		}
		return nil, err
	}
	return desc, nil
}
