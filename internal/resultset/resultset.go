package resultset

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/roach88/tsql2/internal/temporal"
	"github.com/roach88/tsql2/internal/translate"
)

// Rows is the physical cursor. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Column describes one logical column.
type Column struct {
	Label string
	Kind  translate.ColumnKind
	Scale temporal.Scale
}

// ResultSet iterates the logical rows of a translated query.
// It is not safe for concurrent use.
type ResultSet struct {
	rows     Rows
	layout   *translate.Layout
	debug    bool
	teardown func() error

	raw         []any
	scanErr     error
	closeOnce   sync.Once
	closeResult error
}

// Option configures a ResultSet.
type Option func(*ResultSet)

// WithDebug exposes the hidden system columns.
func WithDebug(debug bool) Option {
	return func(rs *ResultSet) { rs.debug = debug }
}

// WithTeardown registers fn to run once when the set is closed.
func WithTeardown(fn func() error) Option {
	return func(rs *ResultSet) { rs.teardown = fn }
}

var systemColumn = regexp.MustCompile(`(?i)^_(VTS|VTE|TTS|TTE)(__\d+)?$`)

// New wraps rows. A nil layout passes every column through, hiding the ones
// named like system columns.
func New(rows Rows, layout *translate.Layout, opts ...Option) (*ResultSet, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	if layout == nil {
		layout = passthrough(names)
	}
	if layout.Physical != len(names) {
		rows.Close()
		return nil, fmt.Errorf("result has %d columns, layout expects %d", len(names), layout.Physical)
	}

	rs := &ResultSet{rows: rows, layout: layout}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

func passthrough(names []string) *translate.Layout {
	l := &translate.Layout{Physical: len(names)}
	var hidden []translate.LayoutColumn
	for i, name := range names {
		col := translate.LayoutColumn{Label: name, Kind: translate.KindSQL, Index: i, Companion: -1}
		if systemColumn.MatchString(name) {
			col.Hidden = true
			hidden = append(hidden, col)
			continue
		}
		l.Columns = append(l.Columns, col)
	}
	l.Columns = append(l.Columns, hidden...)
	return l
}

// Columns returns the logical columns, followed by the hidden ones in debug
// mode.
func (rs *ResultSet) Columns() []Column {
	var cols []Column
	for _, c := range rs.layout.Columns {
		if c.Hidden && !rs.debug {
			continue
		}
		cols = append(cols, Column{Label: c.Label, Kind: c.Kind, Scale: c.Scale})
	}
	return cols
}

// Labels returns the labels of Columns.
func (rs *ResultSet) Labels() []string {
	cols := rs.Columns()
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = c.Label
	}
	return labels
}

// Next advances to the next row.
func (rs *ResultSet) Next() bool {
	if !rs.rows.Next() {
		return false
	}
	raw := make([]any, rs.layout.Physical)
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rs.rows.Scan(dest...); err != nil {
		rs.scanErr = fmt.Errorf("scan result row: %w", err)
		rs.raw = nil
		return false
	}
	rs.raw = raw
	return true
}

// Err returns the error that ended iteration, if any.
func (rs *ResultSet) Err() error {
	if rs.scanErr != nil {
		return rs.scanErr
	}
	return rs.rows.Err()
}

// Value returns column i of the current row. Indexes past the logical
// columns address the hidden ones.
func (rs *ResultSet) Value(i int) (any, error) {
	if i < 0 || i >= len(rs.layout.Columns) {
		return nil, &UnknownColumnError{Column: strconv.Itoa(i)}
	}
	return rs.value(rs.layout.Columns[i])
}

// ValueByLabel returns the column labelled label, compared
// case-insensitively.
func (rs *ResultSet) ValueByLabel(label string) (any, error) {
	col, ok := rs.layout.Find(label)
	if !ok {
		if systemColumn.MatchString(label) {
			return nil, &RestrictedColumnError{Column: label}
		}
		return nil, &UnknownColumnError{Column: label}
	}
	return rs.value(col)
}

func (rs *ResultSet) value(col translate.LayoutColumn) (any, error) {
	if col.Hidden && !rs.debug {
		return nil, &RestrictedColumnError{Column: col.Label}
	}
	if rs.raw == nil {
		return nil, fmt.Errorf("no current row")
	}
	return decode(rs.raw, col)
}

// Scan copies the logical columns of the current row into dest.
func (rs *ResultSet) Scan(dest ...any) error {
	cols := rs.layout.Visible()
	if rs.debug {
		cols = rs.layout.Columns
	}
	if len(dest) != len(cols) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(cols))
	}
	if rs.raw == nil {
		return fmt.Errorf("scan: no current row")
	}
	for i, col := range cols {
		if err := assign(dest[i], rs.raw, col); err != nil {
			return fmt.Errorf("scan column %s: %w", col.Label, err)
		}
	}
	return nil
}

// Strings returns the logical values of the current row rendered as text,
// NULL for missing values.
func (rs *ResultSet) Strings() ([]string, error) {
	cols := rs.Columns()
	out := make([]string, len(cols))
	for i := range cols {
		v, err := rs.Value(i)
		if err != nil {
			return nil, err
		}
		out[i] = text(v)
	}
	return out, nil
}

// Close closes the cursor and runs the teardown. Later calls return the
// first result.
func (rs *ResultSet) Close() error {
	var err error
	rs.closeOnce.Do(func() {
		err = rs.rows.Close()
		if rs.teardown != nil {
			err = multierr.Append(err, rs.teardown())
		}
		rs.raw = nil
		rs.closeResult = err
	})
	return rs.closeResult
}
