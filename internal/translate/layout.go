package translate

import (
	"strings"

	"github.com/roach88/tsql2/internal/temporal"
)

// ColumnKind is the TSQL2 type of a logical result column.
type ColumnKind int

const (
	// KindSQL is an ordinary value passed through unchanged.
	KindSQL ColumnKind = iota
	// KindEvent is a single instant.
	KindEvent
	// KindPeriod is a [begin, end) pair merged from two physical columns.
	KindPeriod
)

func (k ColumnKind) String() string {
	switch k {
	case KindEvent:
		return "EVENT"
	case KindPeriod:
		return "PERIOD"
	default:
		return "SQLTYPE"
	}
}

// TableRef identifies the FROM item an implicit valid-time column belongs to.
type TableRef struct {
	Table string
	Alias string
}

// LayoutColumn describes one column of a query result.
type LayoutColumn struct {
	Label string
	Kind  ColumnKind
	Scale temporal.Scale
	// Index is the physical column holding the value, or the period begin.
	Index int
	// Companion is the physical column of the period end, -1 otherwise.
	Companion int
	// Hidden marks system columns. They are not part of the logical schema
	// and reading them raises a RestrictedColumnError.
	Hidden bool
	// Source is set for the implicit VALID columns of non-snapshot queries.
	Source *TableRef
}

// Layout is the contract between a translated query and the result decoder.
type Layout struct {
	// Columns lists logical columns first, in output order, then hidden ones.
	Columns []LayoutColumn
	// Physical is the number of columns the physical query returns.
	Physical int
}

// Visible returns the logical columns.
func (l *Layout) Visible() []LayoutColumn {
	var cols []LayoutColumn
	for _, c := range l.Columns {
		if !c.Hidden {
			cols = append(cols, c)
		}
	}
	return cols
}

// Find returns the column labelled label, comparing case-insensitively.
func (l *Layout) Find(label string) (LayoutColumn, bool) {
	for _, c := range l.Columns {
		if strings.EqualFold(c.Label, label) {
			return c, true
		}
	}
	return LayoutColumn{}, false
}

// Labels returns the labels of the logical columns.
func (l *Layout) Labels() []string {
	vis := l.Visible()
	labels := make([]string, len(vis))
	for i, c := range vis {
		labels[i] = c.Label
	}
	return labels
}

func (l *Layout) add(c LayoutColumn) {
	l.Columns = append(l.Columns, c)
}
