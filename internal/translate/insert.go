package translate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// insert emits exactly one physical INSERT. Surrogates are allocated and the
// logical key is checked against overlapping current versions first.
func (t *Translator) insert(ctx context.Context, s *ast.Insert) (*Result, error) {
	desc, err := t.lookup(ctx, s.Table)
	if err != nil {
		return nil, err
	}

	cols := s.Columns
	if cols == nil {
		cols = desc.Columns
		if len(cols) != len(s.Values) {
			return nil, syntaxErrorf(s.Text(), "table %s has %d columns but %d values were given",
				desc.Name, len(cols), len(s.Values))
		}
	}

	c := &compiler{t: t, ctx: ctx}
	names := make([]string, len(cols))
	values := make([]string, len(cols))
	assigned := map[string]bool{}
	for i, col := range cols {
		if catalog.IsTemporalColumn(col) {
			return nil, syntaxErrorf(s.Text(), "column %s is maintained by the system", col)
		}
		name := col
		if canon, ok := desc.Column(col); ok {
			name = canon
		}
		names[i] = name
		assigned[catalog.Fold(name)] = true

		isNew := isNewLiteral(s.Values[i])
		if desc.IsSurrogate(name) {
			if !isNew {
				return nil, &SurrogateAssignmentError{Table: desc.Name, Column: name, Message: "must be assigned NEW"}
			}
			next, err := t.catalog.NextSurrogate(ctx, t.q, desc.Name, name)
			if err != nil {
				return nil, err
			}
			values[i] = strconv.FormatInt(next, 10)
			continue
		}
		if isNew {
			return nil, &SurrogateAssignmentError{Table: desc.Name, Column: name, Message: "NEW is only valid for SURROGATE columns"}
		}
		if values[i], err = c.expr(s.Values[i]); err != nil {
			return nil, err
		}
	}

	surrogates := make([]string, 0, len(desc.Surrogates))
	for col := range desc.Surrogates {
		surrogates = append(surrogates, col)
	}
	sort.Strings(surrogates)
	for _, col := range surrogates {
		if !assigned[catalog.Fold(col)] {
			return nil, &SurrogateAssignmentError{Table: desc.Name, Column: col, Message: "must be assigned NEW"}
		}
	}

	tcols, tvals, overlap, err := t.insertTemporal(desc, s.Valid)
	if err != nil {
		return nil, err
	}

	if len(desc.Key) > 0 && desc.Regime() != catalog.RegimeSnapshot {
		if err := t.checkKey(ctx, desc, names, values, overlap); err != nil {
			return nil, err
		}
	}

	stmt := "INSERT INTO " + t.dialect.Ident(desc.Name) +
		" (" + strings.Join(append(t.idents(names), tcols...), ", ") + ")" +
		" VALUES (" + strings.Join(append(values, tvals...), ", ") + ")"
	return &Result{Kind: KindDML, Statements: []string{stmt}}, nil
}

func isNewLiteral(e ast.Expr) bool {
	lit, ok := e.(*ast.Literal)
	return ok && lit.Kind == ast.LitNew
}

// insertTemporal resolves the temporal column values of an INSERT and the
// condition selecting existing versions that overlap them.
func (t *Translator) insertTemporal(desc *catalog.TableDescriptor, vc *ast.ValidClause) (cols, vals []string, overlap string, err error) {
	if vc != nil && !desc.HasValid() {
		return nil, nil, "", &NoTemporalSupportError{Table: desc.Name, Dimension: "valid time", Construct: "VALID"}
	}
	var conds []string

	switch desc.Valid {
	case catalog.ValidState:
		p := temporal.Period{Begin: t.now, End: temporal.Forever}
		if vc != nil {
			if vc.Period == nil {
				return nil, nil, "", syntaxErrorf(vc.Text(), "state table %s needs a VALID PERIOD", desc.Name)
			}
			if p, err = t.eval.Period(vc.Period, desc.ValidScale); err != nil {
				return nil, nil, "", evalError(vc.Text(), err)
			}
		}
		cols = append(cols, catalog.ColVTS, catalog.ColVTE)
		vals = append(vals, itoa(p.Begin), itoa(p.End))
		conds = append(conds,
			catalog.ColVTS+" < "+itoa(p.End),
			catalog.ColVTE+" > "+itoa(p.Begin))

	case catalog.ValidEvent:
		at := t.now
		if vc != nil {
			if vc.Instant == nil {
				return nil, nil, "", syntaxErrorf(vc.Text(), "event table %s needs a VALID instant", desc.Name)
			}
			if at, err = t.eval.Instant(vc.Instant, desc.ValidScale); err != nil {
				return nil, nil, "", evalError(vc.Text(), err)
			}
		}
		cols = append(cols, catalog.ColVTS)
		vals = append(vals, itoa(at))
		conds = append(conds, catalog.ColVTS+" = "+itoa(at))
	}

	if desc.HasTransaction() {
		cols = append(cols, catalog.ColTTS, catalog.ColTTE)
		vals = append(vals, itoa(t.now), itoa(temporal.Forever))
		conds = append(conds, catalog.ColTTE+" = "+itoa(temporal.Forever))
	}
	return cols, vals, and(conds...), nil
}

// checkKey fails with DuplicateKeyError when a current version with the same
// logical key overlaps the inserted one. The engine cannot detect this
// because its primary key includes the temporal columns.
func (t *Translator) checkKey(ctx context.Context, desc *catalog.TableDescriptor, names, values []string, overlap string) error {
	conds := make([]string, 0, len(desc.Key)+1)
	shown := make([]string, 0, len(desc.Key))
	for _, key := range desc.Key {
		v := "NULL"
		for i, n := range names {
			if strings.EqualFold(n, key) {
				v = values[i]
				break
			}
		}
		shown = append(shown, v)
		col := t.dialect.Ident(key)
		if v == "NULL" {
			conds = append(conds, col+" IS NULL")
		} else {
			conds = append(conds, col+" = "+v)
		}
	}
	conds = append(conds, overlap)

	var n int64
	query := "SELECT COUNT(*) FROM " + t.dialect.Ident(desc.Name) + whereClause(and(conds...))
	if err := t.q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return fmt.Errorf("check key of %s: %w", desc.Name, err)
	}
	if n > 0 {
		return &DuplicateKeyError{Table: desc.Name, Key: desc.Key, Values: shown}
	}
	return nil
}
