package translate

import (
	"context"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// dmlScope binds the target table under its name and alias. Qualified
// references through the alias are rewritten to the table name, since the
// generated statements do not alias the target.
func dmlScope(desc *catalog.TableDescriptor, alias string, ident func(string) string) *scope {
	b := bindingFor(desc, "", ident)
	if alias != "" {
		b.names = append(b.names, alias)
	}
	return &scope{bindings: []*binding{b}}
}

// sequencedPeriod resolves the VALID clause of UPDATE or DELETE. For an
// event table a single instant selects the events at that instant.
func (t *Translator) sequencedPeriod(desc *catalog.TableDescriptor, vc *ast.ValidClause) (temporal.Period, error) {
	if vc.Period != nil {
		p, err := t.eval.Period(vc.Period, desc.ValidScale)
		if err != nil {
			return temporal.Period{}, evalError(vc.Text(), err)
		}
		return p, nil
	}
	if !desc.IsEvent() {
		return temporal.Period{}, syntaxErrorf(vc.Text(), "state table %s needs a VALID PERIOD", desc.Name)
	}
	at, err := t.eval.Instant(vc.Instant, desc.ValidScale)
	if err != nil {
		return temporal.Period{}, evalError(vc.Text(), err)
	}
	return temporal.Period{Begin: at, End: at + 1, Scale: desc.ValidScale}, nil
}

func (t *Translator) delete(ctx context.Context, s *ast.Delete) (*Result, error) {
	desc, err := t.lookup(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	if s.Valid != nil && !desc.HasValid() {
		return nil, &NoTemporalSupportError{Table: desc.Name, Dimension: "valid time", Construct: "VALID"}
	}

	c := &compiler{t: t, ctx: ctx, scope: dmlScope(desc, s.Alias, t.dialect.Ident)}
	cond, err := c.expr(s.Where)
	if err != nil {
		return nil, err
	}
	r := t.rewriter(desc, paren(cond))

	// Without a VALID clause a delete removes the rows from now on.
	p := temporal.Period{Begin: t.now, End: temporal.Forever}
	if s.Valid != nil {
		if p, err = t.sequencedPeriod(desc, s.Valid); err != nil {
			return nil, err
		}
	}

	var stmts []string
	switch desc.Regime() {
	case catalog.RegimeSnapshot:
		stmts = []string{"DELETE FROM " + t.dialect.Ident(desc.Name) + whereClause(cond)}
	case catalog.RegimeState:
		if desc.IsEvent() {
			stmts = r.eventDelete(p)
		} else {
			stmts = r.stateDelete(p)
		}
	case catalog.RegimeTransaction:
		stmts = r.transactionDelete()
	case catalog.RegimeBitemporal:
		if desc.IsEvent() {
			stmts = r.bitemporalEventDelete(p)
		} else {
			stmts = r.bitemporalDelete(p)
		}
	}
	return &Result{Kind: KindDML, Statements: stmts}, nil
}

func (t *Translator) update(ctx context.Context, s *ast.Update) (*Result, error) {
	desc, err := t.lookup(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	if s.Valid != nil && !desc.HasValid() {
		return nil, &NoTemporalSupportError{Table: desc.Name, Dimension: "valid time", Construct: "VALID"}
	}

	c := &compiler{t: t, ctx: ctx, scope: dmlScope(desc, s.Alias, t.dialect.Ident)}
	set, err := t.assignments(c, desc, s.Set)
	if err != nil {
		return nil, err
	}
	cond, err := c.expr(s.Where)
	if err != nil {
		return nil, err
	}
	r := t.rewriter(desc, paren(cond))
	r.set = set

	var p *temporal.Period
	if s.Valid != nil {
		sp, err := t.sequencedPeriod(desc, s.Valid)
		if err != nil {
			return nil, err
		}
		p = &sp
	}

	var stmts []string
	switch desc.Regime() {
	case catalog.RegimeSnapshot:
		stmts = []string{r.updateSet(nil, cond)}
	case catalog.RegimeState:
		switch {
		case p == nil:
			stmts = []string{r.updateSet(nil, cond)}
		case desc.IsEvent():
			stmts = r.eventUpdate(*p)
		default:
			stmts = r.stateUpdate(*p)
		}
	case catalog.RegimeTransaction:
		stmts = r.transactionUpdate()
	case catalog.RegimeBitemporal:
		switch {
		case p == nil:
			stmts = r.bitemporalNonSequencedUpdate()
		case desc.IsEvent():
			stmts = r.bitemporalEventUpdate(*p)
		default:
			stmts = r.bitemporalUpdate(*p)
		}
	}
	return &Result{Kind: KindDML, Statements: stmts}, nil
}

// assignments compiles SET, keyed by the declared column spelling.
func (t *Translator) assignments(c *compiler, desc *catalog.TableDescriptor, set []ast.Assignment) (map[string]string, error) {
	out := make(map[string]string, len(set))
	for _, a := range set {
		if catalog.IsTemporalColumn(a.Column) {
			return nil, syntaxErrorf(a.Text(), "column %s is maintained by the system", a.Column)
		}
		name, ok := desc.Column(a.Column)
		if !ok {
			return nil, syntaxErrorf(a.Text(), "table %s has no column %s", desc.Name, a.Column)
		}
		if desc.IsSurrogate(name) {
			return nil, &SurrogateAssignmentError{Table: desc.Name, Column: name, Message: "cannot be updated"}
		}
		v, err := c.expr(a.Value)
		if err != nil {
			return nil, err
		}
		out[catalog.Fold(name)] = v
	}
	return out, nil
}
