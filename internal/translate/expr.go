package translate

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// compiler renders expressions within a scope.
type compiler struct {
	t     *Translator
	ctx   context.Context
	scope *scope
}

// periodExpr is a period in SQL form: two expressions for [begin, end).
// Events and instants have begin == end.
type periodExpr struct {
	begin string
	end   string
	scale temporal.Scale
	event bool
}

func itoa(i temporal.Instant) string {
	return strconv.FormatInt(int64(i), 10)
}

// evalError keeps scale errors as they are and reports any other evaluation
// failure as a translation error.
func evalError(near string, err error) error {
	var ise *InvalidScaleError
	if errors.As(err, &ise) {
		return err
	}
	return syntaxErrorf(near, "%v", err)
}

// needsRewrite reports whether e contains anything that cannot be emitted
// from its source text.
func (c *compiler) needsRewrite(e ast.Expr) bool {
	found := false
	ast.Walk(e, func(n ast.Expr) bool {
		switch x := n.(type) {
		case *ast.Valid, *ast.Transaction, *ast.InstantLit, *ast.PeriodLit, *ast.Intersect,
			*ast.Exists, *ast.Subquery:
			found = true
		case *ast.In:
			found = x.Subquery != nil
		case *ast.Cast:
			found = x.Interval
		case *ast.Binary:
			found = ast.TemporalOperator(x.Op)
		case *ast.Literal:
			found = x.Kind == ast.LitNew || x.Kind == ast.LitDateTime
		case *ast.Ident:
			if x.Qualifier != "" {
				if b := c.scope.find(x.Qualifier); b != nil && b.ref != x.Qualifier {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

// expr renders a scalar or boolean expression.
func (c *compiler) expr(e ast.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	if !c.needsRewrite(e) {
		return e.Text(), nil
	}

	switch x := e.(type) {
	case *ast.Ident:
		return c.ident(x), nil

	case *ast.Star:
		return "*", nil

	case *ast.Literal:
		switch x.Kind {
		case ast.LitNew:
			return "", syntaxErrorf(x.Text(), "NEW is only allowed as the INSERT value of a SURROGATE column")
		case ast.LitDateTime:
			at, err := temporal.ParseInstant(x.Value)
			if err != nil {
				return "", evalError(x.Text(), err)
			}
			return itoa(at), nil
		}
		return x.Text(), nil

	case *ast.InstantLit:
		at, err := c.t.eval.Instant(x, temporal.Second)
		if err != nil {
			return "", evalError(x.Text(), err)
		}
		return itoa(at), nil

	case *ast.FuncCall:
		args, err := c.list(x.Args)
		if err != nil {
			return "", err
		}
		distinct := ""
		if x.Distinct {
			distinct = "DISTINCT "
		}
		return x.Name + "(" + distinct + args + ")", nil

	case *ast.Unary:
		inner, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		if x.Op == "NOT" {
			return "NOT " + inner, nil
		}
		return x.Op + inner, nil

	case *ast.Binary:
		return c.binary(x)

	case *ast.IsNull:
		inner, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		if x.Not {
			return inner + " IS NOT NULL", nil
		}
		return inner + " IS NULL", nil

	case *ast.Between:
		v, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		lo, err := c.expr(x.Lo)
		if err != nil {
			return "", err
		}
		hi, err := c.expr(x.Hi)
		if err != nil {
			return "", err
		}
		op := " BETWEEN "
		if x.Not {
			op = " NOT BETWEEN "
		}
		return v + op + lo + " AND " + hi, nil

	case *ast.In:
		v, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		var body string
		if x.Subquery != nil {
			body, err = c.t.subquery(c.ctx, x.Subquery, c.scope)
		} else {
			body, err = c.list(x.List)
		}
		if err != nil {
			return "", err
		}
		op := " IN ("
		if x.Not {
			op = " NOT IN ("
		}
		return v + op + body + ")", nil

	case *ast.Exists:
		body, err := c.t.subquery(c.ctx, x.Subquery, c.scope)
		if err != nil {
			return "", err
		}
		if x.Not {
			return "NOT EXISTS (" + body + ")", nil
		}
		return "EXISTS (" + body + ")", nil

	case *ast.Subquery:
		body, err := c.t.subquery(c.ctx, x.Select, c.scope)
		if err != nil {
			return "", err
		}
		return "(" + body + ")", nil

	case *ast.Paren:
		inner, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil

	case *ast.Case:
		return c.caseExpr(x)

	case *ast.Cast:
		if x.Interval {
			return c.interval(x)
		}
		inner, err := c.expr(x.X)
		if err != nil {
			return "", err
		}
		return "CAST(" + inner + " AS " + x.Type + ")", nil

	case *ast.Valid, *ast.Transaction, *ast.PeriodLit, *ast.Intersect:
		return "", syntaxErrorf(e.Text(), "a period cannot be used as a scalar value")
	}
	return "", syntaxErrorf(e.Text(), "unsupported expression %T", e)
}

func (c *compiler) list(exprs []ast.Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := c.expr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

func (c *compiler) ident(x *ast.Ident) string {
	if x.Qualifier == "" {
		return x.Text()
	}
	if b := c.scope.find(x.Qualifier); b != nil {
		return b.col(x.Name)
	}
	return x.Text()
}

func (c *compiler) binary(x *ast.Binary) (string, error) {
	if ast.TemporalOperator(x.Op) {
		l, err := c.requirePeriod(x.L)
		if err != nil {
			return "", err
		}
		r, err := c.requirePeriod(x.R)
		if err != nil {
			return "", err
		}
		return temporalPredicate(x.Op, x.Not, l, r), nil
	}

	if x.Op == "=" || x.Op == "<>" || x.Op == "!=" {
		l, lok, err := c.period(x.L)
		if err != nil {
			return "", err
		}
		r, rok, err := c.period(x.R)
		if err != nil {
			return "", err
		}
		if lok && rok {
			eq := "(" + l.begin + " = " + r.begin + " AND " + l.end + " = " + r.end + ")"
			if x.Op == "=" {
				return eq, nil
			}
			return "NOT " + eq, nil
		}
	}

	l, err := c.expr(x.L)
	if err != nil {
		return "", err
	}
	r, err := c.expr(x.R)
	if err != nil {
		return "", err
	}
	op := x.Op
	if x.Not {
		op = "NOT " + op
	}
	return l + " " + op + " " + r, nil
}

// temporalPredicate compiles a period relation. L = [lb, le), R = [rb, re).
func temporalPredicate(op string, not bool, l, r periodExpr) string {
	lb, le, rb, re := l.begin, l.end, r.begin, r.end
	var p string
	switch op {
	case "PRECEDES":
		if not {
			return "(" + le + " >= " + rb + ")"
		}
		p = le + " < " + rb
	case "CONTAINS":
		p = lb + " <= " + rb + " AND " + re + " <= " + le
	case "MEETS":
		p = le + " = " + rb
	case "OVERLAPS":
		p = "(" + lb + " <= " + rb + " AND " + rb + " < " + le + ") OR (" + rb + " <= " + lb + " AND " + lb + " < " + re + ")"
	}
	if not {
		return "NOT (" + p + ")"
	}
	return "(" + p + ")"
}

func (c *compiler) requirePeriod(e ast.Expr) (periodExpr, error) {
	p, ok, err := c.period(e)
	if err != nil {
		return periodExpr{}, err
	}
	if !ok {
		return periodExpr{}, syntaxErrorf(e.Text(), "expected a period or an instant")
	}
	return p, nil
}

// period renders e as a period when it denotes one. Instants count as
// periods with begin == end.
func (c *compiler) period(e ast.Expr) (periodExpr, bool, error) {
	switch x := e.(type) {
	case *ast.Paren:
		return c.period(x.X)

	case *ast.Valid:
		b, err := c.resolve(x.Ref, x.Text())
		if err != nil {
			return periodExpr{}, false, err
		}
		switch b.valid {
		case catalog.ValidState:
			return periodExpr{begin: b.col(catalog.ColVTS), end: b.col(catalog.ColVTE), scale: b.scale}, true, nil
		case catalog.ValidEvent:
			at := b.col(catalog.ColVTS)
			return periodExpr{begin: at, end: at, scale: b.scale, event: true}, true, nil
		}
		return periodExpr{}, false, &NoTemporalSupportError{Table: b.table, Dimension: "valid time", Construct: x.Text()}

	case *ast.Transaction:
		b, err := c.resolve(x.Ref, x.Text())
		if err != nil {
			return periodExpr{}, false, err
		}
		if !b.transaction {
			return periodExpr{}, false, &NoTemporalSupportError{Table: b.table, Dimension: "transaction time", Construct: x.Text()}
		}
		return periodExpr{begin: b.col(catalog.ColTTS), end: b.col(catalog.ColTTE), scale: temporal.Second}, true, nil

	case *ast.PeriodLit:
		p, err := c.t.eval.Period(x, temporal.Second)
		if err != nil {
			return periodExpr{}, false, evalError(x.Text(), err)
		}
		return periodExpr{begin: itoa(p.Begin), end: itoa(p.End), scale: temporal.Second}, true, nil

	case *ast.InstantLit:
		at, err := c.t.eval.Instant(x, temporal.Second)
		if err != nil {
			return periodExpr{}, false, evalError(x.Text(), err)
		}
		return periodExpr{begin: itoa(at), end: itoa(at), scale: temporal.Second, event: true}, true, nil

	case *ast.Literal:
		if x.Kind != ast.LitDateTime && x.Kind != ast.LitString {
			return periodExpr{}, false, nil
		}
		at, err := temporal.ParseInstant(x.Value)
		if err != nil {
			return periodExpr{}, false, nil
		}
		return periodExpr{begin: itoa(at), end: itoa(at), scale: temporal.Second, event: true}, true, nil

	case *ast.Intersect:
		a, err := c.requirePeriod(x.A)
		if err != nil {
			return periodExpr{}, false, err
		}
		b, err := c.requirePeriod(x.B)
		if err != nil {
			return periodExpr{}, false, err
		}
		return periodExpr{
			begin: "CASE WHEN " + a.begin + " > " + b.begin + " THEN " + a.begin + " ELSE " + b.begin + " END",
			end:   "CASE WHEN " + a.end + " < " + b.end + " THEN " + a.end + " ELSE " + b.end + " END",
			scale: a.scale,
		}, true, nil
	}
	return periodExpr{}, false, nil
}

func (c *compiler) resolve(ref, near string) (*binding, error) {
	b := c.scope.find(ref)
	if b == nil {
		return nil, syntaxErrorf(near, "unknown table reference %s", ref)
	}
	return b, nil
}

// interval renders CAST(p AS INTERVAL scale) as the length of p in chronons.
func (c *compiler) interval(x *ast.Cast) (string, error) {
	p, err := c.requirePeriod(x.X)
	if err != nil {
		return "", err
	}
	scale, err := temporal.ParseScale(x.Scale)
	if err != nil {
		return "", err
	}
	scale = scale.OrDefault(p.scale.OrDefault(temporal.Second))
	return "((" + p.end + ") - (" + p.begin + ")) / " + strconv.FormatInt(scale.Chronons(), 10), nil
}

func (c *compiler) caseExpr(x *ast.Case) (string, error) {
	var sb strings.Builder
	sb.WriteString("CASE")
	if x.Operand != nil {
		op, err := c.expr(x.Operand)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + op)
	}
	for _, w := range x.Whens {
		cond, err := c.expr(w.Cond)
		if err != nil {
			return "", err
		}
		then, err := c.expr(w.Then)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHEN " + cond + " THEN " + then)
	}
	if x.Else != nil {
		e, err := c.expr(x.Else)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ELSE " + e)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

// markTransactionRefs flags the items of this level whose TRANSACTION()
// appears in where.
func markTransactionRefs(s *scope, where ast.Expr) {
	ast.Walk(where, func(n ast.Expr) bool {
		x, ok := n.(*ast.Transaction)
		if !ok {
			return true
		}
		for _, b := range s.bindings {
			if b.matches(x.Ref) {
				b.txReferenced = true
				break
			}
		}
		return true
	})
}

// and joins the non-empty conditions with AND.
func and(conds ...string) string {
	var parts []string
	for _, c := range conds {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " AND ")
}

// paren wraps a non-empty condition in parentheses.
func paren(cond string) string {
	if cond == "" {
		return ""
	}
	return "(" + cond + ")"
}

func whereClause(cond string) string {
	if cond == "" {
		return ""
	}
	return " WHERE " + cond
}
