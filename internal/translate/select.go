package translate

import (
	"context"
	"strconv"
	"strings"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
)

var aggregates = map[string]bool{
	"AVG":          true,
	"COUNT":        true,
	"GROUP_CONCAT": true,
	"MAX":          true,
	"MIN":          true,
	"STRING_AGG":   true,
	"SUM":          true,
	"TOTAL":        true,
}

// projection accumulates the physical select list and its layout.
type projection struct {
	items   []string
	visible []LayoutColumn
	hidden  []LayoutColumn
	// names are the output column names a FROM subquery exposes.
	names []string
}

func (p *projection) scalar(sql, label string) {
	p.visible = append(p.visible, LayoutColumn{Label: label, Kind: KindSQL, Index: len(p.items), Companion: -1})
	p.items = append(p.items, sql)
	p.names = append(p.names, label)
}

func (p *projection) period(pe periodExpr, label string, src *TableRef) {
	col := LayoutColumn{Label: label, Scale: pe.scale, Index: len(p.items), Companion: -1, Source: src}
	p.items = append(p.items, pe.begin)
	if pe.event {
		col.Kind = KindEvent
	} else {
		col.Kind = KindPeriod
		col.Companion = len(p.items)
		p.items = append(p.items, pe.end)
	}
	p.visible = append(p.visible, col)
}

func (p *projection) hide(sql, label string) {
	p.hidden = append(p.hidden, LayoutColumn{Label: label, Kind: KindSQL, Index: len(p.items), Companion: -1, Hidden: true})
	p.items = append(p.items, sql+" AS "+label)
}

// system hides an explicitly selected timestamp column. A FROM subquery
// still exposes it by name.
func (p *projection) system(sql, label string) {
	p.hide(sql, label)
	p.names = append(p.names, label)
}

func (p *projection) layout() *Layout {
	l := &Layout{Physical: len(p.items)}
	for _, c := range p.visible {
		l.add(c)
	}
	for _, c := range p.hidden {
		l.add(c)
	}
	return l
}

// query translates a top-level SELECT.
func (t *Translator) query(ctx context.Context, s *ast.Select) (*Result, error) {
	sql, proj, err := t.selectSQL(ctx, s, nil, false)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindQuery, Statements: []string{sql}, Layout: proj.layout()}, nil
}

// subquery translates a nested SELECT. Its rows are distinct and carry no
// hidden columns; parent resolves correlated references.
func (t *Translator) subquery(ctx context.Context, s *ast.Select, parent *scope) (string, error) {
	sql, _, err := t.selectSQL(ctx, s, parent, true)
	return sql, err
}

func (t *Translator) selectSQL(ctx context.Context, s *ast.Select, parent *scope, sub bool) (string, *projection, error) {
	sc := &scope{parent: parent}
	c := &compiler{t: t, ctx: ctx, scope: sc}

	sources := make([]string, len(s.From))
	for i, f := range s.From {
		b, src, err := t.fromItem(ctx, f, parent)
		if err != nil {
			return "", nil, err
		}
		sc.bindings = append(sc.bindings, b)
		sources[i] = src
	}
	markTransactionRefs(sc, s.Where)

	filters := make([]string, len(sc.bindings))
	for i, b := range sc.bindings {
		if b.transaction && !b.txReferenced {
			filters[i] = b.col(catalog.ColTTE) + " > " + itoa(t.now)
		}
	}

	proj := &projection{}
	for _, item := range s.Items {
		if err := c.selectItem(proj, item); err != nil {
			return "", nil, err
		}
	}

	grouped := len(s.GroupBy) > 0 || s.Having != nil || hasAggregate(s.Items)
	if !sub && s.Mode != ast.SelectSnapshot && !grouped {
		valid := sc.validBindings()
		for n, b := range valid {
			label := "VALID"
			if len(valid) > 1 {
				label = "VALID(" + b.ref + ")"
			}
			suffix := "__" + strconv.Itoa(n+1)
			start := len(proj.items)
			proj.hide(b.col(catalog.ColVTS), catalog.ColVTS+suffix)
			col := LayoutColumn{
				Label:     label,
				Kind:      KindEvent,
				Scale:     b.scale,
				Index:     start,
				Companion: -1,
				Source:    &TableRef{Table: b.name, Alias: b.alias},
			}
			if b.valid == catalog.ValidState {
				proj.hide(b.col(catalog.ColVTE), catalog.ColVTE+suffix)
				col.Kind = KindPeriod
				col.Companion = start + 1
			}
			proj.visible = append(proj.visible, col)
		}
	}
	if len(proj.items) == 0 {
		return "", nil, syntaxErrorf(s.Text(), "empty select list")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if sub || s.Mode != ast.SelectDefault {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(proj.items, ", "))

	if len(s.From) > 0 {
		sb.WriteString(" FROM ")
		var where []string
		for i, f := range s.From {
			if i > 0 {
				sb.WriteString(joinKeyword(f.Join))
			}
			sb.WriteString(sources[i])
			switch f.Join {
			case ast.JoinInner, ast.JoinLeft:
				on, err := c.expr(f.On)
				if err != nil {
					return "", nil, err
				}
				if f.Join == ast.JoinLeft {
					on = conjoin(on, filters[i])
				} else {
					where = append(where, filters[i])
				}
				if on != "" {
					sb.WriteString(" ON " + on)
				}
			default:
				where = append(where, filters[i])
			}
		}
		cond, err := c.expr(s.Where)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(whereClause(conjoin(cond, where...)))
	} else if s.Where != nil {
		cond, err := c.expr(s.Where)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(whereClause(cond))
	}

	if len(s.GroupBy) > 0 {
		group, err := c.list(s.GroupBy)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" GROUP BY " + group)
	}
	if s.Having != nil {
		having, err := c.expr(s.Having)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" HAVING " + having)
	}
	if len(s.OrderBy) > 0 {
		order, err := c.orderBy(s.OrderBy)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" ORDER BY " + order)
	}
	if s.Limit != nil {
		limit, err := c.expr(s.Limit)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" LIMIT " + limit)
	}
	if s.Offset != nil {
		offset, err := c.expr(s.Offset)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" OFFSET " + offset)
	}
	return sb.String(), proj, nil
}

// fromItem binds one FROM item and renders its source. FROM subqueries see
// only the enclosing query's scope, never their siblings.
func (t *Translator) fromItem(ctx context.Context, f ast.FromItem, parent *scope) (*binding, string, error) {
	if f.Subquery != nil {
		sql, proj, err := t.selectSQL(ctx, f.Subquery, parent, true)
		if err != nil {
			return nil, "", err
		}
		b := &binding{
			ref:     f.Alias,
			names:   []string{f.Alias},
			name:    f.Alias,
			alias:   f.Alias,
			columns: proj.names,
		}
		return b, "(" + sql + ") AS " + f.Alias, nil
	}

	desc, err := t.lookup(ctx, f.Table)
	if err != nil {
		return nil, "", err
	}
	b := bindingFor(desc, f.Alias, t.dialect.Ident)
	if f.Coalesced() {
		temp, cols, err := t.coalesce(ctx, desc, f)
		if err != nil {
			return nil, "", err
		}
		b.table = temp
		b.columns = cols
		b.transaction = false
		return b, temp + " AS " + t.dialect.Ident(b.ref), nil
	}
	if f.Alias != "" {
		return b, t.dialect.Ident(desc.Name) + " AS " + t.dialect.Ident(f.Alias), nil
	}
	return b, t.dialect.Ident(desc.Name), nil
}

func (c *compiler) selectItem(proj *projection, item ast.SelectItem) error {
	if item.Star {
		bindings := c.scope.bindings
		if item.Qualifier != "" {
			b := c.scope.find(item.Qualifier)
			if b == nil {
				return syntaxErrorf(item.Text(), "unknown table reference %s", item.Qualifier)
			}
			bindings = []*binding{b}
		}
		for _, b := range bindings {
			for _, col := range b.columns {
				proj.scalar(b.col(col), col)
			}
		}
		return nil
	}

	if isPeriod(item.Expr) {
		pe, err := c.requirePeriod(item.Expr)
		if err != nil {
			return err
		}
		label := item.Alias
		if label == "" {
			label = item.Expr.Text()
		}
		proj.period(pe, label, nil)
		return nil
	}

	sql, err := c.expr(item.Expr)
	if err != nil {
		return err
	}
	label := item.Alias
	if id, ok := item.Expr.(*ast.Ident); ok && catalog.IsTemporalColumn(id.Name) {
		// Timestamps stay internal even when named explicitly.
		if label == "" {
			label = strings.ToUpper(id.Name)
		}
		proj.system(sql, label)
		return nil
	}
	switch {
	case label != "":
		sql += " AS " + label
	case isIdent(item.Expr):
		label = item.Expr.(*ast.Ident).Name
	default:
		label = item.Expr.Text()
	}
	proj.scalar(sql, label)
	return nil
}

// orderBy sorts periods by begin, then end.
func (c *compiler) orderBy(items []ast.OrderItem) (string, error) {
	var parts []string
	for _, o := range items {
		dir := ""
		if o.Desc {
			dir = " DESC"
		}
		if isPeriod(o.Expr) {
			pe, err := c.requirePeriod(o.Expr)
			if err != nil {
				return "", err
			}
			parts = append(parts, pe.begin+dir)
			if !pe.event {
				parts = append(parts, pe.end+dir)
			}
			continue
		}
		e, err := c.expr(o.Expr)
		if err != nil {
			return "", err
		}
		parts = append(parts, e+dir)
	}
	return strings.Join(parts, ", "), nil
}

// isPeriod reports whether e is a period-valued construct in a select list.
func isPeriod(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Paren:
		return isPeriod(x.X)
	case *ast.Valid, *ast.Transaction, *ast.PeriodLit, *ast.Intersect:
		return true
	}
	return false
}

func isIdent(e ast.Expr) bool {
	_, ok := e.(*ast.Ident)
	return ok
}

func hasAggregate(items []ast.SelectItem) bool {
	found := false
	for _, item := range items {
		ast.Walk(item.Expr, func(n ast.Expr) bool {
			if f, ok := n.(*ast.FuncCall); ok && aggregates[strings.ToUpper(f.Name)] {
				found = true
			}
			return !found
		})
	}
	return found
}

func joinKeyword(k ast.JoinKind) string {
	switch k {
	case ast.JoinInner:
		return " JOIN "
	case ast.JoinLeft:
		return " LEFT JOIN "
	case ast.JoinCross:
		return " CROSS JOIN "
	default:
		return ", "
	}
}

// conjoin appends implicit conditions to a user condition.
func conjoin(user string, extra ...string) string {
	rest := and(extra...)
	if rest == "" {
		return user
	}
	return and(paren(user), rest)
}
