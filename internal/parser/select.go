package parser

import (
	"strings"

	"github.com/roach88/tsql2/internal/ast"
)

// parseSelect reads a full query:
//
//	SELECT [SNAPSHOT] [DISTINCT] items
//	  [FROM from_list] [WHERE expr] [GROUP BY exprs] [HAVING expr]
//	  [ORDER BY items] [LIMIT n [OFFSET m]]
func (p *Parser) parseSelect() (*ast.Select, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &ast.Select{}
	if p.acceptKeyword("SNAPSHOT") {
		sel.Mode = ast.SelectSnapshot
		p.acceptKeyword("DISTINCT")
	} else if p.acceptKeyword("DISTINCT") {
		sel.Mode = ast.SelectDistinct
	} else {
		p.acceptKeyword("ALL")
	}

	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	sel.Items = items

	if p.acceptKeyword("FROM") {
		if sel.From, err = p.parseFromList(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("WHERE") {
		if sel.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("GROUP", "BY") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if !p.accept(COMMA) {
				break
			}
		}
	}
	if p.acceptKeyword("HAVING") {
		if sel.Having, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("ORDER", "BY") {
		if sel.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("LIMIT") {
		if sel.Limit, err = p.parseAdditive(); err != nil {
			return nil, err
		}
		if p.acceptKeyword("OFFSET") {
			if sel.Offset, err = p.parseAdditive(); err != nil {
				return nil, err
			}
		}
	}
	sel.Span = p.spanFrom(start)
	return sel, nil
}

func (p *Parser) parseSelectItems() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.accept(COMMA) {
			return items, nil
		}
	}
}

func (p *Parser) parseSelectItem() (ast.SelectItem, error) {
	start := p.peek().Pos
	if tok := p.peek(); tok.Type == OPERATOR && tok.Value == "*" {
		p.next()
		return ast.SelectItem{Span: p.spanFrom(start), Star: true}, nil
	}
	if tok := p.peek(); (tok.Type == IDENT || tok.Type == QUOTED_IDENT) && p.peekN(1).Type == DOT {
		if star := p.peekN(2); star.Type == OPERATOR && star.Value == "*" {
			p.pos += 3
			return ast.SelectItem{Span: p.spanFrom(start), Star: true, Qualifier: tok.Value}, nil
		}
	}

	e, err := p.parseExpr()
	if err != nil {
		return ast.SelectItem{}, err
	}
	item := ast.SelectItem{Expr: e}
	if item.Alias, err = p.parseAlias(); err != nil {
		return ast.SelectItem{}, err
	}
	item.Span = p.spanFrom(start)
	return item, nil
}

func (p *Parser) parseFromList() ([]ast.FromItem, error) {
	first, err := p.parseFromItem(ast.JoinComma)
	if err != nil {
		return nil, err
	}
	items := []ast.FromItem{first}
	for {
		var join ast.JoinKind
		switch {
		case p.accept(COMMA):
			join = ast.JoinComma
		case p.acceptKeyword("JOIN"), p.acceptKeyword("INNER", "JOIN"):
			join = ast.JoinInner
		case p.acceptKeyword("LEFT", "OUTER", "JOIN"), p.acceptKeyword("LEFT", "JOIN"):
			join = ast.JoinLeft
		case p.acceptKeyword("CROSS", "JOIN"):
			join = ast.JoinCross
		default:
			return items, nil
		}
		item, err := p.parseFromItem(join)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// parseFromItem reads a table, a coalescing reference table(cols) or a
// parenthesised subquery, each with an optional alias and ON condition.
func (p *Parser) parseFromItem(join ast.JoinKind) (ast.FromItem, error) {
	start := p.peek().Pos
	item := ast.FromItem{Join: join}

	if p.peek().Type == LPAREN {
		p.next()
		sub, err := p.parseSelect()
		if err != nil {
			return item, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return item, err
		}
		item.Subquery = sub
	} else {
		name, err := p.parseName()
		if err != nil {
			return item, err
		}
		item.Table = name
		if p.peek().Type == LPAREN {
			cols, err := p.parseIdentList()
			if err != nil {
				return item, err
			}
			item.Coalesce = cols
		}
	}

	var err error
	if item.Alias, err = p.parseAlias(); err != nil {
		return item, err
	}
	if item.Subquery != nil && item.Alias == "" {
		return item, p.errorf("subquery in FROM needs an alias")
	}
	if join == ast.JoinInner || join == ast.JoinLeft {
		if err := p.expectKeyword("ON"); err != nil {
			return item, err
		}
		if item.On, err = p.parseExpr(); err != nil {
			return item, err
		}
	}
	item.Span = p.spanFrom(start)
	return item, nil
}

func (p *Parser) parseOrderBy() ([]ast.OrderItem, error) {
	var items []ast.OrderItem
	for {
		start := p.peek().Pos
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ast.OrderItem{Expr: e}
		if tok := p.peek(); tok.Type == IDENT {
			switch strings.ToUpper(tok.Value) {
			case "DESC":
				p.next()
				item.Desc = true
			case "ASC":
				p.next()
			}
		}
		item.Span = p.spanFrom(start)
		items = append(items, item)
		if !p.accept(COMMA) {
			return items, nil
		}
	}
}
