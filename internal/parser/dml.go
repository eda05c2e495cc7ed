package parser

import "github.com/roach88/tsql2/internal/ast"

func (p *Parser) parseInsert() (*ast.Insert, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("INSERT", "INTO"); err != nil {
		return nil, err
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.Insert{Table: name}

	if p.peek().Type == LPAREN {
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, e)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if stmt.Columns != nil && len(stmt.Columns) != len(stmt.Values) {
		return nil, p.errorf("%d columns but %d values", len(stmt.Columns), len(stmt.Values))
	}

	if p.peekKeyword("VALID") {
		vc, err := p.parseValidClause()
		if err != nil {
			return nil, err
		}
		stmt.Valid = vc
	}
	stmt.Span = p.spanFrom(start)
	return stmt, nil
}

func (p *Parser) parseUpdate() (*ast.Update, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.Update{Table: name}
	if stmt.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}

	if p.peekKeyword("VALID") {
		if stmt.Valid, err = p.parseValidClause(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		aStart := p.peek().Pos
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		// Allow alias.column on the left-hand side.
		if p.peek().Type == DOT {
			p.next()
			if col, err = p.parseIdent(); err != nil {
				return nil, err
			}
		}
		if !p.acceptOp("=") {
			return nil, p.errorf("expected '=' in SET")
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, ast.Assignment{Span: p.spanFrom(aStart), Column: col, Value: val})
		if !p.accept(COMMA) {
			break
		}
	}

	if stmt.Valid == nil && p.peekKeyword("VALID") {
		if stmt.Valid, err = p.parseValidClause(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	stmt.Span = p.spanFrom(start)
	return stmt, nil
}

func (p *Parser) parseDelete() (*ast.Delete, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("DELETE", "FROM"); err != nil {
		return nil, err
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.Delete{Table: name}
	if stmt.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}
	if p.peekKeyword("VALID") {
		if stmt.Valid, err = p.parseValidClause(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	stmt.Span = p.spanFrom(start)
	return stmt, nil
}
