package parser

import (
	"strings"

	"github.com/roach88/tsql2/internal/ast"
)

var comparisonOps = map[string]bool{
	"=": true, "<>": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// parseExpr parses a full boolean expression.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	start := p.peek().Pos
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.spanFrom(start), Op: "OR", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	start := p.peek().Pos
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.spanFrom(start), Op: "AND", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	start := p.peek().Pos
	if p.peekKeyword("NOT") && !p.peekKeyword("NOT", "EXISTS") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Span: p.spanFrom(start), Op: "NOT", X: x}, nil
	}
	return p.parsePredicate()
}

// parsePredicate parses comparisons, the temporal relations and the SQL
// predicates IS NULL, BETWEEN, IN and LIKE.
func (p *Parser) parsePredicate() (ast.Expr, error) {
	start := p.peek().Pos
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.Type == OPERATOR && comparisonOps[tok.Value] {
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Span: p.spanFrom(start), Op: tok.Value, L: left, R: right}, nil
	}

	if p.acceptKeyword("IS") {
		not := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &ast.IsNull{Span: p.spanFrom(start), X: left, Not: not}, nil
	}

	not := false
	if p.peekKeyword("NOT") {
		nextTok := p.peekN(1)
		if nextTok.Type == IDENT {
			switch strings.ToUpper(nextTok.Value) {
			case "BETWEEN", "IN", "LIKE", "PRECEDES", "MEETS", "OVERLAPS", "CONTAINS":
				p.next()
				not = true
			}
		}
	}

	tok = p.peek()
	if tok.Type != IDENT {
		return left, nil
	}
	kw := strings.ToUpper(tok.Value)
	switch {
	case kw == "BETWEEN":
		p.next()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Between{Span: p.spanFrom(start), X: left, Lo: lo, Hi: hi, Not: not}, nil

	case kw == "IN":
		p.next()
		return p.parseInTail(start, left, not)

	case kw == "LIKE" || ast.TemporalOperator(kw):
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Span: p.spanFrom(start), Op: kw, Not: not, L: left, R: right}, nil
	}
	if not {
		return nil, p.errorf("expected predicate after NOT")
	}
	return left, nil
}

func (p *Parser) parseInTail(start int, left ast.Expr, not bool) (ast.Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	in := &ast.In{X: left, Not: not}
	if p.peekKeyword("SELECT") {
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		in.Subquery = sub
	} else {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			in.List = append(in.List, e)
			if !p.accept(COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	in.Span = p.spanFrom(start)
	return in, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	start := p.peek().Pos
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != OPERATOR || (tok.Value != "+" && tok.Value != "-" && tok.Value != "||") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.spanFrom(start), Op: tok.Value, L: left, R: right}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	start := p.peek().Pos
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != OPERATOR || (tok.Value != "*" && tok.Value != "/" && tok.Value != "%") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Span: p.spanFrom(start), Op: tok.Value, L: left, R: right}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	start := p.peek().Pos
	if tok := p.peek(); tok.Type == OPERATOR && (tok.Value == "-" || tok.Value == "+") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Span: p.spanFrom(start), Op: tok.Value, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.peek().Pos
	tok := p.peek()

	switch tok.Type {
	case NUMBER:
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitNumber, Value: tok.Value}, nil
	case STRING:
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitString, Value: tok.Value}, nil
	case DATETIME:
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitDateTime, Value: tok.Value}, nil
	case LPAREN:
		return p.parseParen()
	case QUOTED_IDENT:
		return p.parseColumnRef()
	case IDENT:
		// handled below
	default:
		return nil, p.errorf("expected an expression")
	}

	kw := strings.ToUpper(tok.Value)
	nextIsParen := p.peekN(1).Type == LPAREN
	switch {
	case kw == "NULL":
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitNull, Value: "NULL"}, nil
	case kw == "TRUE" || kw == "FALSE":
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitBool, Value: kw}, nil
	case kw == "NEW" && !nextIsParen && p.peekN(1).Type != DOT:
		p.next()
		return &ast.Literal{Span: p.spanFrom(start), Kind: ast.LitNew, Value: "NEW"}, nil
	case kw == "NOW" && p.peekN(1).Type != DOT:
		return p.parseInstant(true)
	case kw == "FOREVER":
		return p.parseInstant(true)
	case kw == "DATE" && isInstantStart(p.peekN(1)):
		return p.parseInstant(true)
	case kw == "PERIOD" && (p.peekN(1).Type == LBRACKET || p.peekN(1).Type == STRING):
		return p.parsePeriodLit()
	case kw == "VALID" && nextIsParen:
		p.next()
		ref, err := p.parseRefArg()
		if err != nil {
			return nil, err
		}
		return &ast.Valid{Span: p.spanFrom(start), Ref: ref}, nil
	case kw == "TRANSACTION" && nextIsParen:
		p.next()
		ref, err := p.parseRefArg()
		if err != nil {
			return nil, err
		}
		return &ast.Transaction{Span: p.spanFrom(start), Ref: ref}, nil
	case kw == "INTERSECT" && nextIsParen:
		return p.parseIntersect()
	case kw == "CAST" && nextIsParen:
		return p.parseCast()
	case kw == "CASE":
		return p.parseCase()
	case kw == "EXISTS" || (kw == "NOT" && isKeyword(p.peekN(1), "EXISTS")):
		not := p.acceptKeyword("NOT")
		p.next()
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &ast.Exists{Span: p.spanFrom(start), Subquery: sub, Not: not}, nil
	case nextIsParen:
		return p.parseFuncCall()
	}
	return p.parseColumnRef()
}

func isInstantStart(tok Token) bool {
	switch tok.Type {
	case STRING, DATETIME, NUMBER:
		return true
	}
	return isKeyword(tok, "NOW") || isKeyword(tok, "FOREVER")
}

func (p *Parser) parseParen() (ast.Expr, error) {
	start := p.peek().Pos
	p.next()
	if p.peekKeyword("SELECT") {
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &ast.Subquery{Span: p.spanFrom(start), Select: sub}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &ast.Paren{Span: p.spanFrom(start), X: x}, nil
}

func (p *Parser) parseColumnRef() (ast.Expr, error) {
	start := p.peek().Pos
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	id := &ast.Ident{Name: name}
	if p.peek().Type == DOT && (p.peekN(1).Type == IDENT || p.peekN(1).Type == QUOTED_IDENT) {
		p.next()
		id.Qualifier = name
		id.Name, _ = p.parseIdent()
	}
	id.Span = p.spanFrom(start)
	return id, nil
}

// parseRefArg reads "(" name ")" for VALID and TRANSACTION.
func (p *Parser) parseRefArg() (string, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return "", err
	}
	ref, err := p.parseIdent()
	if err != nil {
		return "", err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return "", err
	}
	return ref, nil
}

func (p *Parser) parseIntersect() (ast.Expr, error) {
	start := p.peek().Pos
	p.next()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	a, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA); err != nil {
		return nil, err
	}
	b, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &ast.Intersect{Span: p.spanFrom(start), A: a, B: b}, nil
}

func (p *Parser) parseCast() (ast.Expr, error) {
	start := p.peek().Pos
	p.next()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	cast := &ast.Cast{X: x}
	if p.acceptKeyword("INTERVAL") {
		cast.Interval = true
		if tok := p.peek(); tok.Type == IDENT {
			cast.Scale = strings.ToUpper(p.next().Value)
		}
	} else {
		typeStart := p.peek().Pos
		toks, err := p.skipBalanced()
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			return nil, p.errorf("expected a type in CAST")
		}
		cast.Type = p.src.Text[typeStart:p.prevEnd()]
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	cast.Span = p.spanFrom(start)
	return cast, nil
}

func (p *Parser) parseCase() (ast.Expr, error) {
	start := p.peek().Pos
	p.next()
	c := &ast.Case{}
	if !p.peekKeyword("WHEN") {
		op, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Operand = op
	}
	for p.acceptKeyword("WHEN") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, ast.When{Cond: cond, Then: then})
	}
	if len(c.Whens) == 0 {
		return nil, p.errorf("CASE needs at least one WHEN")
	}
	if p.acceptKeyword("ELSE") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	c.Span = p.spanFrom(start)
	return c, nil
}

func (p *Parser) parseFuncCall() (ast.Expr, error) {
	start := p.peek().Pos
	name := p.next().Value
	p.next() // (
	fc := &ast.FuncCall{Name: name}
	if p.peek().Type != RPAREN {
		if p.acceptKeyword("DISTINCT") {
			fc.Distinct = true
		}
		for {
			if tok := p.peek(); tok.Type == OPERATOR && tok.Value == "*" {
				p.next()
				fc.Args = append(fc.Args, &ast.Star{Span: ast.Span{Src: p.src, Start: tok.Pos, End: tok.End}})
			} else {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				fc.Args = append(fc.Args, arg)
			}
			if !p.accept(COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	fc.Span = p.spanFrom(start)
	return fc, nil
}
