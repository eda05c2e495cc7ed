package parser

import (
	"strconv"
	"strings"

	"github.com/roach88/tsql2/internal/ast"
)

// parseValidClause reads the VALID qualifier of INSERT, UPDATE and DELETE:
//
//	VALID PERIOD [b - e] | VALID PERIOD '[b - e]' | VALID [b - e]
//	VALID DATE <instant> | VALID <instant>
func (p *Parser) parseValidClause() (*ast.ValidClause, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("VALID"); err != nil {
		return nil, err
	}
	vc := &ast.ValidClause{}
	tok := p.peek()
	switch {
	case isKeyword(tok, "PERIOD"), tok.Type == LBRACKET,
		tok.Type == STRING && strings.HasPrefix(strings.TrimSpace(tok.Value), "["):
		period, err := p.parsePeriodLit()
		if err != nil {
			return nil, err
		}
		vc.Period = period
	default:
		p.acceptKeyword("DATE")
		lit, err := p.parseInstant(false)
		if err != nil {
			return nil, err
		}
		vc.Instant = lit
	}
	vc.Span = p.spanFrom(start)
	return vc, nil
}

// parsePeriodLit reads [PERIOD] [b - e] or [PERIOD] '[b - e]'.
func (p *Parser) parsePeriodLit() (*ast.PeriodLit, error) {
	start := p.peek().Pos
	p.acceptKeyword("PERIOD")

	if tok := p.peek(); tok.Type == STRING {
		p.next()
		sub := newParser(tok.Value)
		lit, err := sub.parsePeriodBody(true)
		if err != nil {
			return nil, p.wrapSub(tok, err)
		}
		if sub.peek().Type != EOF {
			return nil, p.wrapSub(tok, sub.errorf("unexpected input after period"))
		}
		lit.Span = p.spanFrom(start)
		return lit, nil
	}

	lit, err := p.parsePeriodBody(false)
	if err != nil {
		return nil, err
	}
	lit.Span = p.spanFrom(start)
	return lit, nil
}

// parsePeriodBody reads "[" begin "-" end "]". Inside a string literal the
// brackets may be omitted.
func (p *Parser) parsePeriodBody(optionalBrackets bool) (*ast.PeriodLit, error) {
	start := p.peek().Pos
	bracketed := p.accept(LBRACKET)
	if !bracketed && !optionalBrackets {
		return nil, p.errorf("expected '['")
	}
	begin, err := p.parseInstant(false)
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("-") {
		return nil, p.errorf("expected '-' between period bounds")
	}
	end, err := p.parseInstant(false)
	if err != nil {
		return nil, err
	}
	if bracketed {
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
	}
	return &ast.PeriodLit{Span: p.spanFrom(start), Begin: begin, End: end}, nil
}

// parseInstant reads one instant: a date literal, a quoted date, NOW with an
// optional offset, FOREVER, or DATE <instant>. When needScale is set an
// offset is only taken if a scale keyword follows it, so that NOW - 1 stays
// plain arithmetic in expressions.
func (p *Parser) parseInstant(needScale bool) (*ast.InstantLit, error) {
	start := p.peek().Pos
	tok := p.peek()
	switch {
	case tok.Type == DATETIME, tok.Type == NUMBER:
		p.next()
		return &ast.InstantLit{Span: p.spanFrom(start), Kind: ast.InstantAbsolute, Date: tok.Value}, nil

	case tok.Type == STRING:
		p.next()
		lit := p.instantFromString(tok.Value)
		lit.Span = p.spanFrom(start)
		return lit, nil

	case isKeyword(tok, "FOREVER"):
		p.next()
		return &ast.InstantLit{Span: p.spanFrom(start), Kind: ast.InstantForever}, nil

	case isKeyword(tok, "DATE"):
		p.next()
		lit, err := p.parseInstant(needScale)
		if err != nil {
			return nil, err
		}
		lit.Span = p.spanFrom(start)
		return lit, nil

	case isKeyword(tok, "NOW"):
		p.next()
		lit := &ast.InstantLit{Kind: ast.InstantNow}
		p.parseNowOffset(lit, needScale)
		lit.Span = p.spanFrom(start)
		return lit, nil
	}
	return nil, p.errorf("expected a date, NOW or FOREVER")
}

// parseNowOffset consumes "± n [SCALE]" after NOW when present.
func (p *Parser) parseNowOffset(lit *ast.InstantLit, needScale bool) {
	op := p.peek()
	num := p.peekN(1)
	if op.Type != OPERATOR || (op.Value != "+" && op.Value != "-") || num.Type != NUMBER {
		return
	}
	n, err := strconv.ParseInt(num.Value, 10, 64)
	if err != nil {
		return
	}
	scaleTok := p.peekN(2)
	hasScale := scaleTok.Type == IDENT && scaleKeywords[strings.TrimSuffix(strings.ToUpper(scaleTok.Value), "S")]
	if needScale && !hasScale {
		return
	}
	p.pos += 2
	if op.Value == "-" {
		n = -n
	}
	lit.Offset = n
	if hasScale {
		lit.Scale = strings.ToUpper(p.next().Value)
	}
}

// instantFromString interprets the content of a quoted instant. NOW and
// FOREVER are recognised; anything else is kept as absolute date text.
func (p *Parser) instantFromString(s string) *ast.InstantLit {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if upper == "FOREVER" {
		return &ast.InstantLit{Kind: ast.InstantForever}
	}
	if strings.HasPrefix(upper, "NOW") {
		sub := newParser(trimmed)
		if lit, err := sub.parseInstant(false); err == nil && sub.peek().Type == EOF {
			return lit
		}
	}
	return &ast.InstantLit{Kind: ast.InstantAbsolute, Date: trimmed}
}

func (p *Parser) wrapSub(tok Token, err error) error {
	if se, ok := err.(*SyntaxError); ok {
		return &SyntaxError{Pos: tok.Pos + 1 + se.Pos, Near: se.Near, Message: se.Message}
	}
	return err
}
