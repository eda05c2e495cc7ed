package parser

import (
	"strings"

	"github.com/roach88/tsql2/internal/ast"
)

var columnOptionStart = map[string]bool{
	"PRIMARY": true, "NOT": true, "NULL": true, "DEFAULT": true, "UNIQUE": true,
	"CHECK": true, "REFERENCES": true, "COLLATE": true, "CONSTRAINT": true,
	"GENERATED": true, "AUTOINCREMENT": true, "AUTO_INCREMENT": true,
}

var tableConstraintStart = map[string]bool{
	"PRIMARY": true, "CONSTRAINT": true, "UNIQUE": true, "FOREIGN": true, "CHECK": true,
}

var scaleKeywords = map[string]bool{
	"SECOND": true, "MINUTE": true, "HOUR": true, "DAY": true,
	"WEEK": true, "MONTH": true, "YEAR": true,
}

func (p *Parser) parseCreateTable() (*ast.CreateTable, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("CREATE", "TABLE"); err != nil {
		return nil, err
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	stmt := &ast.CreateTable{Name: name}

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type == IDENT && tableConstraintStart[strings.ToUpper(tok.Value)] {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			stmt.Constraints = append(stmt.Constraints, c)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if len(stmt.Columns) == 0 {
		return nil, p.errorf("table %s declares no columns", name)
	}

	if err := p.parseTemporalClause(&stmt.Temporal); err != nil {
		return nil, err
	}
	stmt.Span = p.spanFrom(start)
	return stmt, nil
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	start := p.peek().Pos
	name, err := p.parseIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	col := ast.ColumnDef{Name: name}

	// Type: one or more words, then an optional parenthesised argument list.
	typeStart := p.peek().Pos
	for p.peek().Type == IDENT && !columnOptionStart[strings.ToUpper(p.peek().Value)] {
		p.next()
	}
	if p.peek().Pos == typeStart {
		return ast.ColumnDef{}, p.errorf("expected a type for column %s", name)
	}
	if p.peek().Type == LPAREN {
		p.next()
		if _, err := p.skipBalanced(); err != nil {
			return ast.ColumnDef{}, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return ast.ColumnDef{}, err
		}
	}
	col.Type = p.src.Text[typeStart:p.prevEnd()]
	col.Surrogate = strings.EqualFold(col.Type, "SURROGATE")

	toks, err := p.skipBalanced()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	var rest []Token
	for i := 0; i < len(toks); i++ {
		if isKeyword(toks[i], "PRIMARY") && i+1 < len(toks) && isKeyword(toks[i+1], "KEY") {
			col.PrimaryKey = true
			i++
			continue
		}
		rest = append(rest, toks[i])
	}
	col.Options = p.joinTokens(rest)
	col.Span = p.spanFrom(start)
	return col, nil
}

func (p *Parser) parseTableConstraint() (ast.TableConstraint, error) {
	start := p.peek().Pos
	var c ast.TableConstraint
	if p.acceptKeyword("CONSTRAINT") {
		if _, err := p.parseIdent(); err != nil {
			return c, err
		}
	}
	if p.acceptKeyword("PRIMARY", "KEY") {
		cols, err := p.parseIdentList()
		if err != nil {
			return c, err
		}
		c.PrimaryKey = cols
	}
	if _, err := p.skipBalanced(); err != nil {
		return c, err
	}
	c.Span = p.spanFrom(start)
	return c, nil
}

// parseTemporalClause reads
//
//	[AS VALID [STATE|EVENT] [scale] [AND TRANSACTION] | AS TRANSACTION]
//	[VACUUM DATE <instant> | VACUUM NOBIND([DATE] <instant>)]
func (p *Parser) parseTemporalClause(tc *ast.TemporalClause) error {
	if p.acceptKeyword("AS") {
		switch {
		case p.acceptKeyword("VALID"):
			tc.Valid = ast.ValidState
			if p.acceptKeyword("EVENT") {
				tc.Valid = ast.ValidEvent
			} else {
				p.acceptKeyword("STATE")
			}
			if tok := p.peek(); tok.Type == IDENT && scaleKeywords[strings.ToUpper(tok.Value)] {
				tc.Scale = strings.ToUpper(p.next().Value)
			}
			if p.acceptKeyword("AND", "TRANSACTION") {
				tc.Transaction = true
			}
		case p.acceptKeyword("TRANSACTION"):
			tc.Transaction = true
		default:
			return p.errorf("expected VALID or TRANSACTION after AS")
		}
	}

	if p.peekKeyword("VACUUM") {
		start := p.next().Pos
		vc := &ast.VacuumClause{}
		if p.acceptKeyword("NOBIND") {
			vc.NoBind = true
			if _, err := p.expect(LPAREN); err != nil {
				return err
			}
			p.acceptKeyword("DATE")
			lit, err := p.parseInstant(false)
			if err != nil {
				return err
			}
			vc.Date = lit
			if _, err := p.expect(RPAREN); err != nil {
				return err
			}
		} else {
			if err := p.expectKeyword("DATE"); err != nil {
				return err
			}
			lit, err := p.parseInstant(false)
			if err != nil {
				return err
			}
			vc.Date = lit
		}
		vc.Span = p.spanFrom(start)
		tc.Vacuum = vc
	}
	return nil
}

func (p *Parser) parseDropTable() (*ast.DropTable, error) {
	start := p.peek().Pos
	if err := p.expectKeyword("DROP", "TABLE"); err != nil {
		return nil, err
	}
	stmt := &ast.DropTable{}
	if p.acceptKeyword("IF", "EXISTS") {
		stmt.IfExists = true
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	stmt.Name = name
	stmt.Span = p.spanFrom(start)
	return stmt, nil
}
