package parser

import (
	"fmt"
	"strings"

	"github.com/roach88/tsql2/internal/ast"
)

// SyntaxError reports input the grammar does not accept.
type SyntaxError struct {
	Pos     int
	Near    string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("syntax error at offset %d near %q: %s", e.Pos, e.Near, e.Message)
}

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	src  *ast.Source
	toks []Token
	pos  int
}

func newParser(input string) *Parser {
	return &Parser{
		src:  &ast.Source{Text: input},
		toks: NewLexer(input).Tokens(),
	}
}

// Parse parses exactly one statement. A trailing semicolon is allowed.
func Parse(input string) (ast.Statement, error) {
	p := newParser(input)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.accept(SEMICOLON)
	if p.peek().Type != EOF {
		return nil, p.errorf("unexpected input after statement")
	}
	return stmt, nil
}

// ParseScript parses a semicolon separated list of statements.
func ParseScript(input string) ([]ast.Statement, error) {
	p := newParser(input)
	var stmts []ast.Statement
	for {
		for p.accept(SEMICOLON) {
		}
		if p.peek().Type == EOF {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.peek().Type != EOF && !p.accept(SEMICOLON) {
			return nil, p.errorf("expected ';' between statements")
		}
	}
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	tok := p.peek()
	if tok.Type != IDENT {
		return nil, p.errorf("expected a statement")
	}
	switch strings.ToUpper(tok.Value) {
	case "CREATE":
		return p.parseCreateTable()
	case "DROP":
		return p.parseDropTable()
	case "INSERT":
		return p.parseInsert()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	case "SELECT":
		return p.parseSelect()
	default:
		return nil, p.errorf("unsupported statement %s", strings.ToUpper(tok.Value))
	}
}

// --- token helpers ---

func (p *Parser) peek() Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(t TokenType) bool {
	if p.peek().Type == t {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != t {
		return tok, p.errorf("expected %s", t)
	}
	return p.next(), nil
}

func isKeyword(tok Token, kw string) bool {
	return tok.Type == IDENT && strings.EqualFold(tok.Value, kw)
}

func (p *Parser) peekKeyword(kws ...string) bool {
	for i, kw := range kws {
		if !isKeyword(p.peekN(i), kw) {
			return false
		}
	}
	return true
}

// acceptKeyword consumes the keyword sequence if all of it is present.
func (p *Parser) acceptKeyword(kws ...string) bool {
	if !p.peekKeyword(kws...) {
		return false
	}
	p.pos += len(kws)
	return true
}

func (p *Parser) expectKeyword(kws ...string) error {
	if !p.acceptKeyword(kws...) {
		return p.errorf("expected %s", strings.Join(kws, " "))
	}
	return nil
}

func (p *Parser) acceptOp(op string) bool {
	tok := p.peek()
	if tok.Type == OPERATOR && tok.Value == op {
		p.next()
		return true
	}
	return false
}

// prevEnd is the end offset of the last consumed token.
func (p *Parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End
}

func (p *Parser) spanFrom(start int) ast.Span {
	return ast.Span{Src: p.src, Start: start, End: p.prevEnd()}
}

func (p *Parser) errorf(format string, args ...any) error {
	tok := p.peek()
	near := ""
	if tok.Type != EOF {
		near = p.src.Text[tok.Pos:tok.End]
	}
	return &SyntaxError{Pos: tok.Pos, Near: near, Message: fmt.Sprintf(format, args...)}
}

// parseName reads an identifier, possibly schema qualified.
func (p *Parser) parseName() (string, error) {
	name, err := p.parseIdent()
	if err != nil {
		return "", err
	}
	for p.peek().Type == DOT && (p.peekN(1).Type == IDENT || p.peekN(1).Type == QUOTED_IDENT) {
		p.next()
		part, _ := p.parseIdent()
		name += "." + part
	}
	return name, nil
}

func (p *Parser) parseIdent() (string, error) {
	tok := p.peek()
	switch tok.Type {
	case IDENT, QUOTED_IDENT:
		p.next()
		return tok.Value, nil
	}
	return "", p.errorf("expected identifier")
}

func (p *Parser) parseIdentList() ([]string, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return names, nil
}

// parseAlias reads [AS] alias. Bare aliases must not be reserved words.
func (p *Parser) parseAlias() (string, error) {
	if p.acceptKeyword("AS") {
		tok := p.peek()
		if tok.Type == STRING {
			p.next()
			return tok.Value, nil
		}
		return p.parseIdent()
	}
	tok := p.peek()
	if tok.Type == QUOTED_IDENT || (tok.Type == IDENT && !reserved[strings.ToUpper(tok.Value)]) {
		p.next()
		return tok.Value, nil
	}
	return "", nil
}

// skipBalanced consumes tokens up to, not including, a ',' or ')' at depth 0
// and returns their source texts.
func (p *Parser) skipBalanced() ([]Token, error) {
	var toks []Token
	depth := 0
	for {
		tok := p.peek()
		switch tok.Type {
		case EOF:
			return nil, p.errorf("unterminated definition")
		case LPAREN:
			depth++
		case RPAREN:
			if depth == 0 {
				return toks, nil
			}
			depth--
		case COMMA:
			if depth == 0 {
				return toks, nil
			}
		}
		toks = append(toks, p.next())
	}
}

func (p *Parser) joinTokens(toks []Token) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = p.src.Text[tok.Pos:tok.End]
	}
	return strings.Join(parts, " ")
}
