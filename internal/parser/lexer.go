package parser

import "strings"

// Lexer splits TSQL2 source into tokens.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over input. Unlike most SQL lexers the input is
// not case folded: spans must reproduce the original text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokens lexes the whole input. The last token is always EOF.
func (l *Lexer) Tokens() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Pos: l.pos, End: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case ',':
		return l.single(COMMA, start)
	case '.':
		if l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			return l.readNumber(start)
		}
		return l.single(DOT, start)
	case ';':
		return l.single(SEMICOLON, start)
	case '(':
		return l.single(LPAREN, start)
	case ')':
		return l.single(RPAREN, start)
	case '[':
		return l.single(LBRACKET, start)
	case ']':
		return l.single(RBRACKET, start)
	case '\'':
		return l.readString(start)
	case '"', '`':
		return l.readQuotedIdent(start, ch)
	}

	switch {
	case isDigit(ch):
		if tok, ok := l.readDateTime(start); ok {
			return tok
		}
		return l.readNumber(start)
	case isIdentStart(ch):
		return l.readIdent(start)
	case strings.IndexByte("=<>!+-*/%|", ch) >= 0:
		return l.readOperator(start)
	default:
		l.pos++
		return Token{Type: INVALID, Value: string(ch), Pos: start, End: l.pos}
	}
}

func (l *Lexer) single(t TokenType, start int) Token {
	l.pos++
	return Token{Type: t, Value: l.input[start:l.pos], Pos: start, End: l.pos}
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '-' && l.peekAt(1) == '-':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off < len(l.input) {
		return l.input[l.pos+off]
	}
	return 0
}

func (l *Lexer) readIdent(start int) Token {
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: IDENT, Value: l.input[start:l.pos], Pos: start, End: l.pos}
}

func (l *Lexer) readQuotedIdent(start int, quote byte) Token {
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.peekAt(1) == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: QUOTED_IDENT, Value: sb.String(), Pos: start, End: l.pos}
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{Type: INVALID, Value: l.input[start:], Pos: start, End: l.pos}
}

// readString reads a single-quoted literal; '' is an escaped quote.
func (l *Lexer) readString(start int) Token {
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.peekAt(1) == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: STRING, Value: sb.String(), Pos: start, End: l.pos}
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{Type: INVALID, Value: l.input[start:], Pos: start, End: l.pos}
}

func (l *Lexer) readNumber(start int) Token {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	return Token{Type: NUMBER, Value: l.input[start:l.pos], Pos: start, End: l.pos}
}

// readDateTime recognises YYYY-M[M]-D[D][ H[H]:M[M][:S[S]]]. A date needs
// both dashes, a time needs at least one colon; anything shorter is left to
// readNumber.
func (l *Lexer) readDateTime(start int) (Token, bool) {
	p := start
	digits := func(min, max int) bool {
		n := 0
		for p < len(l.input) && isDigit(l.input[p]) && n < max {
			p++
			n++
		}
		return n >= min && !(p < len(l.input) && isDigit(l.input[p]))
	}
	lit := func(c byte) bool {
		if p < len(l.input) && l.input[p] == c {
			p++
			return true
		}
		return false
	}

	if !digits(4, 4) || !lit('-') || !digits(1, 2) || !lit('-') || !digits(1, 2) {
		return Token{}, false
	}
	end := p
	// Optional time part.
	if lit(' ') && digits(1, 2) && lit(':') && digits(1, 2) {
		end = p
		if lit(':') && digits(1, 2) {
			end = p
		}
	}
	if end < len(l.input) && isIdentPart(l.input[end]) {
		return Token{}, false
	}
	l.pos = end
	return Token{Type: DATETIME, Value: l.input[start:end], Pos: start, End: end}, true
}

var twoCharOps = []string{"<=", ">=", "<>", "!=", "||"}

func (l *Lexer) readOperator(start int) Token {
	if l.pos+1 < len(l.input) {
		pair := l.input[l.pos : l.pos+2]
		for _, op := range twoCharOps {
			if pair == op {
				l.pos += 2
				return Token{Type: OPERATOR, Value: op, Pos: start, End: l.pos}
			}
		}
	}
	ch := l.input[l.pos]
	l.pos++
	if ch == '!' || ch == '|' {
		return Token{Type: INVALID, Value: string(ch), Pos: start, End: l.pos}
	}
	return Token{Type: OPERATOR, Value: string(ch), Pos: start, End: l.pos}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}
