package ast

// Expr is a scalar, temporal or boolean expression.
type Expr interface {
	Node
	exprNode()
}

// Ident is a possibly qualified column reference.
type Ident struct {
	Span
	Qualifier string
	Name      string
}

// LiteralKind classifies literals.
type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitString
	LitNull
	LitBool
	LitDateTime
	// LitNew is the NEW keyword assigned to surrogate columns.
	LitNew
)

// Literal is a constant. Value holds the unquoted text.
type Literal struct {
	Span
	Kind  LiteralKind
	Value string
}

// Star is the * argument of COUNT(*).
type Star struct {
	Span
}

// FuncCall is name(args...).
type FuncCall struct {
	Span
	Name     string
	Args     []Expr
	Distinct bool
}

// Unary is a prefix operator: NOT, - or +.
type Unary struct {
	Span
	Op string
	X  Expr
}

// Binary covers comparison, arithmetic, logical and temporal operators.
// Temporal operators are PRECEDES, MEETS, OVERLAPS and CONTAINS. Not is set
// for the negated forms (NOT LIKE, NOT PRECEDES, ...).
type Binary struct {
	Span
	Op  string
	Not bool
	L   Expr
	R   Expr
}

// IsNull is x IS [NOT] NULL.
type IsNull struct {
	Span
	X   Expr
	Not bool
}

// Between is x [NOT] BETWEEN lo AND hi.
type Between struct {
	Span
	X   Expr
	Lo  Expr
	Hi  Expr
	Not bool
}

// In is x [NOT] IN (list) or x [NOT] IN (subquery).
type In struct {
	Span
	X        Expr
	List     []Expr
	Subquery *Select
	Not      bool
}

// Exists is [NOT] EXISTS (subquery).
type Exists struct {
	Span
	Subquery *Select
	Not      bool
}

// Subquery is a scalar subquery in expression position.
type Subquery struct {
	Span
	Select *Select
}

// Paren is a parenthesised expression.
type Paren struct {
	Span
	X Expr
}

// When is one WHEN ... THEN ... arm of a CASE.
type When struct {
	Cond Expr
	Then Expr
}

// Case is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type Case struct {
	Span
	Operand Expr
	Whens   []When
	Else    Expr
}

// Valid is VALID(ref): the valid-time period of a FROM item.
type Valid struct {
	Span
	Ref string
}

// Transaction is TRANSACTION(ref): the transaction-time period of a FROM item.
type Transaction struct {
	Span
	Ref string
}

// Cast is CAST(x AS type). Interval is set for CAST(period AS INTERVAL scale).
type Cast struct {
	Span
	X        Expr
	Type     string
	Interval bool
	Scale    string
}

// Intersect is INTERSECT(p1, p2).
type Intersect struct {
	Span
	A Expr
	B Expr
}

// InstantKind classifies instant literals.
type InstantKind int

const (
	InstantAbsolute InstantKind = iota
	InstantNow
	InstantForever
)

// InstantLit is an absolute date, NOW, NOW ± n [SCALE] or FOREVER. As an
// expression it is written DATE <literal>.
type InstantLit struct {
	Span
	Kind InstantKind
	// Date is the text of an absolute instant.
	Date string
	// Offset is the signed amount of a NOW ± n expression.
	Offset int64
	// Scale qualifies Offset; empty means the declared scale of the context.
	Scale string
}

// PeriodLit is PERIOD [begin - end] or PERIOD '[begin - end]'.
type PeriodLit struct {
	Span
	Begin *InstantLit
	End   *InstantLit
}

func (*Ident) exprNode()       {}
func (*Literal) exprNode()     {}
func (*Star) exprNode()        {}
func (*FuncCall) exprNode()    {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*IsNull) exprNode()      {}
func (*Between) exprNode()     {}
func (*In) exprNode()          {}
func (*Exists) exprNode()      {}
func (*Subquery) exprNode()    {}
func (*Paren) exprNode()       {}
func (*Case) exprNode()        {}
func (*Valid) exprNode()       {}
func (*Transaction) exprNode() {}
func (*Cast) exprNode()        {}
func (*Intersect) exprNode()   {}
func (*InstantLit) exprNode()  {}
func (*PeriodLit) exprNode()   {}

// TemporalOperator reports whether op is one of the TSQL2 period relations.
func TemporalOperator(op string) bool {
	switch op {
	case "PRECEDES", "MEETS", "OVERLAPS", "CONTAINS":
		return true
	}
	return false
}

// Walk calls fn for e and every expression below it, depth first, until fn
// returns false. Subqueries are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *FuncCall:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case *Unary:
		Walk(x.X, fn)
	case *Binary:
		Walk(x.L, fn)
		Walk(x.R, fn)
	case *IsNull:
		Walk(x.X, fn)
	case *Between:
		Walk(x.X, fn)
		Walk(x.Lo, fn)
		Walk(x.Hi, fn)
	case *In:
		Walk(x.X, fn)
		for _, a := range x.List {
			Walk(a, fn)
		}
	case *Paren:
		Walk(x.X, fn)
	case *Case:
		Walk(x.Operand, fn)
		for _, w := range x.Whens {
			Walk(w.Cond, fn)
			Walk(w.Then, fn)
		}
		Walk(x.Else, fn)
	case *Cast:
		Walk(x.X, fn)
	case *Intersect:
		Walk(x.A, fn)
		Walk(x.B, fn)
	}
}
