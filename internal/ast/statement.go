package ast

// Statement is a complete TSQL2 statement.
//
// Statement types:
//   - CreateTable
//   - DropTable
//   - Insert
//   - Update
//   - Delete
//   - Select
type Statement interface {
	Node
	statementNode()
}

// ValidKind is the valid-time support requested by CREATE TABLE.
type ValidKind int

const (
	ValidNone ValidKind = iota
	ValidState
	ValidEvent
)

// CreateTable is CREATE TABLE name (...) [AS VALID ...] [AND TRANSACTION] [VACUUM ...].
type CreateTable struct {
	Span
	Name        string
	Columns     []ColumnDef
	Constraints []TableConstraint
	Temporal    TemporalClause
}

// ColumnDef is one declared column.
type ColumnDef struct {
	Span
	Name string
	// Type is the declared type text, e.g. VARCHAR(10).
	Type string
	// Surrogate is set for the SURROGATE pseudo type.
	Surrogate bool
	// PrimaryKey is set for a column-level PRIMARY KEY.
	PrimaryKey bool
	// Options is the remaining column constraint text (NOT NULL, DEFAULT ...).
	Options string
}

// TableConstraint is a table-level constraint. PrimaryKey lists the columns of
// a PRIMARY KEY (...) constraint; any other constraint keeps only its text.
type TableConstraint struct {
	Span
	PrimaryKey []string
}

// TemporalClause is the AS VALID / AND TRANSACTION / VACUUM tail of CREATE TABLE.
type TemporalClause struct {
	Valid       ValidKind
	Scale       string
	Transaction bool
	Vacuum      *VacuumClause
}

// VacuumClause is VACUUM DATE <expr> or VACUUM NOBIND(DATE <expr>).
type VacuumClause struct {
	Span
	Date   *InstantLit
	NoBind bool
}

// DropTable is DROP TABLE [IF EXISTS] name.
type DropTable struct {
	Span
	Name     string
	IfExists bool
}

// Insert is INSERT INTO table [(cols)] VALUES (...) [VALID ...].
type Insert struct {
	Span
	Table   string
	Columns []string
	Values  []Expr
	Valid   *ValidClause
}

// ValidClause is the VALID qualifier of a DML statement: either a period or,
// for event tables, a single instant.
type ValidClause struct {
	Span
	Period  *PeriodLit
	Instant *InstantLit
}

// Assignment is column = value inside UPDATE ... SET.
type Assignment struct {
	Span
	Column string
	Value  Expr
}

// Update is UPDATE table SET ... [VALID PERIOD [...]] [WHERE ...].
type Update struct {
	Span
	Table string
	Alias string
	Set   []Assignment
	Valid *ValidClause
	Where Expr
}

// Delete is DELETE FROM table [VALID PERIOD [...]] [WHERE ...].
type Delete struct {
	Span
	Table string
	Alias string
	Valid *ValidClause
	Where Expr
}

// SelectMode distinguishes plain, SNAPSHOT and DISTINCT queries.
type SelectMode int

const (
	SelectDefault SelectMode = iota
	SelectSnapshot
	SelectDistinct
)

// Select is a TSQL2 query.
type Select struct {
	Span
	Mode    SelectMode
	Items   []SelectItem
	From    []FromItem
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderItem
	Limit   Expr
	Offset  Expr
}

// SelectItem is one projection. Star marks * or qualifier.*.
type SelectItem struct {
	Span
	Expr      Expr
	Alias     string
	Star      bool
	Qualifier string
}

// JoinKind is the join operator that attaches a FROM item to the previous ones.
type JoinKind int

const (
	JoinComma JoinKind = iota
	JoinInner
	JoinLeft
	JoinCross
)

// FromItem is a table, a coalesced table reference table(cols) or a subquery.
type FromItem struct {
	Span
	Table    string
	Coalesce []string
	Subquery *Select
	Alias    string
	Join     JoinKind
	On       Expr
}

// Ref returns the name under which columns of the item are qualified.
func (f FromItem) Ref() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Table
}

// Coalesced reports whether the item is a coalescing reference.
func (f FromItem) Coalesced() bool {
	return len(f.Coalesce) > 0
}

// OrderItem is an ORDER BY entry.
type OrderItem struct {
	Span
	Expr Expr
	Desc bool
}

func (*CreateTable) statementNode() {}
func (*DropTable) statementNode()   {}
func (*Insert) statementNode()      {}
func (*Update) statementNode()      {}
func (*Delete) statementNode()      {}
func (*Select) statementNode()      {}
