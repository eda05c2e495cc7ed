package translate

import (
	"strings"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// createTable emits the base DDL with the temporal columns appended,
// followed by the catalog rows that describe the table.
func (t *Translator) createTable(s *ast.CreateTable) (*Result, error) {
	desc, err := t.describe(s)
	if err != nil {
		return nil, err
	}

	var defs []string
	var key []string
	for _, col := range s.Columns {
		typ := col.Type
		if col.Surrogate {
			typ = t.dialect.BigInt
		}
		def := t.dialect.Ident(col.Name) + " " + typ
		if col.Options != "" {
			def += " " + col.Options
		}
		defs = append(defs, def)
		if col.PrimaryKey {
			key = append(key, col.Name)
		}
	}
	for _, col := range desc.TemporalColumns() {
		defs = append(defs, col+" "+t.dialect.BigInt+" NOT NULL")
	}
	for _, c := range s.Constraints {
		if len(c.PrimaryKey) > 0 {
			key = append(key, c.PrimaryKey...)
			continue
		}
		defs = append(defs, c.Text())
	}
	if len(key) > 0 {
		// The engine's key is widened with the temporal columns so that
		// several versions of one logical row can coexist.
		physical := append(t.idents(key), desc.TemporalColumns()...)
		defs = append(defs, "PRIMARY KEY ("+strings.Join(physical, ", ")+")")
	}
	desc.Key = key

	stmts := []string{"CREATE TABLE " + t.dialect.Ident(s.Name) + " (" + strings.Join(defs, ", ") + ")"}
	stmts = append(stmts, t.catalog.RegisterStatements(desc)...)
	t.catalog.Invalidate(s.Name)

	return &Result{Kind: KindDDL, Statements: stmts}, nil
}

// describe builds the descriptor of a new table from its temporal clause.
func (t *Translator) describe(s *ast.CreateTable) (*catalog.TableDescriptor, error) {
	tc := s.Temporal
	desc := &catalog.TableDescriptor{
		Name:       s.Name,
		Surrogates: map[string]int64{},
	}

	switch tc.Valid {
	case ast.ValidState:
		desc.Valid = catalog.ValidState
	case ast.ValidEvent:
		desc.Valid = catalog.ValidEvent
	}
	if desc.HasValid() {
		scale, err := temporal.ParseScale(tc.Scale)
		if err != nil {
			return nil, err
		}
		desc.ValidScale = scale.OrDefault(temporal.Second)
	}

	if tc.Transaction {
		desc.Transaction = catalog.TransactionState
		desc.VacuumCutoff = t.now
	}
	if tc.Vacuum != nil {
		if !tc.Transaction {
			return nil, &NoTemporalSupportError{Table: s.Name, Dimension: "transaction time", Construct: "VACUUM"}
		}
		scale := desc.ValidScale.OrDefault(temporal.Second)
		if tc.Vacuum.NoBind {
			offset, err := t.eval.Offset(tc.Vacuum.Date, scale)
			if err != nil {
				return nil, evalError(tc.Vacuum.Text(), err)
			}
			desc.VacuumCutoff = temporal.Instant(offset)
			desc.VacuumRelative = true
		} else {
			at, err := t.eval.Instant(tc.Vacuum.Date, scale)
			if err != nil {
				return nil, evalError(tc.Vacuum.Text(), err)
			}
			desc.VacuumCutoff = at
		}
	}

	for _, col := range s.Columns {
		if catalog.IsTemporalColumn(col.Name) {
			return nil, syntaxErrorf(col.Text(), "column name %s is reserved", col.Name)
		}
		if col.Surrogate {
			desc.Surrogates[col.Name] = 1
		}
	}
	return desc, nil
}

// dropTable removes the catalog rows first and then the table itself.
func (t *Translator) dropTable(s *ast.DropTable) (*Result, error) {
	stmts := t.catalog.UnregisterStatements(s.Name)
	stmts = append(stmts, s.Text())
	t.catalog.Invalidate(s.Name)
	return &Result{Kind: KindDDL, Statements: stmts}, nil
}
