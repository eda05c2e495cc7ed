package translate

import (
	"strings"

	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// binding is one FROM item, or the target table of a DML statement.
type binding struct {
	// ref qualifies the item's columns in generated SQL.
	ref string
	// names are the spellings a statement may use to refer to the item.
	names []string
	// name is the logical table; table is the physical source, which differs
	// for coalesced items and is "" for subqueries.
	name  string
	table string
	alias string

	columns     []string
	valid       catalog.ValidSupport
	scale       temporal.Scale
	transaction bool

	// ident renders names in generated SQL; nil leaves them as they are.
	ident func(string) string

	// txReferenced is set when WHERE mentions TRANSACTION(ref); the implicit
	// current-version filter is then dropped for this item.
	txReferenced bool
}

func (b *binding) matches(name string) bool {
	for _, n := range b.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func (b *binding) col(name string) string {
	if b.ident == nil {
		return b.ref + "." + name
	}
	return b.ident(b.ref) + "." + b.ident(name)
}

func bindingFor(desc *catalog.TableDescriptor, alias string, ident func(string) string) *binding {
	b := &binding{
		ref:         desc.Name,
		names:       []string{desc.Name},
		name:        desc.Name,
		table:       desc.Name,
		alias:       alias,
		columns:     desc.Columns,
		valid:       desc.Valid,
		scale:       desc.ValidScale.OrDefault(temporal.Second),
		transaction: desc.HasTransaction(),
		ident:       ident,
	}
	if alias != "" {
		b.ref = alias
		b.names = []string{alias, desc.Name}
	}
	return b
}

// scope resolves table references. Subqueries get a child scope so that
// correlated references reach the outer query.
type scope struct {
	bindings []*binding
	parent   *scope
}

func (s *scope) find(name string) *binding {
	for sc := s; sc != nil; sc = sc.parent {
		for _, b := range sc.bindings {
			if b.matches(name) {
				return b
			}
		}
	}
	return nil
}

// validBindings returns the items of this level that carry valid time.
func (s *scope) validBindings() []*binding {
	var out []*binding
	for _, b := range s.bindings {
		if b.valid != catalog.ValidNone {
			out = append(out, b)
		}
	}
	return out
}
