package translate

import (
	"strings"

	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// rewriter generates the physical statements of a temporal UPDATE or DELETE
// on one table. Versions are split at the boundaries of the affected period;
// on transaction-time tables nothing is overwritten in place: superseded
// versions are closed at now and replacements are staged under Pending
// before being published.
type rewriter struct {
	table string
	cols  []string
	tcols []string
	// cond is the user's WHERE, parenthesised, or "".
	cond string
	// set maps folded column names to assigned expressions.
	set   map[string]string
	ident func(string) string

	now     string
	forever string
	pending string
}

func (t *Translator) rewriter(desc *catalog.TableDescriptor, cond string) *rewriter {
	return &rewriter{
		table:   t.dialect.Ident(desc.Name),
		cols:    desc.Columns,
		tcols:   desc.TemporalColumns(),
		cond:    cond,
		now:     itoa(t.now),
		forever: itoa(temporal.Forever),
		pending: itoa(Pending),
		ident:   t.dialect.Ident,
	}
}

// values returns the column list of a copied version, with assignments
// applied when assign is set.
func (r *rewriter) values(assign bool) []string {
	out := make([]string, len(r.cols))
	for i, col := range r.cols {
		out[i] = r.ident(col)
		if assign {
			if v, ok := r.set[catalog.Fold(col)]; ok {
				out[i] = v
			}
		}
	}
	return out
}

func (r *rewriter) assignments() []string {
	var out []string
	for _, col := range r.cols {
		if v, ok := r.set[catalog.Fold(col)]; ok {
			out = append(out, r.ident(col)+" = "+v)
		}
	}
	return out
}

// copyVersions inserts a copy of every version matching conds and the user
// condition, with tvals for the temporal columns.
func (r *rewriter) copyVersions(assign bool, tvals []string, conds ...string) string {
	cols := make([]string, 0, len(r.cols)+len(r.tcols))
	for _, col := range r.cols {
		cols = append(cols, r.ident(col))
	}
	cols = append(cols, r.tcols...)
	vals := append(r.values(assign), tvals...)
	return "INSERT INTO " + r.table + " (" + strings.Join(cols, ", ") + ")" +
		" SELECT " + strings.Join(vals, ", ") +
		" FROM " + r.table + whereClause(and(and(conds...), r.cond))
}

// updateSet applies the user's assignments, followed by extra assignments,
// to the rows matching cond.
func (r *rewriter) updateSet(extra []string, cond string) string {
	set := append(r.assignments(), extra...)
	return "UPDATE " + r.table + " SET " + strings.Join(set, ", ") + whereClause(cond)
}

func (r *rewriter) current() string {
	return catalog.ColTTE + " = " + r.forever
}

func (r *rewriter) close(conds ...string) string {
	return "UPDATE " + r.table + " SET " + catalog.ColTTE + " = " + r.now +
		whereClause(and(and(conds...), r.cond))
}

// degenerate removes versions closed in the instant they were recorded.
func (r *rewriter) degenerate() string {
	return "DELETE FROM " + r.table + " WHERE " +
		catalog.ColTTE + " = " + r.now + " AND " + catalog.ColTTS + " >= " + catalog.ColTTE
}

func (r *rewriter) publish() string {
	return "UPDATE " + r.table + " SET " + catalog.ColTTE + " = " + r.forever +
		" WHERE " + catalog.ColTTE + " = " + r.pending
}

func lt(col, v string) string { return col + " < " + v }
func gt(col, v string) string { return col + " > " + v }

func maxOf(col, v string) string {
	return "CASE WHEN " + col + " < " + v + " THEN " + v + " ELSE " + col + " END"
}

func minOf(col, v string) string {
	return "CASE WHEN " + col + " > " + v + " THEN " + v + " ELSE " + col + " END"
}

func eventIn(p temporal.Period) []string {
	return []string{
		catalog.ColVTS + " >= " + itoa(p.Begin),
		catalog.ColVTS + " < " + itoa(p.End),
	}
}

// stateDelete removes [S, E) from every matching version: a version spanning
// the whole period is split in two, versions reaching into it are trimmed
// and versions inside it are removed.
func (r *rewriter) stateDelete(p temporal.Period) []string {
	s, e := itoa(p.Begin), itoa(p.End)
	vts, vte := catalog.ColVTS, catalog.ColVTE
	return []string{
		r.copyVersions(false, []string{e, vte}, lt(vts, s), gt(vte, e)),
		"UPDATE " + r.table + " SET " + vte + " = " + s + whereClause(and(lt(vts, s), gt(vte, s), r.cond)),
		"UPDATE " + r.table + " SET " + vts + " = " + e + whereClause(and(lt(vts, e), gt(vte, e), r.cond)),
		"DELETE FROM " + r.table + whereClause(and(vts+" >= "+s, vte+" <= "+e, r.cond)),
	}
}

// stateUpdate keeps the parts of each matching version outside [S, E) and
// applies the assignments to the part inside it.
func (r *rewriter) stateUpdate(p temporal.Period) []string {
	s, e := itoa(p.Begin), itoa(p.End)
	vts, vte := catalog.ColVTS, catalog.ColVTE
	return []string{
		r.copyVersions(false, []string{vts, s}, lt(vts, s), gt(vte, s)),
		r.copyVersions(false, []string{e, vte}, lt(vts, e), gt(vte, e)),
		r.updateSet([]string{vts + " = " + maxOf(vts, s), vte + " = " + minOf(vte, e)},
			and(lt(vts, e), gt(vte, s), r.cond)),
	}
}

func (r *rewriter) eventDelete(p temporal.Period) []string {
	return []string{"DELETE FROM " + r.table + whereClause(and(append(eventIn(p), r.cond)...))}
}

func (r *rewriter) eventUpdate(p temporal.Period) []string {
	return []string{r.updateSet(nil, and(append(eventIn(p), r.cond)...))}
}

func (r *rewriter) transactionDelete() []string {
	return []string{r.close(r.current()), r.degenerate()}
}

func (r *rewriter) transactionUpdate() []string {
	return []string{
		r.copyVersions(true, []string{r.now, r.pending}, r.current()),
		r.close(r.current()),
		r.degenerate(),
		r.publish(),
	}
}

// bitemporalDelete records that [S, E) no longer holds: the current versions
// overlapping it are closed and their parts outside it re-recorded.
func (r *rewriter) bitemporalDelete(p temporal.Period) []string {
	s, e := itoa(p.Begin), itoa(p.End)
	vts, vte := catalog.ColVTS, catalog.ColVTE
	cur := r.current()
	return []string{
		r.copyVersions(false, []string{vts, s, r.now, r.pending}, cur, lt(vts, s), gt(vte, s)),
		r.copyVersions(false, []string{e, vte, r.now, r.pending}, cur, lt(vts, e), gt(vte, e)),
		r.close(cur, lt(vts, e), gt(vte, s)),
		r.degenerate(),
		r.publish(),
	}
}

func (r *rewriter) bitemporalUpdate(p temporal.Period) []string {
	s, e := itoa(p.Begin), itoa(p.End)
	vts, vte := catalog.ColVTS, catalog.ColVTE
	cur := r.current()
	return []string{
		r.copyVersions(false, []string{vts, s, r.now, r.pending}, cur, lt(vts, s), gt(vte, s)),
		r.copyVersions(false, []string{e, vte, r.now, r.pending}, cur, lt(vts, e), gt(vte, e)),
		r.copyVersions(true, []string{maxOf(vts, s), minOf(vte, e), r.now, r.pending}, cur, lt(vts, e), gt(vte, s)),
		r.close(cur, lt(vts, e), gt(vte, s)),
		r.degenerate(),
		r.publish(),
	}
}

// bitemporalNonSequencedUpdate re-records every matching current version
// with the assignments applied and its valid time unchanged.
func (r *rewriter) bitemporalNonSequencedUpdate() []string {
	var tvals []string
	for _, col := range r.tcols {
		switch col {
		case catalog.ColTTS:
			tvals = append(tvals, r.now)
		case catalog.ColTTE:
			tvals = append(tvals, r.pending)
		default:
			tvals = append(tvals, col)
		}
	}
	return []string{
		r.copyVersions(true, tvals, r.current()),
		r.close(r.current()),
		r.degenerate(),
		r.publish(),
	}
}

func (r *rewriter) bitemporalEventDelete(p temporal.Period) []string {
	return []string{r.close(append([]string{r.current()}, eventIn(p)...)...), r.degenerate()}
}

func (r *rewriter) bitemporalEventUpdate(p temporal.Period) []string {
	conds := append([]string{r.current()}, eventIn(p)...)
	return []string{
		r.copyVersions(true, []string{catalog.ColVTS, r.now, r.pending}, conds...),
		r.close(conds...),
		r.degenerate(),
		r.publish(),
	}
}
