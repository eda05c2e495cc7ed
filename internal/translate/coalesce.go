package translate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/tsql2/internal/ast"
	"github.com/roach88/tsql2/internal/catalog"
)

// version is one scanned row of a coalescing source.
type version struct {
	values   []any
	vts, vte int64
}

// coalesce materialises table(cols): the current versions of the table
// projected on cols, with value-equal versions whose periods meet or overlap
// merged into one. The temporary table is registered for Teardown as soon
// as it exists.
func (t *Translator) coalesce(ctx context.Context, desc *catalog.TableDescriptor, f ast.FromItem) (string, []string, error) {
	if desc.Valid != catalog.ValidState {
		return "", nil, &NoTemporalSupportError{Table: desc.Name, Dimension: "state valid time", Construct: f.Text()}
	}
	cols := make([]string, len(f.Coalesce))
	for i, col := range f.Coalesce {
		name, ok := desc.Column(col)
		if !ok {
			return "", nil, syntaxErrorf(f.Text(), "table %s has no column %s", desc.Name, col)
		}
		cols[i] = name
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
	}
	temp := "_COALESCE_" + strings.ReplaceAll(id.String(), "-", "")
	physical := strings.Join(append(t.idents(cols), catalog.ColVTS, catalog.ColVTE), ", ")

	create := t.dialect.TempTable + " " + temp + " AS SELECT " + physical + " FROM " + t.dialect.Ident(desc.Name) + " WHERE 1 = 0"
	if _, err := t.q.ExecContext(ctx, create); err != nil {
		return "", nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
	}
	t.temps = append(t.temps, temp)

	versions, err := t.scanVersions(ctx, desc, cols)
	if err != nil {
		return "", nil, err
	}
	merged := mergeVersions(versions)

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	insert := t.dialect.Rebind("INSERT INTO " + temp + " (" + physical + ") VALUES (" + marks + ")")
	for _, v := range merged {
		args := append(append([]any{}, v.values...), v.vts, v.vte)
		if _, err := t.q.ExecContext(ctx, insert, args...); err != nil {
			return "", nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
		}
	}
	t.logger.Debug("coalesced table",
		"table", desc.Name,
		"temp", temp,
		"versions", len(versions),
		"rows", len(merged))
	return temp, cols, nil
}

func (t *Translator) scanVersions(ctx context.Context, desc *catalog.TableDescriptor, cols []string) ([]version, error) {
	var cond string
	if desc.HasTransaction() {
		cond = catalog.ColTTE + " > " + itoa(t.now)
	}
	names := t.idents(cols)
	order := strings.Join(append(append([]string{}, names...), catalog.ColVTS), ", ")
	query := "SELECT " + strings.Join(append(names, catalog.ColVTS, catalog.ColVTE), ", ") +
		" FROM " + t.dialect.Ident(desc.Name) + whereClause(cond) + " ORDER BY " + order

	rows, err := t.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
	}
	defer rows.Close()

	var out []version
	for rows.Next() {
		v := version{values: make([]any, len(cols))}
		dest := make([]any, len(cols)+2)
		for i := range v.values {
			dest[i] = &v.values[i]
		}
		dest[len(cols)] = &v.vts
		dest[len(cols)+1] = &v.vte
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("coalesce %s: %w", desc.Name, err)
	}
	return out, nil
}

// mergeVersions folds versions sorted by value then begin. A version whose
// values equal its predecessor's and which starts no later than the
// predecessor ends extends it.
func mergeVersions(versions []version) []version {
	var out []version
	for _, v := range versions {
		if n := len(out); n > 0 {
			cur := &out[n-1]
			if reflect.DeepEqual(cur.values, v.values) && v.vts <= cur.vte {
				if v.vte > cur.vte {
					cur.vte = v.vte
				}
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
