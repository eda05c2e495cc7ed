package resultset

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/tsql2/internal/temporal"
	"github.com/roach88/tsql2/internal/translate"
)

// decode produces the logical value of col. Periods become their rendered
// text, events their instant text; NULL stays nil.
func decode(raw []any, col translate.LayoutColumn) (any, error) {
	switch col.Kind {
	case translate.KindPeriod:
		p, ok, err := period(raw, col)
		if err != nil || !ok {
			return nil, err
		}
		return p.String(), nil
	case translate.KindEvent:
		at, ok, err := instant(raw[col.Index])
		if err != nil || !ok {
			return nil, err
		}
		return at.String(), nil
	}
	if b, ok := raw[col.Index].([]byte); ok {
		return string(b), nil
	}
	return raw[col.Index], nil
}

func period(raw []any, col translate.LayoutColumn) (temporal.Period, bool, error) {
	begin, ok, err := instant(raw[col.Index])
	if err != nil || !ok {
		return temporal.Period{}, false, err
	}
	end, ok, err := instant(raw[col.Companion])
	if err != nil || !ok {
		return temporal.Period{}, false, err
	}
	return temporal.Period{Begin: begin, End: end, Scale: col.Scale}, true, nil
}

// instant reads a temporal column. Engines hand back the stored integer in
// different Go types.
func instant(v any) (temporal.Instant, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return temporal.Instant(x), true, nil
	case int32:
		return temporal.Instant(x), true, nil
	case int:
		return temporal.Instant(x), true, nil
	case float64:
		return temporal.Instant(int64(x)), true, nil
	case time.Time:
		return temporal.FromTime(x), true, nil
	case []byte:
		return parseInstant(string(x))
	case string:
		return parseInstant(x)
	}
	return 0, false, fmt.Errorf("unexpected temporal value %T", v)
}

func parseInstant(s string) (temporal.Instant, bool, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("temporal value %q: %w", s, err)
	}
	return temporal.Instant(n), true, nil
}

// assign stores the value of col in dest. Period and event columns can also
// be scanned into temporal.Period and temporal.Instant.
func assign(dest any, raw []any, col translate.LayoutColumn) error {
	switch d := dest.(type) {
	case *temporal.Period:
		if col.Kind != translate.KindPeriod {
			return fmt.Errorf("%s column into *temporal.Period", col.Kind)
		}
		p, _, err := period(raw, col)
		*d = p
		return err
	case *temporal.Instant:
		if col.Kind == translate.KindSQL {
			return fmt.Errorf("%s column into *temporal.Instant", col.Kind)
		}
		at, _, err := instant(raw[col.Index])
		*d = at
		return err
	}

	v, err := decode(raw, col)
	if err != nil {
		return err
	}
	switch d := dest.(type) {
	case *any:
		*d = v
	case *string:
		*d = text(v)
	case *int64:
		n, err := strconv.ParseInt(text(v), 10, 64)
		if err != nil {
			return err
		}
		*d = n
	case *float64:
		f, err := strconv.ParseFloat(text(v), 64)
		if err != nil {
			return err
		}
		*d = f
	case sql.Scanner:
		return d.Scan(v)
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(temporal.Layout)
	}
	return fmt.Sprint(v)
}
