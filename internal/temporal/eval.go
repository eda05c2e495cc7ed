package temporal

import (
	"fmt"

	"github.com/roach88/tsql2/internal/ast"
)

// Evaluator turns instant and period literals into values. Now is fixed for
// the lifetime of the evaluator, which is one statement translation.
type Evaluator struct {
	Now Instant
}

// NewEvaluator creates an evaluator bound to now.
func NewEvaluator(now Instant) Evaluator {
	return Evaluator{Now: now}
}

// Instant evaluates an instant literal. scale qualifies NOW ± n when the
// literal carries no scale of its own.
func (e Evaluator) Instant(lit *ast.InstantLit, scale Scale) (Instant, error) {
	if lit == nil {
		return 0, fmt.Errorf("missing instant")
	}
	switch lit.Kind {
	case ast.InstantForever:
		return Forever, nil
	case ast.InstantNow:
		if lit.Offset == 0 {
			return e.Now, nil
		}
		sc, err := e.offsetScale(lit, scale)
		if err != nil {
			return 0, err
		}
		return e.Now.Add(lit.Offset, sc), nil
	case ast.InstantAbsolute:
		return ParseInstant(lit.Date)
	default:
		return 0, fmt.Errorf("unknown instant kind %d", lit.Kind)
	}
}

// Offset evaluates NOW ± n [SCALE] as a signed number of seconds relative to
// now. Absolute instants yield their distance from now.
func (e Evaluator) Offset(lit *ast.InstantLit, scale Scale) (int64, error) {
	if lit != nil && lit.Kind == ast.InstantNow {
		sc, err := e.offsetScale(lit, scale)
		if err != nil {
			return 0, err
		}
		return lit.Offset * sc.Chronons(), nil
	}
	at, err := e.Instant(lit, scale)
	if err != nil {
		return 0, err
	}
	return int64(at - e.Now), nil
}

// Period evaluates a period literal and rejects empty periods.
func (e Evaluator) Period(lit *ast.PeriodLit, scale Scale) (Period, error) {
	if lit == nil {
		return Period{}, fmt.Errorf("missing period")
	}
	begin, err := e.Instant(lit.Begin, scale)
	if err != nil {
		return Period{}, fmt.Errorf("period begin: %w", err)
	}
	end, err := e.Instant(lit.End, scale)
	if err != nil {
		return Period{}, fmt.Errorf("period end: %w", err)
	}
	p := Period{Begin: begin, End: end, Scale: scale}
	if p.Empty() {
		return Period{}, fmt.Errorf("empty period [%s - %s)", begin, end)
	}
	return p, nil
}

func (e Evaluator) offsetScale(lit *ast.InstantLit, scale Scale) (Scale, error) {
	if lit.Scale == "" {
		return scale.OrDefault(Second), nil
	}
	return ParseScale(lit.Scale)
}
