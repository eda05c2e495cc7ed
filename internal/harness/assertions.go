package harness

import (
	"context"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Statement)
			for _, stmt := range event.Physical {
				fmt.Fprintf(&buf, "      %s\n", stmt)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks that a physical statement contains the
// fragment, within one step if Step is set.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.Step != 0 && event.Seq != assertion.Step {
			continue
		}
		for _, stmt := range event.Physical {
			if strings.Contains(stmt, assertion.SQL) {
				return nil
			}
		}
	}

	where := "in trace"
	if assertion.Step != 0 {
		where = fmt.Sprintf("in step %d", assertion.Step)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("statement containing %q %s", assertion.SQL, where),
		Actual:   "not found",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the fragments match physical statements in
// the given order. Intervening statements are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	var stmts []string
	for _, event := range trace {
		stmts = append(stmts, event.Physical...)
	}

	pos := 0
	for _, fragment := range assertion.Sequence {
		found := false
		for pos < len(stmts) {
			pos++
			if strings.Contains(stmts[pos-1], fragment) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("statements in order: %q", assertion.Sequence),
				Actual:   fmt.Sprintf("no statement containing %q after position %d", fragment, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of physical statements of one step.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Seq != assertion.Step {
			continue
		}
		if len(event.Physical) != assertion.Count {
			return &AssertionError{
				Type:     AssertTraceCount,
				Expected: fmt.Sprintf("%d physical statements for step %d", assertion.Count, assertion.Step),
				Actual:   fmt.Sprintf("%d physical statements", len(event.Physical)),
				Trace:    trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("step %d in trace", assertion.Step),
		Actual:   "step not found",
		Trace:    trace,
	}
}

// assertFinalState runs a TSQL2 query and compares the rendered rows.
func (h *Harness) assertFinalState(ctx context.Context, assertion Assertion) error {
	var ev TraceEvent
	if err := h.query(ctx, assertion.Query, &ev); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query %s", assertion.Query),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if !rowsEqual(assertion.Rows, ev.Rows) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("rows %v", assertion.Rows),
			Actual:   fmt.Sprintf("rows %v", ev.Rows),
		}
	}
	return nil
}

// evaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func (h *Harness) evaluateAssertions(ctx context.Context, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = h.assertFinalState(ctx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
