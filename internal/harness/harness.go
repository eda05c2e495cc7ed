package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/tsql2/internal/session"
	"github.com/roach88/tsql2/internal/store"
	"github.com/roach88/tsql2/internal/temporal"
)

// Harness is the test execution engine. It runs one scenario against its
// own session and mock clock.
type Harness struct {
	session *session.Session
	clock   *clock.Mock
	logger  *slog.Logger
}

type runConfig struct {
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger. By default logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) { c.logger = logger }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// mock clock set to the scenario's now.
//
// Execution flow:
// 1. Create fresh in-memory database and session
// 2. Execute setup statements
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
//
// An error is returned only when the scenario could not be run at all;
// failed expectations are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	now := scenario.Now
	if now == "" {
		now = DefaultNow
	}
	start, err := temporal.ParseInstant(now)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}
	mock := clock.NewMock()
	mock.Set(start.Time())

	driver := scenario.Driver
	if driver == "" {
		driver = store.DriverSQLite3
	}
	st, err := store.Open(ctx, driver, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sess, err := session.Open(ctx, st.DB(),
		session.WithDialect(st.Dialect()),
		session.WithClock(mock),
		session.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	h := &Harness{session: sess, clock: mock, logger: cfg.logger}

	for i, stmt := range scenario.Setup {
		if _, err := sess.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to execute setup[%d]: %w", i, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute flow[%d]: %w", i, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one flow step, records its trace event and checks the
// expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Add(d)
	}

	ev := TraceEvent{Statement: step.Statement()}
	var err error
	if step.Query != "" {
		err = h.query(ctx, step.Query, &ev)
	} else {
		err = h.exec(ctx, step.Exec, &ev)
	}
	ev.Error = ErrorKind(err)
	seq := result.AddTrace(ev)

	h.logger.Info("flow step completed",
		"step", seq,
		"kind", ev.Kind,
		"statements", len(ev.Physical),
		"error", ev.Error)

	for _, msg := range checkExpect(step.Expect, ev, err) {
		result.AddError(fmt.Sprintf("flow[%d]: %s", i, msg))
	}
	return nil
}

func (h *Harness) exec(ctx context.Context, text string, ev *TraceEvent) error {
	res, err := h.session.Exec(ctx, text)
	if err != nil {
		return err
	}
	ev.Kind = res.Kind.String()
	ev.Physical = res.Statements
	return nil
}

// query records the translation, then runs the query and renders its rows.
func (h *Harness) query(ctx context.Context, text string, ev *TraceEvent) error {
	res, err := h.session.Translate(ctx, text)
	if err != nil {
		return err
	}
	ev.Kind = res.Kind.String()
	ev.Physical = res.Statements

	rs, err := h.session.Query(ctx, text)
	if err != nil {
		return err
	}
	defer rs.Close()

	ev.Columns = rs.Labels()
	for rs.Next() {
		row, err := rs.Strings()
		if err != nil {
			return err
		}
		ev.Rows = append(ev.Rows, row)
	}
	if err := rs.Err(); err != nil {
		return err
	}
	return rs.Close()
}

// checkExpect compares a step outcome against its expect clause.
func checkExpect(expect *ExpectClause, ev TraceEvent, err error) []string {
	if expect == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if expect.Error != "" {
		switch {
		case err == nil:
			return []string{fmt.Sprintf("expected %s error, statement succeeded", expect.Error)}
		case ev.Error != expect.Error:
			return []string{fmt.Sprintf("expected %s error, got %s: %v", expect.Error, ev.Error, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	if expect.Statements != 0 && expect.Statements != len(ev.Physical) {
		msgs = append(msgs, fmt.Sprintf("expected %d physical statements, got %d", expect.Statements, len(ev.Physical)))
	}
	if expect.Columns != nil && !reflect.DeepEqual(expect.Columns, ev.Columns) {
		msgs = append(msgs, fmt.Sprintf("expected columns %v, got %v", expect.Columns, ev.Columns))
	}
	if expect.Rows != nil && !rowsEqual(expect.Rows, ev.Rows) {
		msgs = append(msgs, fmt.Sprintf("expected rows %v, got %v", expect.Rows, ev.Rows))
	}
	return msgs
}

// rowsEqual treats nil and empty as the same.
func rowsEqual(want, got [][]string) bool {
	if len(want) == 0 && len(got) == 0 {
		return true
	}
	return reflect.DeepEqual(want, got)
}
