package harness

// TraceEvent records one flow statement and what it turned into.
type TraceEvent struct {
	Seq       int    `yaml:"seq"`
	Statement string `yaml:"statement"`
	// Kind is DDL, DML or QUERY; empty when translation failed.
	Kind string `yaml:"kind,omitempty"`
	// Physical holds the translated statements in execution order.
	Physical []string `yaml:"physical,omitempty"`
	// Columns and Rows are set for queries.
	Columns []string   `yaml:"columns,omitempty"`
	Rows    [][]string `yaml:"rows,omitempty"`
	// Error is the error kind when the statement failed.
	Error string `yaml:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `yaml:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `yaml:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `yaml:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event and returns its sequence number.
func (r *Result) AddTrace(ev TraceEvent) int {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
	return ev.Seq
}
