package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/tsql2/internal/temporal"
)

// Physical temporal columns.
const (
	ColVTS = "_VTS"
	ColVTE = "_VTE"
	ColTTS = "_TTS"
	ColTTE = "_TTE"
)

// IsTemporalColumn reports whether name is one of the physical temporal columns.
func IsTemporalColumn(name string) bool {
	switch strings.ToUpper(name) {
	case ColVTS, ColVTE, ColTTS, ColTTE:
		return true
	}
	return false
}

// ValidSupport is the valid-time dimension of a table.
type ValidSupport int

const (
	ValidNone ValidSupport = iota
	ValidState
	ValidEvent
)

func (v ValidSupport) String() string {
	switch v {
	case ValidState:
		return "STATE"
	case ValidEvent:
		return "EVENT"
	default:
		return "NONE"
	}
}

// ParseValidSupport reads the value stored in _TEMPORAL_SPEC.valid_time.
func ParseValidSupport(s string) (ValidSupport, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return ValidNone, nil
	case "STATE":
		return ValidState, nil
	case "EVENT":
		return ValidEvent, nil
	}
	return ValidNone, fmt.Errorf("invalid valid_time %q", s)
}

// TransactionSupport is the transaction-time dimension of a table.
type TransactionSupport int

const (
	TransactionNone TransactionSupport = iota
	TransactionState
)

func (t TransactionSupport) String() string {
	if t == TransactionState {
		return "STATE"
	}
	return "NONE"
}

// ParseTransactionSupport reads the value stored in _TEMPORAL_SPEC.transaction_time.
func ParseTransactionSupport(s string) (TransactionSupport, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return TransactionNone, nil
	case "STATE":
		return TransactionState, nil
	}
	return TransactionNone, fmt.Errorf("invalid transaction_time %q", s)
}

// Regime is the combination of temporal dimensions that selects a DML rewriting.
type Regime int

const (
	RegimeSnapshot Regime = iota
	RegimeState
	RegimeTransaction
	RegimeBitemporal
)

func (r Regime) String() string {
	switch r {
	case RegimeState:
		return "state"
	case RegimeTransaction:
		return "transaction"
	case RegimeBitemporal:
		return "bitemporal"
	default:
		return "snapshot"
	}
}

// TableDescriptor is the temporal metadata of one table.
type TableDescriptor struct {
	Name        string
	Valid       ValidSupport
	ValidScale  temporal.Scale
	Transaction TransactionSupport
	// VacuumCutoff is an absolute instant, or a signed offset in seconds from
	// the time of each lookup when VacuumRelative is set.
	VacuumCutoff   temporal.Instant
	VacuumRelative bool
	// Surrogates maps each SURROGATE column to the next value it will hand out.
	Surrogates map[string]int64
	// Key is the declared logical primary key, in declaration order.
	Key []string
	// Columns is the logical column order; temporal columns are excluded.
	Columns []string
}

// HasValid reports whether the table records valid time.
func (d *TableDescriptor) HasValid() bool { return d.Valid != ValidNone }

// IsEvent reports whether valid time is a single instant per row.
func (d *TableDescriptor) IsEvent() bool { return d.Valid == ValidEvent }

// HasTransaction reports whether the table records transaction time.
func (d *TableDescriptor) HasTransaction() bool { return d.Transaction == TransactionState }

// Regime classifies the table for DML rewriting.
func (d *TableDescriptor) Regime() Regime {
	switch {
	case d.HasValid() && d.HasTransaction():
		return RegimeBitemporal
	case d.HasValid():
		return RegimeState
	case d.HasTransaction():
		return RegimeTransaction
	default:
		return RegimeSnapshot
	}
}

// IsSurrogate reports whether column is a SURROGATE column.
func (d *TableDescriptor) IsSurrogate(column string) bool {
	_, ok := d.surrogate(column)
	return ok
}

func (d *TableDescriptor) surrogate(column string) (string, bool) {
	for name := range d.Surrogates {
		if strings.EqualFold(name, column) {
			return name, true
		}
	}
	return "", false
}

// Cutoff resolves the vacuum cutoff against now.
func (d *TableDescriptor) Cutoff(now temporal.Instant) temporal.Instant {
	if d.VacuumRelative {
		return now + d.VacuumCutoff
	}
	return d.VacuumCutoff
}

// TemporalColumns lists the physical temporal columns the table carries.
// Event tables store their instant in _VTS alone.
func (d *TableDescriptor) TemporalColumns() []string {
	var cols []string
	switch d.Valid {
	case ValidState:
		cols = append(cols, ColVTS, ColVTE)
	case ValidEvent:
		cols = append(cols, ColVTS)
	}
	if d.HasTransaction() {
		cols = append(cols, ColTTS, ColTTE)
	}
	return cols
}

// Column returns the declared spelling of a logical column.
func (d *TableDescriptor) Column(name string) (string, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Clone returns a deep copy, so cached descriptors are never shared mutably.
func (d *TableDescriptor) Clone() *TableDescriptor {
	c := *d
	c.Surrogates = make(map[string]int64, len(d.Surrogates))
	for k, v := range d.Surrogates {
		c.Surrogates[k] = v
	}
	c.Key = append([]string(nil), d.Key...)
	c.Columns = append([]string(nil), d.Columns...)
	return &c
}
