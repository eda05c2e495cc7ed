package catalog

import (
	"errors"
	"fmt"
)

// UnknownTableError reports a lookup of a table without a catalog row.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q: no temporal catalog entry", e.Table)
}

// VacuumError reports a failed vacuum. It accompanies a usable descriptor.
type VacuumError struct {
	Table string
	Err   error
}

func (e *VacuumError) Error() string {
	return fmt.Sprintf("vacuum %s: %v", e.Table, e.Err)
}

func (e *VacuumError) Unwrap() error { return e.Err }

// IsUnknownTable reports whether err is or wraps an UnknownTableError.
func IsUnknownTable(err error) bool {
	var ute *UnknownTableError
	return errors.As(err, &ute)
}

// IsVacuumError reports whether err is or wraps a VacuumError.
func IsVacuumError(err error) bool {
	var ve *VacuumError
	return errors.As(err, &ve)
}
