package resultset

import (
	"errors"
	"fmt"
)

// RestrictedColumnError reports an attempt to read a system column.
type RestrictedColumnError struct {
	Column string
}

func (e *RestrictedColumnError) Error() string {
	return fmt.Sprintf("column %s is a system column and cannot be read", e.Column)
}

// IsRestrictedColumn reports whether err is or wraps a RestrictedColumnError.
func IsRestrictedColumn(err error) bool {
	var e *RestrictedColumnError
	return errors.As(err, &e)
}

// UnknownColumnError reports a label or index that names no column.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("no column %s in result", e.Column)
}

// IsUnknownColumn reports whether err is or wraps an UnknownColumnError.
func IsUnknownColumn(err error) bool {
	var e *UnknownColumnError
	return errors.As(err, &e)
}
