package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tsql2/internal/catalog"
	"github.com/roach88/tsql2/internal/temporal"
)

// UnknownTableError is returned when a statement names a table the catalog
// does not know.
type UnknownTableError = catalog.UnknownTableError

// InvalidScaleError is returned for an unknown scale keyword.
type InvalidScaleError = temporal.InvalidScaleError

// TranslationSyntaxError reports a statement shape the translator cannot
// rewrite.
type TranslationSyntaxError struct {
	// Near is the source text of the offending construct, if known.
	Near    string
	Message string
}

func (e *TranslationSyntaxError) Error() string {
	if e.Near == "" {
		return "translation error: " + e.Message
	}
	return fmt.Sprintf("translation error near %q: %s", e.Near, e.Message)
}

func syntaxErrorf(near string, format string, args ...any) *TranslationSyntaxError {
	return &TranslationSyntaxError{Near: near, Message: fmt.Sprintf(format, args...)}
}

// NoTemporalSupportError reports a temporal construct applied to a table
// that lacks the needed time dimension.
type NoTemporalSupportError struct {
	Table string
	// Dimension is "valid time", "state valid time" or "transaction time".
	Dimension string
	// Construct is the clause or function that needed it.
	Construct string
}

func (e *NoTemporalSupportError) Error() string {
	return fmt.Sprintf("%s requires %s but table %s has none", e.Construct, e.Dimension, e.Table)
}

// DuplicateKeyError reports an INSERT whose logical key already exists
// during an overlapping period.
type DuplicateKeyError struct {
	Table  string
	Key    []string
	Values []string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key in %s: (%s) = (%s) already exists during the inserted period",
		e.Table, strings.Join(e.Key, ", "), strings.Join(e.Values, ", "))
}

// SurrogateAssignmentError reports a SURROGATE column that was not assigned
// NEW on INSERT, or that an UPDATE tried to change.
type SurrogateAssignmentError struct {
	Table   string
	Column  string
	Message string
}

func (e *SurrogateAssignmentError) Error() string {
	return fmt.Sprintf("surrogate column %s.%s: %s", e.Table, e.Column, e.Message)
}

// IsUnknownTable reports whether err is or wraps an UnknownTableError.
func IsUnknownTable(err error) bool {
	return catalog.IsUnknownTable(err)
}

// IsNoTemporalSupport reports whether err is or wraps a NoTemporalSupportError.
func IsNoTemporalSupport(err error) bool {
	var e *NoTemporalSupportError
	return errors.As(err, &e)
}

// IsDuplicateKey reports whether err is or wraps a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var e *DuplicateKeyError
	return errors.As(err, &e)
}

// IsSurrogateAssignment reports whether err is or wraps a SurrogateAssignmentError.
func IsSurrogateAssignment(err error) bool {
	var e *SurrogateAssignmentError
	return errors.As(err, &e)
}

// IsTranslationSyntax reports whether err is or wraps a TranslationSyntaxError.
func IsTranslationSyntax(err error) bool {
	var e *TranslationSyntaxError
	return errors.As(err, &e)
}

// IsInvalidScale reports whether err is or wraps an InvalidScaleError.
func IsInvalidScale(err error) bool {
	var e *InvalidScaleError
	return errors.As(err, &e)
}
