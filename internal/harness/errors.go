package harness

import (
	"errors"

	"github.com/roach88/tsql2/internal/parser"
	"github.com/roach88/tsql2/internal/resultset"
	"github.com/roach88/tsql2/internal/translate"
)

// Error kinds reported in traces and matched by expect.error.
const (
	ErrSyntax              = "syntax"
	ErrUnknownTable        = "unknown_table"
	ErrNoTemporalSupport   = "no_temporal_support"
	ErrDuplicateKey        = "duplicate_key"
	ErrSurrogateAssignment = "surrogate_assignment"
	ErrTranslationSyntax   = "translation_syntax"
	ErrInvalidScale        = "invalid_scale"
	ErrRestrictedColumn    = "restricted_column"
	// ErrEngine covers failures reported by the database itself.
	ErrEngine = "engine"
)

var errorKinds = map[string]bool{
	ErrSyntax:              true,
	ErrUnknownTable:        true,
	ErrNoTemporalSupport:   true,
	ErrDuplicateKey:        true,
	ErrSurrogateAssignment: true,
	ErrTranslationSyntax:   true,
	ErrInvalidScale:        true,
	ErrRestrictedColumn:    true,
	ErrEngine:              true,
}

func knownErrorKind(kind string) bool {
	return errorKinds[kind]
}

// ErrorKind classifies err. It returns "" for nil.
func ErrorKind(err error) string {
	var syntax *parser.SyntaxError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &syntax):
		return ErrSyntax
	case translate.IsUnknownTable(err):
		return ErrUnknownTable
	case translate.IsNoTemporalSupport(err):
		return ErrNoTemporalSupport
	case translate.IsDuplicateKey(err):
		return ErrDuplicateKey
	case translate.IsSurrogateAssignment(err):
		return ErrSurrogateAssignment
	case translate.IsInvalidScale(err):
		return ErrInvalidScale
	case translate.IsTranslationSyntax(err):
		return ErrTranslationSyntax
	case resultset.IsRestrictedColumn(err):
		return ErrRestrictedColumn
	}
	return ErrEngine
}
