package instrument

import (
	"errors"
	"fmt"
)

// Build-time validation errors. All of them surface while a directive is
// parsed or bound, never during an instrumented invocation. Match them
// with errors.Is.
var ErrInvalidDirective = errors.New("invalid directive")
var ErrDuplicateField = errors.New("duplicate field key")
var ErrUnknownParameter = errors.New("unknown parameter")
var ErrInvalidParentSource = errors.New("invalid parent source")
var ErrReservedFieldKey = errors.New("reserved field key")
var ErrDuplicateParameter = errors.New("duplicate parameter name")

// invalidDirectiveAt wraps ErrInvalidDirective with the byte offset at which
// parsing failed, so directive authors can locate the offending clause.
func invalidDirectiveAt(pos int, format string, args ...any) error {
	return fmt.Errorf("%w: %s (at offset %d)", ErrInvalidDirective, fmt.Sprintf(format, args...), pos)
}
