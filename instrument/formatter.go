package instrument

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// FormattingPlaceholder is recorded in place of a value whose formatting
// failed. Recording must never abort the instrumented call, so formatter
// errors and panics degrade to this placeholder.
const FormattingPlaceholder = "<unformattable>"

// ValueFormatter renders parameter, return, and error values to the display
// strings stored as span attributes.
type ValueFormatter interface {
	Format(value any) (string, error)
}

// JSONFormatter is the default ValueFormatter. Strings pass through verbatim,
// errors render via Error(), Stringers via String(), and everything else is
// marshaled to compact JSON.
type JSONFormatter struct {
	json jsoniter.API
}

// NewJSONFormatter creates the default formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{json: jsoniter.ConfigFastest}
}

// Format implements ValueFormatter.
func (f *JSONFormatter) Format(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "<nil>", nil
	case string:
		return v, nil
	case error:
		return v.Error(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return f.json.MarshalToString(value)
	}
}

// Ensure JSONFormatter implements ValueFormatter.
var _ ValueFormatter = (*JSONFormatter)(nil)

// safeFormat applies the formatter under a recover guard. It reports whether
// formatting degraded so the caller can log and count it.
func safeFormat(formatter ValueFormatter, value any) (formatted string, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			formatted = FormattingPlaceholder
			degraded = true
		}
	}()

	formatted, err := formatter.Format(value)
	if err != nil {
		return FormattingPlaceholder, true
	}

	return formatted, false
}
