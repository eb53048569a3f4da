package instrument

import (
	"context"
	"fmt"
)

// FieldFunc computes a custom field value from the invocation's argument
// list. It runs once per invocation, before the body.
type FieldFunc func(args []any) any

// ParentFunc resolves the parent context for the span when the parent cannot
// be named as a parameter. It receives the ambient context and the argument
// list and returns the context the span should be parented to.
type ParentFunc func(ctx context.Context, args []any) context.Context

// ErrorMapper transforms the outcome error before it is recorded on the span.
// The original error is still what the caller receives.
type ErrorMapper func(err error) error

// ParameterBinding is the resolved recording decision for one declared
// parameter.
type ParameterBinding struct {
	Name         string
	Position     int
	Recorded     bool
	ParentSource bool
}

// plannedField is a fields(...) entry with its parameter reference resolved
// to a position.
type plannedField struct {
	key      string
	kind     FieldValueKind
	literal  any
	paramPos int
	fn       FieldFunc
}

// BindingPlan is the validated, immutable weave plan for one callable. It is
// created once at definition time and read concurrently by every invocation;
// nothing in it is mutated after Bind returns.
type BindingPlan struct {
	directive    Directive
	bindings     []ParameterBinding
	fields       []plannedField
	async        bool
	returnsError bool
	spanName     string
	parentPos    int // position of the parent-source parameter, -1 if none
	parentFunc   ParentFunc
	errMapper    ErrorMapper
}

// bindConfig collects the programmatic complements to the directive text:
// closures for what Go source text cannot express as a string.
type bindConfig struct {
	funcFields []plannedField
	parentFunc ParentFunc
	errMapper  ErrorMapper
}

// BindOption supplements a directive with programmatic values at bind time.
type BindOption func(*bindConfig) error

// WithFieldFunc adds a custom field whose value is computed per invocation.
// Function fields are recorded after the directive's own fields, in the order
// the options are given. Keys share one namespace with fields(...) entries.
func WithFieldFunc(key string, fn FieldFunc) BindOption {
	return func(cfg *bindConfig) error {
		if fn == nil {
			return fmt.Errorf("%w: nil field function for key %q", ErrInvalidDirective, key)
		}
		cfg.funcFields = append(cfg.funcFields, plannedField{key: key, kind: FieldValueFunc, fn: fn})
		return nil
	}
}

// WithParentFunc supplies the parent context through a function instead of a
// named parameter. Mutually exclusive with a "parent = param" clause.
func WithParentFunc(fn ParentFunc) BindOption {
	return func(cfg *bindConfig) error {
		cfg.parentFunc = fn
		return nil
	}
}

// WithErrorMapper supplies the mapper referenced by an "err = <ident>" clause.
func WithErrorMapper(fn ErrorMapper) BindOption {
	return func(cfg *bindConfig) error {
		cfg.errMapper = fn
		return nil
	}
}

// Bind validates a Directive against a callable's Signature and produces the
// immutable BindingPlan that drives every invocation. All name resolution
// failures surface here, at definition time, never at invocation time.
func Bind(d Directive, sig Signature, opts ...BindOption) (*BindingPlan, error) {
	cfg := &bindConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	params := sig.Params()
	paramIndex := make(map[string]int, len(params))
	for i, p := range params {
		if _, exists := paramIndex[p.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParameter, p.Name)
		}
		paramIndex[p.Name] = i
	}

	// Each skip name is validated for existence even under skip_all.
	skipSet := make(map[string]bool, len(d.Skip))
	for _, name := range d.Skip {
		if _, ok := paramIndex[name]; !ok {
			return nil, fmt.Errorf("%w: skip references %q", ErrUnknownParameter, name)
		}
		skipSet[name] = true
	}

	parentPos := -1
	if d.Parent != "" {
		if cfg.parentFunc != nil {
			return nil, fmt.Errorf("%w: both a parent parameter and a parent function were given", ErrInvalidParentSource)
		}
		pos, ok := paramIndex[d.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent references %q", ErrUnknownParameter, d.Parent)
		}
		if params[pos].Kind != ParamContext {
			return nil, fmt.Errorf("%w: parameter %q does not carry a context", ErrInvalidParentSource, d.Parent)
		}
		parentPos = pos
	}

	fields, err := planFields(d, cfg, paramIndex)
	if err != nil {
		return nil, err
	}

	var errMapper ErrorMapper
	if d.Err {
		if d.ErrMapperName != "" && cfg.errMapper == nil {
			return nil, fmt.Errorf("%w: error mapper %q was named but not supplied via WithErrorMapper", ErrInvalidDirective, d.ErrMapperName)
		}
		errMapper = cfg.errMapper
	}

	bindings := make([]ParameterBinding, len(params))
	for i, p := range params {
		bindings[i] = ParameterBinding{
			Name:         p.Name,
			Position:     i,
			ParentSource: i == parentPos,
			Recorded: !d.SkipAll &&
				!skipSet[p.Name] &&
				p.Kind == ParamValue &&
				i != parentPos,
		}
	}

	spanName := d.Name
	if spanName == "" {
		spanName = sig.Name()
	}

	return &BindingPlan{
		directive:    d,
		bindings:     bindings,
		fields:       fields,
		async:        sig.IsAsync(),
		returnsError: sig.ReturnsError(),
		spanName:     spanName,
		parentPos:    parentPos,
		parentFunc:   cfg.parentFunc,
		errMapper:    errMapper,
	}, nil
}

// planFields merges directive fields with function fields, enforcing one key
// namespace, rejecting the reserved "return"/"error" keys, and resolving
// parameter references to positions.
func planFields(d Directive, cfg *bindConfig, paramIndex map[string]int) ([]plannedField, error) {
	fields := make([]plannedField, 0, len(d.Fields)+len(cfg.funcFields))
	keys := make(map[string]bool, len(d.Fields)+len(cfg.funcFields))

	appendField := func(f plannedField) error {
		if f.key == attrKeyReturn || f.key == attrKeyError {
			return fmt.Errorf("%w: %q", ErrReservedFieldKey, f.key)
		}
		if keys[f.key] {
			return fmt.Errorf("%w: %q", ErrDuplicateField, f.key)
		}
		keys[f.key] = true
		fields = append(fields, f)
		return nil
	}

	for _, f := range d.Fields {
		planned := plannedField{key: f.Key, kind: f.Kind, literal: f.Literal, paramPos: -1}
		if f.Kind == FieldValueParam {
			pos, ok := paramIndex[f.Param]
			if !ok {
				return nil, fmt.Errorf("%w: field %q references %q", ErrUnknownParameter, f.Key, f.Param)
			}
			planned.paramPos = pos
		}
		if err := appendField(planned); err != nil {
			return nil, err
		}
	}
	for _, f := range cfg.funcFields {
		if err := appendField(f); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

// SpanName returns the resolved span display name.
func (p *BindingPlan) SpanName() string {
	return p.spanName
}

// IsAsync reports whether invocations run through the dispatched shim.
func (p *BindingPlan) IsAsync() bool {
	return p.async
}

// ReturnsError reports whether the callable has a failure channel.
func (p *BindingPlan) ReturnsError() bool {
	return p.returnsError
}

// Bindings returns a copy of the per-parameter recording decisions.
func (p *BindingPlan) Bindings() []ParameterBinding {
	out := make([]ParameterBinding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// Directive returns the directive the plan was built from.
func (p *BindingPlan) Directive() Directive {
	return p.directive
}

// paramCount is used by the wrapping surface to check arity at wrap time.
func (p *BindingPlan) paramCount() int {
	return len(p.bindings)
}
