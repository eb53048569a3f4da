package instrument

// ParamKind classifies a callable parameter for binding purposes.
type ParamKind int

const (
	// ParamValue is an ordinary parameter, eligible to be recorded as a
	// span attribute.
	ParamValue ParamKind = iota
	// ParamContext is a context-carrying parameter. It is never
	// auto-recorded and is the only kind eligible as a parent source.
	ParamContext
)

// Param describes one declared parameter of the callable.
type Param struct {
	Name string
	Kind ParamKind
}

// Signature describes the shape of a callable to be instrumented: its name,
// its ordered parameters, whether it runs asynchronously, and whether it has
// an error result. A Signature is immutable once finalized.
type Signature struct {
	name         string
	params       []Param
	async        bool
	returnsError bool
}

// Name returns the callable name. It doubles as the default span name.
func (s Signature) Name() string {
	return s.name
}

// Params returns the declared parameters in order.
func (s Signature) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// IsAsync reports whether invocations run through the dispatched execution
// shim instead of blocking the caller.
func (s Signature) IsAsync() bool {
	return s.async
}

// ReturnsError reports whether the callable has a failure channel.
func (s Signature) ReturnsError() bool {
	return s.returnsError
}

// SignatureBuilder builds a Signature fluently:
//
//	sig := instrument.DescribeCallable("login").
//		WithContextParam("ctx").
//		WithParam("username").
//		WithParam("password").
//		ReturningError().
//		Finalize()
type SignatureBuilder struct {
	sig Signature
}

// DescribeCallable starts describing a callable with the given name.
func DescribeCallable(name string) *SignatureBuilder {
	return &SignatureBuilder{sig: Signature{name: name}}
}

// WithParam appends an ordinary parameter.
func (b *SignatureBuilder) WithParam(name string) *SignatureBuilder {
	b.sig.params = append(b.sig.params, Param{Name: name, Kind: ParamValue})
	return b
}

// WithContextParam appends a context-carrying parameter.
func (b *SignatureBuilder) WithContextParam(name string) *SignatureBuilder {
	b.sig.params = append(b.sig.params, Param{Name: name, Kind: ParamContext})
	return b
}

// Async marks the callable as asynchronously executed.
func (b *SignatureBuilder) Async() *SignatureBuilder {
	b.sig.async = true
	return b
}

// ReturningError marks the callable as having an error result.
func (b *SignatureBuilder) ReturningError() *SignatureBuilder {
	b.sig.returnsError = true
	return b
}

// Finalize returns the immutable Signature.
func (b *SignatureBuilder) Finalize() Signature {
	return b.sig
}
