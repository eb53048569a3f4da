// Package instrument is an instrumentation-weaving engine: it turns a
// description of a callable plus a textual directive into a wrapped form of
// that callable which opens a tracing span on every invocation, records
// selected parameters and custom fields, captures the outcome, and closes
// the span. Blocking and asynchronously dispatched execution are handled
// uniformly.
//
// Weaving happens in two phases. The build-time phase parses and binds the
// directive against the callable's declared parameters, failing fast on any
// invalid reference; the result is an immutable BindingPlan. The per-call
// phase drives the span lifecycle from that plan with no further validation.
//
// Directive clauses:
//   - skip(a, b)      exclude named parameters from recording
//   - skip_all        exclude every parameter
//   - fields(k = v)   custom attributes (literals or parameter references)
//   - ret             record the success value under "return"
//   - err             record the failure value under "error" and set error status
//   - parent = p      parent the span to the context carried by parameter p
//   - name = "..."    override the span display name
//
// Common usage pattern:
//
//	sig := instrument.DescribeCallable("login").
//		WithContextParam("ctx").
//		WithParam("username").
//		WithParam("password").
//		ReturningError().
//		Finalize()
//
//	directive, err := instrument.ParseDirective(`skip(password), ret, err`)
//	// handle err
//	plan, err := instrument.Bind(directive, sig)
//	// handle err
//
//	weaver, err := instrument.NewWeaver(
//		instrument.WithTracing(oteladapters.NewGlobalTracingCollector()),
//	)
//	// handle err
//
//	login = instrument.Wrap2(weaver, plan, login)
//
// Tracing, metrics, and logging backends plug in through the dependency-free
// collector interfaces in this package; see the oteladapters subpackage for
// OpenTelemetry implementations.
package instrument
