package condition

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/faciam-dev/docform/pkg/metrics"
	"github.com/faciam-dev/docform/pkg/schema"
)

const defaultCacheSize = 512

// Error describes a dependsOn rule that could not be decided. The field it
// guards is treated as hidden.
type Error struct {
	Field string
	Expr  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("depends_on of %q (%s): %v", e.Field, e.Expr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type compiled struct {
	expr *Expression
	err  error
}

// Evaluator decides field visibility. Parsed programs are memoized by their
// source text; results are never cached, so a changed snapshot is always
// re-evaluated.
type Evaluator struct {
	cache  *lru.Cache[string, compiled]
	sink   func(*Error)
	logger *zap.SugaredLogger
}

type Option func(*Evaluator)

// WithErrorSink receives every evaluation failure.
func WithErrorSink(fn func(*Error)) Option {
	return func(e *Evaluator) { e.sink = fn }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		if n <= 0 {
			return
		}
		if c, err := lru.New[string, compiled](n); err == nil {
			e.cache = c
		}
	}
}

func New(opts ...Option) *Evaluator {
	c, _ := lru.New[string, compiled](defaultCacheSize)
	e := &Evaluator{cache: c, logger: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Compile returns the memoized program for text.
func (e *Evaluator) Compile(text string) (*Expression, error) {
	if c, ok := e.cache.Get(text); ok {
		metrics.ProgramCacheHits.Inc()
		return c.expr, c.err
	}
	metrics.ProgramCacheMisses.Inc()
	x, err := Compile(text)
	e.cache.Add(text, compiled{expr: x, err: err})
	return x, err
}

// Check evaluates the rule of one field and returns the failure, if any,
// instead of reporting it.
func (e *Evaluator) Check(field, dependsOn string, snap map[string]any) (bool, *Error) {
	x, err := e.Compile(dependsOn)
	if err == nil {
		var ok bool
		ok, err = x.Eval(snap)
		if err == nil {
			return ok, nil
		}
	}
	return false, &Error{Field: field, Expr: dependsOn, Err: err}
}

// Visible evaluates the rule of one field. Failures hide the field and go to
// the error sink.
func (e *Evaluator) Visible(field, dependsOn string, snap map[string]any) bool {
	ok, cerr := e.Check(field, dependsOn, snap)
	if cerr != nil {
		e.report(cerr)
	}
	return ok
}

// Filter keeps the fields whose rules pass. Each failure is reported and
// returned; it never affects sibling fields.
func (e *Evaluator) Filter(fields []schema.FieldDescriptor, snap map[string]any) ([]schema.FieldDescriptor, []*Error) {
	out := make([]schema.FieldDescriptor, 0, len(fields))
	var errs []*Error
	for _, f := range fields {
		ok, cerr := e.Check(f.FieldName, f.DependsOn, snap)
		if cerr != nil {
			e.report(cerr)
			errs = append(errs, cerr)
			continue
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, errs
}

func (e *Evaluator) report(cerr *Error) {
	metrics.ConditionErrors.Inc()
	e.logger.Debugw("depends_on evaluation failed", "field", cerr.Field, "expr", cerr.Expr, "error", cerr.Err)
	if e.sink != nil {
		e.sink(cerr)
	}
}
