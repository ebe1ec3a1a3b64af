package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/faciam-dev/docform/pkg/metrics"
	"github.com/faciam-dev/docform/pkg/schema"
)

const defaultWorkers = 4

// ErrNoSchema is returned when a source answers without a schema.
var ErrNoSchema = errors.New("no schema returned")

// Source fetches the server description of one doctype.
type Source interface {
	GetDocTypeMetadata(ctx context.Context, docType string) (*schema.Schema, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, docType string) (*schema.Schema, error)

func (f SourceFunc) GetDocTypeMetadata(ctx context.Context, docType string) (*schema.Schema, error) {
	return f(ctx, docType)
}

type Loader struct {
	src     Source
	workers int
	logger  *zap.SugaredLogger
}

type Option func(*Loader)

// WithWorkers bounds the number of concurrent child schema fetches.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

func WithLogger(lg *zap.SugaredLogger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func NewLoader(src Source, opts ...Option) *Loader {
	l := &Loader{src: src, workers: defaultWorkers, logger: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(l)
	}
	return l
}

type fetched struct {
	name string
	s    *schema.Schema
	err  error
}

// Load fetches docType and, level by level, every child schema reachable
// through Table fields. The parent must resolve; a child that fails leaves an
// empty field set and is recorded in ChildErrors.
func (l *Loader) Load(ctx context.Context, docType string) (*FormSchema, error) {
	parent, err := l.fetch(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", docType, err)
	}
	fs := newFormSchema(parent)
	fs.add(parent.DocType, parent)

	visited := map[string]struct{}{parent.DocType: {}, docType: {}}
	level := pending(parent, visited)
	for len(level) > 0 {
		results := l.fetchLevel(ctx, level)
		var next []string
		for _, r := range results {
			if r.err != nil {
				fs.fail(r.name, r.err)
				metrics.ChildSchemaFailures.WithLabelValues(r.name).Inc()
				l.logger.Warnw("child schema unavailable", "doctype", docType, "child", r.name, "error", r.err)
				continue
			}
			fs.add(r.name, r.s)
			next = append(next, pending(r.s, visited)...)
		}
		level = next
	}
	return fs, nil
}

func (l *Loader) fetch(ctx context.Context, docType string) (*schema.Schema, error) {
	s, err := l.src.GetDocTypeMetadata(ctx, docType)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSchema
	}
	if s.DocType == "" {
		s.DocType = docType
	}
	return s, nil
}

// fetchLevel issues every fetch of one level and waits for all of them to
// settle. Failures are captured per child and never cancel siblings.
func (l *Loader) fetchLevel(ctx context.Context, names []string) []fetched {
	out := make([]fetched, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			s, err := l.fetch(gctx, name)
			out[i] = fetched{name: name, s: s, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// pending returns the child doctypes of s not seen yet and marks them seen.
func pending(s *schema.Schema, visited map[string]struct{}) []string {
	var out []string
	for _, f := range s.Tables() {
		if _, ok := visited[f.Options]; ok {
			continue
		}
		visited[f.Options] = struct{}{}
		out = append(out, f.Options)
	}
	return out
}

// FormSchema is a parent schema with all reachable child schemas flattened
// into one field arena. Every field is tagged with the schema owning it.
type FormSchema struct {
	Parent *schema.Schema

	fields   []schema.FieldDescriptor
	byParent map[string][]int
	children map[string]*schema.Schema
	failed   map[string]error
	errs     *multierror.Error
}

func newFormSchema(parent *schema.Schema) *FormSchema {
	return &FormSchema{
		Parent:   parent,
		byParent: map[string][]int{},
		children: map[string]*schema.Schema{},
		failed:   map[string]error{},
	}
}

// Empty returns a schema with no fields, used when metadata is unavailable.
func Empty(docType string) *FormSchema {
	return newFormSchema(&schema.Schema{DocType: docType})
}

func (fs *FormSchema) add(owner string, s *schema.Schema) {
	if owner != fs.Parent.DocType {
		fs.children[owner] = s
	}
	idx := make([]int, 0, len(s.Fields))
	for _, f := range s.Ordered() {
		f.ParentSchema = owner
		fs.fields = append(fs.fields, f)
		idx = append(idx, len(fs.fields)-1)
	}
	fs.byParent[owner] = idx
}

func (fs *FormSchema) fail(owner string, err error) {
	fs.failed[owner] = err
	fs.byParent[owner] = nil
	fs.errs = multierror.Append(fs.errs, fmt.Errorf("child schema %s: %w", owner, err))
}

func (fs *FormSchema) DocType() string { return fs.Parent.DocType }

func (fs *FormSchema) Permissions() schema.PermissionSet { return fs.Parent.Permissions }

// Ordered returns the top-level fields in field order.
func (fs *FormSchema) Ordered() []schema.FieldDescriptor {
	return fs.ChildFields(fs.Parent.DocType)
}

// ChildFields returns the fields owned by docType in field order. An
// unresolved child yields no fields.
func (fs *FormSchema) ChildFields(docType string) []schema.FieldDescriptor {
	idx := fs.byParent[docType]
	out := make([]schema.FieldDescriptor, 0, len(idx))
	for _, i := range idx {
		out = append(out, fs.fields[i])
	}
	return out
}

// All returns the whole arena: top-level fields first, then each child
// schema in discovery order.
func (fs *FormSchema) All() []schema.FieldDescriptor {
	return append([]schema.FieldDescriptor(nil), fs.fields...)
}

// Field looks up a top-level field.
func (fs *FormSchema) Field(name string) (schema.FieldDescriptor, bool) {
	for _, i := range fs.byParent[fs.Parent.DocType] {
		if fs.fields[i].FieldName == name {
			return fs.fields[i], true
		}
	}
	return schema.FieldDescriptor{}, false
}

// Child returns the resolved child schema of docType.
func (fs *FormSchema) Child(docType string) (*schema.Schema, bool) {
	s, ok := fs.children[docType]
	return s, ok
}

// ChildError returns the failure recorded for docType, if any.
func (fs *FormSchema) ChildError(docType string) error {
	return fs.failed[docType]
}

// ChildErrors aggregates every child schema failure, or returns nil.
func (fs *FormSchema) ChildErrors() error {
	return fs.errs.ErrorOrNil()
}
