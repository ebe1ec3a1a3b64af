package client

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/pkg/schema"
	sdk "github.com/faciam-dev/docform/sdk"
)

// ErrNotFound is returned by the memory transport for unknown doctypes and
// documents.
var ErrNotFound = errors.New("not found")

// Memory is an in-process document store. It backs local mode, fixtures and
// tests; Calls counts every operation by name.
type Memory struct {
	mu        sync.Mutex
	schemas   map[string]*schema.Schema
	docs      map[string]map[string]schema.Record
	companies map[string]string
	calls     map[string]int
	failures  map[string]error
	seq       int
	hook      func(op, docType, name string)
	now       func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		schemas:   map[string]*schema.Schema{},
		docs:      map[string]map[string]schema.Record{},
		companies: map[string]string{},
		calls:     map[string]int{},
		failures:  map[string]error{},
		now:       time.Now,
	}
}

func (m *Memory) Mode() string { return "local" }

// PutSchema stores or replaces the metadata of s.DocType.
func (m *Memory) PutSchema(s *schema.Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Fields = append([]schema.FieldDescriptor(nil), s.Fields...)
	m.schemas[s.DocType] = &cp
}

// PutDocument stores or replaces a document. The record must carry a name.
func (m *Memory) PutDocument(docType string, r schema.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r = r.Clone()
	r[schema.KeyDocType] = docType
	if _, ok := m.docs[docType]; !ok {
		m.docs[docType] = map[string]schema.Record{}
	}
	m.docs[docType][r.Name()] = r
}

// PutCompany registers the default currency of a company.
func (m *Memory) PutCompany(company, currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[company] = currency
}

// Replace moves the schemas, documents and companies of src into m in one
// step, dropping what m held. Readers of m see either the old content or the
// new one. src is left empty; counters of both are kept.
func (m *Memory) Replace(src *Memory) {
	src.mu.Lock()
	schemas, docs, companies := src.schemas, src.docs, src.companies
	src.schemas = map[string]*schema.Schema{}
	src.docs = map[string]map[string]schema.Record{}
	src.companies = map[string]string{}
	src.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = schemas
	m.docs = docs
	m.companies = companies
}

// Fail makes every later call of op return err. A nil err clears it.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// OnCall installs fn to run at the start of every operation, outside the
// store lock. Tests use it to hold a call in flight.
func (m *Memory) OnCall(fn func(op, docType, name string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// enter counts op, runs the hook and returns the injected failure. It returns
// with m.mu held.
func (m *Memory) enter(ctx context.Context, op, docType, name string) error {
	m.mu.Lock()
	m.calls[op]++
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(op, docType, name)
	}
	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.failures[op]
}

func (m *Memory) GetDocTypeMetadata(ctx context.Context, docType string) (*schema.Schema, error) {
	if err := m.enter(ctx, "metadata", docType, ""); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	s, ok := m.schemas[docType]
	if !ok {
		return nil, fmt.Errorf("doctype %s: %w", docType, ErrNotFound)
	}
	cp := *s
	cp.Fields = append([]schema.FieldDescriptor(nil), s.Fields...)
	return &cp, nil
}

func (m *Memory) GetDocument(ctx context.Context, docType, name string) (schema.Record, error) {
	if err := m.enter(ctx, "get", docType, name); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	r, ok := m.docs[docType][name]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", docType, name, ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *Memory) CreateDocument(ctx context.Context, user schema.Identity, docType string, values map[string]any) (schema.Record, error) {
	if err := m.enter(ctx, "create", docType, ""); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	r := schema.Record(schema.CloneMap(values))
	if r == nil {
		r = schema.Record{}
	}
	delete(r, schema.KeyLocal)
	if r.Name() == "" {
		m.seq++
		r[schema.KeyName] = fmt.Sprintf("%s-%05d", strings.ToUpper(strings.ReplaceAll(docType, " ", "-")), m.seq)
	}
	if _, dup := m.docs[docType][r.Name()]; dup {
		return nil, fmt.Errorf("%s %s already exists", docType, r.Name())
	}
	ts := m.now().UTC().Format("2006-01-02 15:04:05.000000")
	r[schema.KeyDocType] = docType
	r[schema.KeyOwner] = user.ID
	r[schema.KeyCreation] = ts
	r[schema.KeyModified] = ts
	if _, ok := m.docs[docType]; !ok {
		m.docs[docType] = map[string]schema.Record{}
	}
	m.docs[docType][r.Name()] = r
	return r.Clone(), nil
}

func (m *Memory) UpdateDocument(ctx context.Context, _ schema.Identity, docType, name string, values map[string]any) (schema.Record, error) {
	if err := m.enter(ctx, "update", docType, name); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	r, ok := m.docs[docType][name]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", docType, name, ErrNotFound)
	}
	r = r.Clone()
	for k, v := range values {
		switch k {
		case schema.KeyName, schema.KeyOwner, schema.KeyCreation, schema.KeyDocType, schema.KeyLocal:
			continue
		}
		r[k] = schema.CloneValue(v)
	}
	r[schema.KeyModified] = m.now().UTC().Format("2006-01-02 15:04:05.000000")
	m.docs[docType][name] = r
	return r.Clone(), nil
}

func (m *Memory) DeleteDocument(ctx context.Context, _ schema.Identity, docType, name string) error {
	if err := m.enter(ctx, "delete", docType, name); err != nil {
		m.mu.Unlock()
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.docs[docType][name]; !ok {
		return fmt.Errorf("%s %s: %w", docType, name, ErrNotFound)
	}
	delete(m.docs[docType], name)
	return nil
}

// SearchDocuments supports "=", "!=" and "like" filters and orders by one
// field, modified descending by default.
func (m *Memory) SearchDocuments(ctx context.Context, docType string, q sdk.SearchQuery) ([]schema.Record, error) {
	if err := m.enter(ctx, "search", docType, ""); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	defer m.mu.Unlock()
	matchers := make([]func(schema.Record) bool, 0, len(q.Filters))
	for _, f := range q.Filters {
		mt, err := matcher(f)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, mt)
	}
	var out []schema.Record
next:
	for _, r := range m.docs[docType] {
		for _, mt := range matchers {
			if !mt(r) {
				continue next
			}
		}
		out = append(out, r)
	}

	order := q.OrderBy
	if order == "" {
		order = "modified desc"
	}
	key, dir, _ := strings.Cut(strings.TrimSpace(order), " ")
	desc := strings.EqualFold(strings.TrimSpace(dir), "desc")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := widgets.Str(out[i][key]), widgets.Str(out[j][key])
		if a == b {
			return out[i].Name() < out[j].Name()
		}
		if desc {
			return a > b
		}
		return a < b
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultListFields
	}
	res := make([]schema.Record, len(out))
	for i, r := range out {
		p := schema.Record{}
		for _, f := range fields {
			if v, ok := r[f]; ok {
				p[f] = schema.CloneValue(v)
			}
		}
		res[i] = p
	}
	return res, nil
}

func matcher(f sdk.Filter) (func(schema.Record) bool, error) {
	want := widgets.Str(f.Value)
	switch strings.ToLower(f.Op) {
	case "=", "":
		return func(r schema.Record) bool { return widgets.Str(r[f.Field]) == want }, nil
	case "!=":
		return func(r schema.Record) bool { return widgets.Str(r[f.Field]) != want }, nil
	case "like":
		pat := regexp.QuoteMeta(want)
		pat = strings.NewReplacer("%", ".*", "_", ".").Replace(pat)
		re, err := regexp.Compile("(?is)^" + pat + "$")
		if err != nil {
			return nil, err
		}
		return func(r schema.Record) bool { return re.MatchString(widgets.Str(r[f.Field])) }, nil
	}
	return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
}

func (m *Memory) CompanyCurrency(ctx context.Context, company string) (string, error) {
	if err := m.enter(ctx, "company", "Company", company); err != nil {
		m.mu.Unlock()
		return "", err
	}
	defer m.mu.Unlock()
	cur, ok := m.companies[company]
	if !ok {
		return "", fmt.Errorf("company %s: %w", company, ErrNotFound)
	}
	return cur, nil
}

var _ Client = (*Memory)(nil)
