package widgets

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/faciam-dev/docform/internal/util"
	"github.com/faciam-dev/docform/pkg/schema"
)

// Widget is the input contract a presentation layer renders for a field.
type Widget struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Keyboard  string `json:"keyboard,omitempty"`
	Multiline bool   `json:"multiline,omitempty"`
	Picker    string `json:"picker,omitempty"`
	Layout    bool   `json:"layout,omitempty"`
}

// Capability binds a field type to its widget and value codec. Decode never
// fails: invalid input maps to the type's default so the record stays
// serializable. Encode produces the wire value.
type Capability struct {
	Type    schema.FieldType
	Widget  Widget
	Decode  func(f schema.FieldDescriptor, raw any) any
	Encode  func(f schema.FieldDescriptor, v any) any
	Default func(f schema.FieldDescriptor) any
}

var ErrInvalidCapability = errors.New("capability needs a type, decode, encode and default")

type Registry interface {
	// Lookup returns the capability for t, or the Data capability when t is
	// not registered.
	Lookup(t schema.FieldType) Capability
	Register(c Capability) error
	Has(t schema.FieldType) bool
	List() []Capability
}

type inMemory struct {
	mu    sync.RWMutex
	items map[schema.FieldType]Capability
}

// NewInMemory returns a registry holding the built-in capabilities.
func NewInMemory() Registry {
	r := &inMemory{items: make(map[schema.FieldType]Capability)}
	for _, c := range builtin() {
		r.items[c.Type] = c
	}
	return r
}

var shared = NewInMemory()

// Default is the process-wide registry with the built-in capabilities.
func Default() Registry { return shared }

func (r *inMemory) Lookup(t schema.FieldType) Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.items[t]; ok {
		return c
	}
	return r.items[schema.Data]
}

// Register adds or replaces the capability of c.Type; a type has exactly one.
func (r *inMemory) Register(c Capability) error {
	if c.Type == "" || c.Decode == nil || c.Encode == nil || c.Default == nil {
		return ErrInvalidCapability
	}
	r.mu.Lock()
	r.items[c.Type] = c
	r.mu.Unlock()
	return nil
}

func (r *inMemory) Has(t schema.FieldType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[t]
	return ok
}

func (r *inMemory) List() []Capability {
	r.mu.RLock()
	out := make([]Capability, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

var now = time.Now

// Seed returns the initial value of f: the declared default decoded through
// the field's codec, or the codec default when none is declared. Today and
// Now resolve against the current clock.
func Seed(r Registry, f schema.FieldDescriptor) any {
	c := r.Lookup(f.FieldType)
	if f.Default == "" || f.FieldType.Layout() || f.FieldType == schema.Table {
		return c.Default(f)
	}
	if kw, ok := util.TemporalDefault(f.Default); ok {
		switch f.FieldType {
		case schema.Date:
			return now().Format(dateLayout)
		case schema.Datetime:
			return now().UTC().Format(time.RFC3339)
		case schema.Time:
			return now().Format(timeLayout)
		}
		if kw == util.DefaultToday {
			return c.Decode(f, now().Format(dateLayout))
		}
	}
	return c.Decode(f, f.Default)
}

// DecodeRecord decodes every declared field of values in place through its
// capability. Keys without a descriptor are left untouched.
func DecodeRecord(r Registry, fields []schema.FieldDescriptor, values map[string]any) {
	for _, f := range fields {
		if !f.HasValue() {
			continue
		}
		raw, ok := values[f.FieldName]
		if !ok {
			continue
		}
		values[f.FieldName] = r.Lookup(f.FieldType).Decode(f, raw)
	}
}

// EncodeRecord returns a copy of values with every declared field encoded
// for the wire. Unknown keys are copied as is.
func EncodeRecord(r Registry, fields []schema.FieldDescriptor, values map[string]any) map[string]any {
	out := schema.CloneMap(values)
	if out == nil {
		out = map[string]any{}
	}
	for _, f := range fields {
		if !f.HasValue() {
			continue
		}
		v, ok := out[f.FieldName]
		if !ok {
			continue
		}
		out[f.FieldName] = r.Lookup(f.FieldType).Encode(f, v)
	}
	return out
}
