package table

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/faciam-dev/docform/internal/condition"
	"github.com/faciam-dev/docform/internal/customfield/validators"
	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/pkg/metrics"
	"github.com/faciam-dev/docform/pkg/schema"
)

// ErrRowOutOfRange is returned for a row index outside the current rows.
var ErrRowOutOfRange = errors.New("row index out of range")

// Editor holds the rows and selection of one Table field. Rows are
// positional: deleting a row shifts the index of every row after it.
// Selection never appears in Value.
type Editor struct {
	mu       sync.Mutex
	field    schema.FieldDescriptor
	fields   []schema.FieldDescriptor
	byName   map[string]schema.FieldDescriptor
	rows     []map[string]any
	selected map[int]struct{}

	reg      widgets.Registry
	eval     *condition.Evaluator
	defaults map[string]any
	rules    []Rule
	onChange func(rows []map[string]any)

	hideUnlabeled bool
}

type Option func(*Editor)

func WithRegistry(r widgets.Registry) Option {
	return func(e *Editor) { e.reg = r }
}

func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Editor) { e.eval = ev }
}

// WithRowDefaults overrides the seed value of the named child fields.
func WithRowDefaults(d map[string]any) Option {
	return func(e *Editor) { e.defaults = d }
}

func WithRules(rules ...Rule) Option {
	return func(e *Editor) { e.rules = append(e.rules, rules...) }
}

// WithHideUnlabeled hides child fields that have no label.
func WithHideUnlabeled(hide bool) Option {
	return func(e *Editor) { e.hideUnlabeled = hide }
}

// WithOnChange is called with a copy of the rows after every mutation.
func WithOnChange(fn func(rows []map[string]any)) Option {
	return func(e *Editor) { e.onChange = fn }
}

// New builds an editor for field over the child schema fields. rows are
// copied and decoded through the registry.
func New(field schema.FieldDescriptor, childFields []schema.FieldDescriptor, rows []map[string]any, opts ...Option) *Editor {
	e := &Editor{
		field:    field,
		fields:   childFields,
		byName:   make(map[string]schema.FieldDescriptor, len(childFields)),
		selected: map[int]struct{}{},
		reg:      widgets.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.eval == nil {
		e.eval = condition.New()
	}
	for _, f := range childFields {
		if _, dup := e.byName[f.FieldName]; !dup && f.HasValue() {
			e.byName[f.FieldName] = f
		}
	}
	if r := AmountRule(childFields); r != nil {
		e.rules = append([]Rule{r}, e.rules...)
	}
	e.rows = e.decode(rows)
	return e
}

func (e *Editor) decode(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		row := schema.CloneMap(r)
		if row == nil {
			row = map[string]any{}
		}
		widgets.DecodeRecord(e.reg, e.fields, row)
		out = append(out, row)
	}
	return out
}

// Field returns the Table field the editor serves.
func (e *Editor) Field() schema.FieldDescriptor { return e.field }

// Fields returns the child schema fields.
func (e *Editor) Fields() []schema.FieldDescriptor {
	return append([]schema.FieldDescriptor(nil), e.fields...)
}

// Columns returns the fields shown in the collapsed list representation:
// those flagged in_list_view, or every value field when none is flagged.
func (e *Editor) Columns() []schema.FieldDescriptor {
	var flagged, all []schema.FieldDescriptor
	for _, f := range e.fields {
		if !f.HasValue() || bool(f.Hidden) {
			continue
		}
		all = append(all, f)
		if f.InListView {
			flagged = append(flagged, f)
		}
	}
	if len(flagged) > 0 {
		return flagged
	}
	return all
}

// seed builds a new row from the fields a row can show. Unconditional fields
// are seeded first so that conditional fields can be decided against them.
func (e *Editor) seed() map[string]any {
	row := map[string]any{}
	var conditional []schema.FieldDescriptor
	for _, f := range e.fields {
		if !f.HasValue() || bool(f.Hidden) || (e.hideUnlabeled && f.Unlabeled()) {
			continue
		}
		if f.DependsOn != "" {
			conditional = append(conditional, f)
			continue
		}
		row[f.FieldName] = e.seedValue(f)
	}
	base := schema.CloneMap(row)
	for _, f := range conditional {
		if ok, _ := e.eval.Check(f.FieldName, f.DependsOn, base); ok {
			row[f.FieldName] = e.seedValue(f)
		}
	}
	for _, r := range e.rules {
		r(row, "")
	}
	return row
}

func (e *Editor) seedValue(f schema.FieldDescriptor) any {
	if d, ok := e.defaults[f.FieldName]; ok {
		return e.reg.Lookup(f.FieldType).Decode(f, d)
	}
	return widgets.Seed(e.reg, f)
}

// AddRow appends one seeded row and returns its index.
func (e *Editor) AddRow() int {
	e.mu.Lock()
	e.rows = append(e.rows, e.seed())
	idx := len(e.rows) - 1
	rows := e.copyRows()
	e.mu.Unlock()
	e.notify(rows)
	return idx
}

// AddRows appends n seeded rows, equivalent to n calls of AddRow.
func (e *Editor) AddRows(n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	for i := 0; i < n; i++ {
		e.rows = append(e.rows, e.seed())
	}
	rows := e.copyRows()
	e.mu.Unlock()
	e.notify(rows)
}

// DeleteSelected removes the selected rows, keeps the order of the rest and
// clears the selection. It returns the number of rows removed.
func (e *Editor) DeleteSelected() int {
	e.mu.Lock()
	if len(e.selected) == 0 {
		e.mu.Unlock()
		return 0
	}
	kept := make([]map[string]any, 0, len(e.rows))
	for i, r := range e.rows {
		if _, sel := e.selected[i]; !sel {
			kept = append(kept, r)
		}
	}
	removed := len(e.rows) - len(kept)
	e.rows = kept
	e.selected = map[int]struct{}{}
	rows := e.copyRows()
	e.mu.Unlock()
	e.notify(rows)
	return removed
}

// UpdateCell decodes raw for the named child field and writes it into row i.
// Rules and mutation validators run on a copy; on error the row keeps its
// previous value.
func (e *Editor) UpdateCell(i int, fieldname string, raw any) error {
	e.mu.Lock()
	if i < 0 || i >= len(e.rows) {
		n := len(e.rows)
		e.mu.Unlock()
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, i, n)
	}
	f, ok := e.byName[fieldname]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, e.field.Options, fieldname)
	}
	if f.ReadOnly || f.FieldType == schema.ReadOnly {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", schema.ErrReadOnlyField, e.field.Options, fieldname)
	}
	v := e.reg.Lookup(f.FieldType).Decode(f, raw)
	if verr := validators.Validate(validators.StageMutation, f, v); verr != nil {
		e.mu.Unlock()
		metrics.ValidationErrors.WithLabelValues(verr.Validator).Inc()
		return verr
	}
	row := schema.CloneMap(e.rows[i])
	row[fieldname] = v
	for _, r := range e.rules {
		r(row, fieldname)
	}
	e.rows[i] = row
	rows := e.copyRows()
	e.mu.Unlock()
	e.notify(rows)
	return nil
}

// ToggleRowSelection flips the selection of row i.
func (e *Editor) ToggleRowSelection(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.rows) {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, i, len(e.rows))
	}
	if _, ok := e.selected[i]; ok {
		delete(e.selected, i)
	} else {
		e.selected[i] = struct{}{}
	}
	return nil
}

// ToggleSelectAll selects every row unless all rows are already selected, in
// which case it clears the selection.
func (e *Editor) ToggleSelectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.selected) == len(e.rows) {
		e.selected = map[int]struct{}{}
		return
	}
	e.selected = make(map[int]struct{}, len(e.rows))
	for i := range e.rows {
		e.selected[i] = struct{}{}
	}
}

// Selected returns the selected indices in ascending order.
func (e *Editor) Selected() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.selected))
	for i := range e.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

// Row returns a copy of row i.
func (e *Editor) Row(i int) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.rows) {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, i, len(e.rows))
	}
	return schema.CloneMap(e.rows[i]), nil
}

// Value is the persisted form of the table: a plain copy of the rows.
func (e *Editor) Value() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyRows()
}

// Reset replaces the rows and clears the selection without notifying.
func (e *Editor) Reset(rows []map[string]any) {
	decoded := e.decode(rows)
	e.mu.Lock()
	e.rows = decoded
	e.selected = map[int]struct{}{}
	e.mu.Unlock()
}

// VisibleFields evaluates the child value fields against row i. Layout
// fields never appear in a row.
func (e *Editor) VisibleFields(i int) ([]schema.FieldDescriptor, []*condition.Error, error) {
	row, err := e.Row(i)
	if err != nil {
		return nil, nil, err
	}
	candidates := make([]schema.FieldDescriptor, 0, len(e.fields))
	for _, f := range e.fields {
		if !f.HasValue() || bool(f.Hidden) || (e.hideUnlabeled && f.Unlabeled()) {
			continue
		}
		candidates = append(candidates, f)
	}
	visible, errs := e.eval.Filter(candidates, row)
	return visible, errs, nil
}

// Encode returns the rows in wire form.
func (e *Editor) Encode() []map[string]any {
	rows := e.Value()
	for i, r := range rows {
		rows[i] = widgets.EncodeRecord(e.reg, e.fields, r)
	}
	return rows
}

func (e *Editor) copyRows() []map[string]any {
	out := make([]map[string]any, len(e.rows))
	for i, r := range e.rows {
		out[i] = schema.CloneMap(r)
	}
	return out
}

func (e *Editor) notify(rows []map[string]any) {
	if e.onChange != nil {
		e.onChange(rows)
	}
}
