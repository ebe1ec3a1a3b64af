package sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/faciam-dev/docform/internal/condition"
	"github.com/faciam-dev/docform/internal/customfield/validators"
	"github.com/faciam-dev/docform/internal/metadata"
	"github.com/faciam-dev/docform/internal/permission"
	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/internal/table"
	"github.com/faciam-dev/docform/internal/util"
	"github.com/faciam-dev/docform/pkg/metrics"
	"github.com/faciam-dev/docform/pkg/schema"
)

// CompanyField is seeded from the identity or the configured default company
// in create mode.
const CompanyField = "company"

// ErrNoTransport is returned by NewForm without a transport.
var ErrNoTransport = errors.New("form needs a transport")

// Form is the controller of one document form. It owns the value snapshot;
// every mutation goes through Set or a table editor and triggers a
// visibility recompute. Loads are tagged with a generation so a superseded
// load never overwrites newer state.
type Form struct {
	mu     sync.Mutex
	cfg    FormConfig
	logger *zap.SugaredLogger
	reg    widgets.Registry
	eval   *condition.Evaluator
	loader *metadata.Loader
	hidden map[string]struct{}

	gen      uint64
	state    State
	mode     Mode
	docType  string
	name     string
	defaults map[string]any
	err      error

	fs       *metadata.FormSchema
	checker  permission.Checker
	values   map[string]any
	original schema.Record
	tables   map[string]*table.Editor
	visible  []schema.FieldDescriptor
	condErrs []*ConditionError
}

// NewForm returns an idle form.
func NewForm(cfg FormConfig) (*Form, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = widgets.Default()
	}
	if cfg.Uploader == nil {
		cfg.Uploader = NopUploader{}
	}
	opts := []condition.Option{condition.WithLogger(logger), condition.WithCacheSize(cfg.CacheSize)}
	if cfg.OnConditionError != nil {
		opts = append(opts, condition.WithErrorSink(cfg.OnConditionError))
	}
	hidden := make(map[string]struct{}, len(cfg.HiddenFields))
	for _, h := range cfg.HiddenFields {
		hidden[h] = struct{}{}
	}
	return &Form{
		cfg:    cfg,
		logger: logger,
		reg:    reg,
		eval:   condition.New(opts...),
		loader: metadata.NewLoader(cfg.Transport, metadata.WithWorkers(cfg.SchemaWorkers), metadata.WithLogger(logger)),
		hidden: hidden,
		values: map[string]any{},
		tables: map[string]*table.Editor{},
	}, nil
}

// begin enters Loading for a new attempt and returns its generation.
func (f *Form) begin(mode Mode, docType, name string) uint64 {
	f.gen++
	f.state = StateLoading
	f.mode = mode
	f.docType = docType
	f.name = name
	f.err = nil
	return f.gen
}

// LoadEdit fetches the document and its schema concurrently. A document
// failure ends in LoadError. A schema failure still ends in Ready with an
// empty field set; the schema error is returned and kept in Err.
func (f *Form) LoadEdit(ctx context.Context, docType, name string) error {
	f.mu.Lock()
	gen := f.begin(ModeEdit, docType, name)
	f.mu.Unlock()
	f.logger.Debugw("load", "doctype", docType, "name", name, "mode", ModeEdit, "generation", gen)

	var (
		doc             schema.Record
		fs              *metadata.FormSchema
		docErr, metaErr error
		g               errgroup.Group
	)
	g.Go(func() error {
		doc, docErr = f.cfg.Transport.GetDocument(ctx, docType, name)
		return nil
	})
	g.Go(func() error {
		fs, metaErr = f.loader.Load(ctx, docType)
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.logger.Debugw("discard stale load", "doctype", docType, "name", name, "generation", gen)
		return ErrSuperseded
	}
	if docErr == nil && doc == nil {
		docErr = errors.New("empty response")
	}
	if docErr != nil {
		f.state = StateLoadError
		f.err = &OpError{Op: "load document", DocType: docType, Name: name, Kind: ErrDocumentLoad, Err: docErr}
		metrics.Loads.WithLabelValues(docType, string(ModeEdit), "error").Inc()
		f.logger.Errorw("load document failed", "doctype", docType, "name", name, "error", docErr)
		return f.err
	}
	if metaErr != nil {
		fs = metadata.Empty(docType)
		f.err = &OpError{Op: "load schema", DocType: docType, Kind: ErrSchemaLoad, Err: metaErr}
		f.logger.Warnw("schema unavailable, showing document without fields", "doctype", docType, "error", metaErr)
	}
	if err := f.install(fs, schema.CloneMap(doc), gen); err != nil {
		f.state = StateLoadError
		f.err = err
		return err
	}
	f.original = doc.Clone()
	f.state = StateReady
	metrics.Loads.WithLabelValues(docType, string(ModeEdit), metrics.Result(metaErr)).Inc()
	if metaErr != nil {
		return f.err
	}
	return nil
}

// LoadCreate fetches the schema and seeds a new document: codec defaults,
// declared defaults, company and currency, then the caller's defaults. A
// caller default rejected by a mutation validator fails the load.
func (f *Form) LoadCreate(ctx context.Context, docType string, defaults map[string]any) error {
	f.mu.Lock()
	gen := f.begin(ModeCreate, docType, "")
	f.defaults = schema.CloneMap(defaults)
	f.mu.Unlock()
	f.logger.Debugw("load", "doctype", docType, "mode", ModeCreate, "generation", gen)

	company := f.cfg.Identity.Company
	if company == "" {
		company = f.cfg.DefaultCompany
	}
	var (
		fs       *metadata.FormSchema
		metaErr  error
		currency string
		g        errgroup.Group
	)
	g.Go(func() error {
		fs, metaErr = f.loader.Load(ctx, docType)
		return nil
	})
	if company != "" && f.cfg.Companies != nil {
		g.Go(func() error {
			c, err := f.cfg.Companies.CompanyCurrency(ctx, company)
			if err != nil {
				f.logger.Warnw("company currency lookup failed", "company", company, "error", err)
				return nil
			}
			currency = c
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.logger.Debugw("discard stale load", "doctype", docType, "generation", gen)
		return ErrSuperseded
	}
	if metaErr != nil {
		f.state = StateLoadError
		f.err = &OpError{Op: "load schema", DocType: docType, Kind: ErrSchemaLoad, Err: metaErr}
		metrics.Loads.WithLabelValues(docType, string(ModeCreate), "error").Inc()
		f.logger.Errorw("load schema failed", "doctype", docType, "error", metaErr)
		return f.err
	}

	values := map[string]any{}
	for _, fd := range fs.Ordered() {
		if fd.HasValue() {
			values[fd.FieldName] = widgets.Seed(f.reg, fd)
		}
	}
	if _, ok := fs.Field(CompanyField); ok && company != "" {
		values[CompanyField] = company
	}
	if currency != "" {
		for _, fd := range fs.Ordered() {
			if fd.FieldType == schema.Link && fd.Options == "Currency" && widgets.Str(values[fd.FieldName]) == "" {
				values[fd.FieldName] = currency
			}
		}
	}
	for k, v := range f.defaults {
		fd, ok := fs.Field(k)
		if !ok || !fd.HasValue() || fd.FieldType == schema.Table {
			values[k] = schema.CloneValue(v)
			continue
		}
		dv := f.reg.Lookup(fd.FieldType).Decode(fd, v)
		if verr := validators.Validate(validators.StageMutation, fd, dv); verr != nil {
			metrics.ValidationErrors.WithLabelValues(verr.Validator).Inc()
			metrics.Loads.WithLabelValues(docType, string(ModeCreate), "error").Inc()
			f.state = StateLoadError
			f.err = verr
			return verr
		}
		values[k] = dv
	}
	name := placeholderName(docType)
	values[schema.KeyName] = name
	values[schema.KeyDocType] = docType
	values[schema.KeyLocal] = 1
	if f.cfg.Identity.ID != "" {
		values[schema.KeyOwner] = f.cfg.Identity.ID
	}
	if err := f.install(fs, values, gen); err != nil {
		f.state = StateLoadError
		f.err = err
		return err
	}
	f.name = name
	f.original = nil
	f.state = StateReady
	metrics.Loads.WithLabelValues(docType, string(ModeCreate), "ok").Inc()
	return nil
}

func placeholderName(docType string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(docType), "-"))
	return "new-" + slug + "-" + uuid.NewString()[:8]
}

// Refresh re-enters Loading for the current document, keeping the mode.
func (f *Form) Refresh(ctx context.Context) error {
	f.mu.Lock()
	mode, docType, name, defaults := f.mode, f.docType, f.name, schema.CloneMap(f.defaults)
	f.mu.Unlock()
	switch {
	case docType == "":
		return ErrNotReady
	case mode == ModeEdit:
		return f.LoadEdit(ctx, docType, name)
	default:
		return f.LoadCreate(ctx, docType, defaults)
	}
}

// Discard drops the form state. A load still in flight is ignored when it
// completes.
func (f *Form) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.state = StateIdle
	f.err = nil
	f.fs = nil
	f.checker = nil
	f.values = map[string]any{}
	f.original = nil
	f.tables = map[string]*table.Editor{}
	f.visible = nil
	f.condErrs = nil
}

// install decodes values through the schema, builds the table editors and
// the permission checker. Caller holds f.mu.
func (f *Form) install(fs *metadata.FormSchema, values map[string]any, gen uint64) error {
	mode := permission.ParseMode(f.cfg.PermissionMode)
	checker, err := permission.New(mode, fs.DocType(), fs.Permissions())
	if err != nil {
		return &OpError{Op: "load permissions", DocType: fs.DocType(), Kind: ErrSchemaLoad, Err: err}
	}
	top := fs.Ordered()
	widgets.DecodeRecord(f.reg, top, values)

	tables := map[string]*table.Editor{}
	for _, fd := range top {
		if fd.FieldType != schema.Table {
			continue
		}
		rows, _ := values[fd.FieldName].([]map[string]any)
		name := fd.FieldName
		ed := table.New(fd, fs.ChildFields(fd.Options), rows,
			table.WithRegistry(f.reg),
			table.WithEvaluator(f.eval),
			table.WithRowDefaults(f.cfg.RowDefaults),
			table.WithHideUnlabeled(f.cfg.HideUnlabeled),
			table.WithOnChange(func(rows []map[string]any) { f.tableChanged(gen, name, rows) }),
		)
		tables[name] = ed
		values[name] = ed.Value()
	}

	f.fs = fs
	f.checker = checker
	f.values = values
	f.tables = tables
	f.recompute()
	return nil
}

func (f *Form) tableChanged(gen uint64, name string, rows []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	f.values[name] = rows
	f.recompute()
}

// recompute re-evaluates the visible top-level fields. Caller holds f.mu.
func (f *Form) recompute() {
	if f.fs == nil {
		f.visible, f.condErrs = nil, nil
		return
	}
	candidates := make([]schema.FieldDescriptor, 0, len(f.fs.Ordered()))
	for _, fd := range f.fs.Ordered() {
		if bool(fd.Hidden) || fd.Blank() || (f.cfg.HideUnlabeled && fd.Unlabeled()) {
			continue
		}
		if _, h := f.hidden[fd.FieldName]; h {
			continue
		}
		candidates = append(candidates, fd)
	}
	f.visible, f.condErrs = f.eval.Filter(candidates, f.values)
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *Form) DocType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docType
}

// Name is the document name; in create mode it is a local placeholder until
// the first successful save.
func (f *Form) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Err returns the last surfaced load, save or delete error.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Schema returns the loaded schema, or nil before the first load settles.
func (f *Form) Schema() *metadata.FormSchema {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fs
}

// Fields returns every top-level field in field order, visible or not.
func (f *Form) Fields() []schema.FieldDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fs == nil {
		return nil
	}
	return f.fs.Ordered()
}

// VisibleFields returns the fields to render for the current snapshot.
func (f *Form) VisibleFields() []schema.FieldDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.FieldDescriptor(nil), f.visible...)
}

// ConditionErrors returns the failures of the last visibility recompute.
func (f *Form) ConditionErrors() []*ConditionError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ConditionError(nil), f.condErrs...)
}

// Value returns a copy of one value.
func (f *Form) Value(field string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[field]
	return schema.CloneValue(v), ok
}

// Snapshot returns a copy of every value, hidden fields included.
func (f *Form) Snapshot() schema.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return schema.Record(schema.CloneMap(f.values))
}

// Set decodes raw for a top-level field and stores it. Validation failures
// leave the previous value in place.
func (f *Form) Set(field string, raw any) error {
	f.mu.Lock()
	if !f.state.Editable() {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotReady, f.state)
	}
	fd, ok := f.fs.Field(field)
	if !ok || !fd.HasValue() {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, f.docType, field)
	}
	if fd.ReadOnly || fd.FieldType == schema.ReadOnly {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", ErrReadOnlyField, f.docType, field)
	}
	if fd.FieldType == schema.Table {
		ed, gen := f.tables[field], f.gen
		rows, _ := f.reg.Lookup(schema.Table).Decode(fd, raw).([]map[string]any)
		f.mu.Unlock()
		ed.Reset(rows)
		f.tableChanged(gen, field, ed.Value())
		return nil
	}
	v := f.reg.Lookup(fd.FieldType).Decode(fd, raw)
	if verr := validators.Validate(validators.StageMutation, fd, v); verr != nil {
		f.mu.Unlock()
		metrics.ValidationErrors.WithLabelValues(verr.Validator).Inc()
		return verr
	}
	f.values[field] = v
	f.recompute()
	f.mu.Unlock()
	return nil
}

// Table returns the editor of a Table field.
func (f *Form) Table(field string) (*table.Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fs == nil {
		return nil, ErrNotReady
	}
	fd, ok := f.fs.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, f.docType, field)
	}
	ed, ok := f.tables[field]
	if fd.FieldType != schema.Table || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTable, field)
	}
	return ed, nil
}

// Allowed reports whether the identity may perform act on the loaded
// document. The creator of a new document counts as its owner.
func (f *Form) Allowed(act schema.Action) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checker == nil {
		return false, ErrNotReady
	}
	return f.checker.Allowed(f.cfg.Identity, act, f.ownsLocked(f.original.Owner()))
}

func (f *Form) ownsLocked(owner string) bool {
	if f.mode == ModeCreate {
		return true
	}
	return permission.IsOwner(f.cfg.Identity, owner)
}

// deny records a permission failure. Caller holds f.mu.
func (f *Form) deny(act schema.Action, err error) error {
	if err == nil {
		err = &PermissionError{DocType: f.docType, Name: f.name, Action: act, User: f.cfg.Identity.ID}
	} else {
		err = &OpError{Op: string(act), DocType: f.docType, Name: f.name, Kind: ErrPermissionDenied, Err: err}
	}
	f.state = StateSaveError
	f.err = err
	metrics.PermissionDenials.WithLabelValues(f.docType, string(act)).Inc()
	f.logger.Infow("permission denied", "doctype", f.docType, "name", f.name, "action", act, "user", f.cfg.Identity.ID)
	return err
}

// Save submits the snapshot. Creating needs the create grant and updating
// the write grant honoring ownership. A denied or failed save makes no
// change to the values; the form stays editable for a retry.
func (f *Form) Save(ctx context.Context) (schema.Record, error) {
	f.mu.Lock()
	if !f.state.Editable() {
		st := f.state
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotReady, st)
	}
	act := schema.ActionWrite
	if f.mode == ModeCreate {
		act = schema.ActionCreate
	}
	ok, err := f.checker.Allowed(f.cfg.Identity, act, f.ownsLocked(f.original.Owner()))
	if err != nil || !ok {
		err = f.deny(act, err)
		f.mu.Unlock()
		return nil, err
	}
	for _, fd := range f.visible {
		if !fd.HasValue() {
			continue
		}
		if verr := validators.Validate(validators.StageSave, fd, f.values[fd.FieldName]); verr != nil {
			metrics.ValidationErrors.WithLabelValues(verr.Validator).Inc()
			f.err = verr
			f.mu.Unlock()
			return nil, verr
		}
	}
	payload := f.payload()
	gen, mode, docType, name := f.gen, f.mode, f.docType, f.name
	f.state = StateSaving
	f.mu.Unlock()

	var rec schema.Record
	if mode == ModeCreate {
		rec, err = f.cfg.Transport.CreateDocument(ctx, f.cfg.Identity, docType, payload)
	} else {
		rec, err = f.cfg.Transport.UpdateDocument(ctx, f.cfg.Identity, docType, name, payload)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	op := "update"
	if mode == ModeCreate {
		op = "create"
	}
	metrics.Submissions.WithLabelValues(docType, op, metrics.Result(err)).Inc()
	if gen != f.gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		f.state = StateSaveError
		f.err = &OpError{Op: op, DocType: docType, Name: name, Kind: ErrSave, Err: err}
		f.logger.Errorw("save failed", "doctype", docType, "name", name, "error", err)
		return nil, f.err
	}
	f.state = StateDone
	f.err = nil
	if rec != nil && rec.Name() != "" {
		f.name = rec.Name()
	}
	f.logger.Infow("saved", "doctype", docType, "name", f.name, "op", op)
	return rec.Clone(), nil
}

// payload encodes every value, hidden ones and keys without a descriptor
// included. Local placeholders are stripped. Caller holds f.mu.
func (f *Form) payload() map[string]any {
	out := widgets.EncodeRecord(f.reg, f.fs.Ordered(), f.values)
	for name, ed := range f.tables {
		out[name] = ed.Encode()
	}
	delete(out, schema.KeyLocal)
	if f.mode == ModeCreate {
		delete(out, schema.KeyName)
	}
	return out
}

// Delete removes the loaded document. The owner is re-read from the
// transport first since the delete grant may depend on ownership.
func (f *Form) Delete(ctx context.Context) error {
	f.mu.Lock()
	if !f.state.Editable() || f.mode != ModeEdit {
		st := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotReady, st)
	}
	gen, docType, name := f.gen, f.docType, f.name
	f.mu.Unlock()

	fresh, err := f.cfg.Transport.GetDocument(ctx, docType, name)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		if gen != f.gen {
			return ErrSuperseded
		}
		f.err = &OpError{Op: "delete", DocType: docType, Name: name, Kind: ErrDelete, Err: err}
		return f.err
	}

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return ErrSuperseded
	}
	ok, err := f.checker.Allowed(f.cfg.Identity, schema.ActionDelete, permission.IsOwner(f.cfg.Identity, fresh.Owner()))
	if err != nil || !ok {
		err = f.deny(schema.ActionDelete, err)
		f.mu.Unlock()
		return err
	}
	f.state = StateSaving
	f.mu.Unlock()

	err = f.cfg.Transport.DeleteDocument(ctx, f.cfg.Identity, docType, name)

	f.mu.Lock()
	defer f.mu.Unlock()
	metrics.Submissions.WithLabelValues(docType, "delete", metrics.Result(err)).Inc()
	if gen != f.gen {
		return ErrSuperseded
	}
	if err != nil {
		f.state = StateSaveError
		f.err = &OpError{Op: "delete", DocType: docType, Name: name, Kind: ErrDelete, Err: err}
		f.logger.Errorw("delete failed", "doctype", docType, "name", name, "error", err)
		return f.err
	}
	f.state = StateDone
	f.err = nil
	f.logger.Infow("deleted", "doctype", docType, "name", name)
	return nil
}

// LinkTarget resolves the doctype a Link or Dynamic Link field points at.
func (f *Form) LinkTarget(field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fs == nil {
		return "", ErrNotReady
	}
	fd, ok := f.fs.Field(field)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, f.docType, field)
	}
	var target string
	switch fd.FieldType {
	case schema.Link:
		target = fd.Options
	case schema.DynamicLink:
		target = widgets.Str(f.values[fd.Options])
	}
	if target == "" {
		return "", fmt.Errorf("%w: %s", ErrNoLinkTarget, field)
	}
	return target, nil
}

// SearchLink lists candidate documents for a link field whose name contains
// text.
func (f *Form) SearchLink(ctx context.Context, field, text string, limit int) ([]schema.Record, error) {
	target, err := f.LinkTarget(field)
	if err != nil {
		return nil, err
	}
	q := SearchQuery{Limit: util.SanitizeLimit(limit), Fields: []string{schema.KeyName}}
	if text = strings.TrimSpace(text); text != "" {
		q.Filters = []Filter{{Field: schema.KeyName, Op: "like", Value: "%" + text + "%"}}
	}
	return f.cfg.Transport.SearchDocuments(ctx, target, q)
}

// Upload stores data for an Attach or Attach Image field and sets the field
// to the returned file URL.
func (f *Form) Upload(ctx context.Context, field, filename string, data []byte) (string, error) {
	f.mu.Lock()
	if !f.state.Editable() {
		st := f.state
		f.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotReady, st)
	}
	fd, ok := f.fs.Field(field)
	if !ok || (fd.FieldType != schema.Attach && fd.FieldType != schema.AttachImage) {
		f.mu.Unlock()
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, f.docType, field)
	}
	docType, name := f.docType, f.name
	f.mu.Unlock()

	url, err := f.cfg.Uploader.Upload(ctx, docType, name, field, filename, data)
	if err != nil {
		return "", err
	}
	if err := f.Set(field, url); err != nil {
		return "", err
	}
	return url, nil
}
