package sdk

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/internal/table"
	"github.com/faciam-dev/docform/pkg/schema"
)

// Diff returns a unified diff between the document as loaded and the
// payload Save would submit. Both sides go through the same codecs, child
// rows included. Create mode diffs against an empty document.
func (f *Form) Diff() (string, error) {
	f.mu.Lock()
	if !f.state.Editable() {
		st := f.state
		f.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotReady, st)
	}
	before := map[string]any{}
	if f.original != nil {
		fields := f.fs.Ordered()
		orig := schema.CloneMap(f.original)
		widgets.DecodeRecord(f.reg, fields, orig)
		before = widgets.EncodeRecord(f.reg, fields, orig)
		for name, ed := range f.tables {
			rows, _ := orig[name].([]map[string]any)
			before[name] = table.New(ed.Field(), ed.Fields(), rows, table.WithRegistry(f.reg)).Encode()
		}
		delete(before, schema.KeyLocal)
	}
	after := f.payload()
	f.mu.Unlock()

	a, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a) + "\n"),
		B:        difflib.SplitLines(string(b) + "\n"),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	})
}
