package metadata

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docform/pkg/schema"
)

type fakeSource struct {
	mu       sync.Mutex
	schemas  map[string]*schema.Schema
	fail     map[string]error
	calls    map[string]int
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFake() *fakeSource {
	return &fakeSource{schemas: map[string]*schema.Schema{}, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeSource) GetDocTypeMetadata(ctx context.Context, docType string) (*schema.Schema, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[docType]++
	if err := f.fail[docType]; err != nil {
		return nil, err
	}
	s, ok := f.schemas[docType]
	if !ok {
		return nil, errors.New("DocType " + docType + " not found")
	}
	cp := *s
	cp.Fields = append([]schema.FieldDescriptor(nil), s.Fields...)
	return &cp, nil
}

func salesOrder() *fakeSource {
	src := newFake()
	src.schemas["Sales Order"] = &schema.Schema{
		DocType: "Sales Order",
		Fields: []schema.FieldDescriptor{
			{FieldName: "customer", Label: "Customer", FieldType: schema.Link, Options: "Customer", ParentSchema: "Sales Order"},
			{FieldName: "items", Label: "Items", FieldType: schema.Table, Options: "Sales Order Item"},
			{FieldName: "taxes", Label: "Taxes", FieldType: schema.Table, Options: "Sales Taxes"},
		},
		FieldOrder: []string{"customer", "items", "taxes"},
	}
	src.schemas["Sales Order Item"] = &schema.Schema{
		DocType: "Sales Order Item",
		IsTable: true,
		Fields: []schema.FieldDescriptor{
			{FieldName: "rate", Label: "Rate", FieldType: schema.Currency},
			{FieldName: "qty", Label: "Qty", FieldType: schema.Float},
			{FieldName: "serials", Label: "Serials", FieldType: schema.Table, Options: "Serial Row"},
		},
		FieldOrder: []string{"qty", "rate", "serials"},
	}
	src.schemas["Serial Row"] = &schema.Schema{
		DocType: "Serial Row",
		Fields:  []schema.FieldDescriptor{{FieldName: "serial_no", Label: "Serial", FieldType: schema.Data}},
	}
	return src
}

func names(fields []schema.FieldDescriptor) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.FieldName)
	}
	return out
}

func TestLoadFlattensChildSchemas(t *testing.T) {
	src := salesOrder()
	src.schemas["Sales Taxes"] = &schema.Schema{
		DocType: "Sales Taxes",
		Fields:  []schema.FieldDescriptor{{FieldName: "tax_amount", Label: "Tax", FieldType: schema.Currency}},
	}
	fs, err := NewLoader(src).Load(context.Background(), "Sales Order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fs.ChildErrors(); err != nil {
		t.Fatalf("ChildErrors: %v", err)
	}

	if diff := cmp.Diff([]string{"customer", "items", "taxes"}, names(fs.Ordered())); diff != "" {
		t.Fatalf("names(fs.Ordered()) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"qty", "rate", "serials"}, names(fs.ChildFields("Sales Order Item"))); diff != "" {
		t.Fatalf("names(fs.ChildFields(\"Sales Order Item\")) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"serial_no"}, names(fs.ChildFields("Serial Row"))); diff != "" {
		t.Fatalf("names(fs.ChildFields(\"Serial Row\")) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tax_amount"}, names(fs.ChildFields("Sales Taxes"))); diff != "" {
		t.Fatalf("names(fs.ChildFields(\"Sales Taxes\")) mismatch (-want +got):\n%s", diff)
	}
	if got := fs.All(); len(got) != 8 {
		t.Fatalf("All: got %d, want 8", len(got))
	}

	for _, f := range fs.ChildFields("Serial Row") {
		if got := f.ParentSchema; got != "Serial Row" {
			t.Fatalf("f.ParentSchema = %v, want %v", got, "Serial Row")
		}
	}
	for _, f := range fs.Ordered() {
		if got := f.ParentSchema; got != "Sales Order" {
			t.Fatalf("f.ParentSchema = %v, want %v", got, "Sales Order")
		}
	}
	child, ok := fs.Child("Sales Order Item")
	if !ok {
		t.Fatal("ok is false")
	}
	if !bool(child.IsTable) {
		t.Fatal("bool(child.IsTable) is false")
	}
}

func TestChildFailureDegradesToEmptyFieldSet(t *testing.T) {
	src := salesOrder()
	fs, err := NewLoader(src).Load(context.Background(), "Sales Order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fs.ChildFields("Sales Taxes"); len(got) != 0 {
		t.Fatalf("ChildFields: got %v, want none", got)
	}
	if err := fs.ChildError("Sales Taxes"); err == nil {
		t.Fatal("ChildError: expected an error")
	}
	if err := fs.ChildError("Sales Order Item"); err != nil {
		t.Fatalf("ChildError: %v", err)
	}
	if err := fs.ChildErrors(); err == nil || !strings.Contains(err.Error(), "Sales Taxes") {
		t.Fatalf("child errors = %v", err)
	}
	if diff := cmp.Diff([]string{"serial_no"}, names(fs.ChildFields("Serial Row"))); diff != "" {
		t.Fatalf("names(fs.ChildFields(\"Serial Row\")) mismatch (-want +got):\n%s", diff)
	}
}

func TestParentFailureIsAnError(t *testing.T) {
	src := salesOrder()
	boom := errors.New("boom")
	src.fail["Sales Order"] = boom
	_, err := NewLoader(src).Load(context.Background(), "Sales Order")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestCyclesAreFetchedOnce(t *testing.T) {
	src := newFake()
	src.schemas["A"] = &schema.Schema{DocType: "A", Fields: []schema.FieldDescriptor{
		{FieldName: "bs", FieldType: schema.Table, Options: "B"},
		{FieldName: "bs2", FieldType: schema.Table, Options: "B"},
	}}
	src.schemas["B"] = &schema.Schema{DocType: "B", Fields: []schema.FieldDescriptor{
		{FieldName: "as", FieldType: schema.Table, Options: "A"},
	}}
	fs, err := NewLoader(src).Load(context.Background(), "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := src.calls["A"]; got != 1 {
		t.Fatalf("src.calls[\"A\"] = %v, want %v", got, 1)
	}
	if got := src.calls["B"]; got != 1 {
		t.Fatalf("src.calls[\"B\"] = %v, want %v", got, 1)
	}
	if diff := cmp.Diff([]string{"as"}, names(fs.ChildFields("B"))); diff != "" {
		t.Fatalf("names(fs.ChildFields(\"B\")) mismatch (-want +got):\n%s", diff)
	}
}

func TestChildFetchesRunConcurrentlyWithinLimit(t *testing.T) {
	src := newFake()
	src.delay = 20 * time.Millisecond
	parent := &schema.Schema{DocType: "P"}
	for _, c := range []string{"C1", "C2", "C3", "C4", "C5", "C6"} {
		parent.Fields = append(parent.Fields, schema.FieldDescriptor{FieldName: c, FieldType: schema.Table, Options: c})
		src.schemas[c] = &schema.Schema{DocType: c}
	}
	src.schemas["P"] = parent

	_, err := NewLoader(src, WithWorkers(3)).Load(context.Background(), "P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := src.peak.Load(); got > int32(3) {
		t.Fatalf("peak concurrency %d exceeds %d", got, int32(3))
	}
	if got := src.peak.Load(); got <= int32(1) {
		t.Fatalf("peak concurrency %d, want fan-out", got)
	}
}

func TestFieldOrderPermutations(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	base := []schema.FieldDescriptor{
		{FieldName: "a", FieldType: schema.Data},
		{FieldName: "b", FieldType: schema.Int},
		{FieldName: "c", FieldType: schema.Check},
		{FieldName: "d", FieldType: schema.Date},
		{FieldName: "e", FieldType: schema.Select},
	}
	for n := 0; n < 50; n++ {
		order := []string{"a", "b", "c", "d", "e", "ghost", "b"}
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		src := newFake()
		src.schemas["X"] = &schema.Schema{DocType: "X", Fields: base, FieldOrder: order}
		fs, err := NewLoader(src).Load(context.Background(), "X")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var want []string
		seen := map[string]bool{}
		for _, name := range order {
			if name == "ghost" || seen[name] {
				continue
			}
			seen[name] = true
			want = append(want, name)
		}
		if diff := cmp.Diff(want, names(fs.Ordered())); diff != "" {
			t.Fatalf("order %v: mismatch (-want +got):\n%s", order, diff)
		}
	}
}

func TestEmpty(t *testing.T) {
	fs := Empty("Note")
	if got := fs.DocType(); got != "Note" {
		t.Fatalf("fs.DocType() = %v, want %v", got, "Note")
	}
	if got := fs.Ordered(); len(got) != 0 {
		t.Fatalf("Ordered: got %v, want none", got)
	}
	if err := fs.ChildErrors(); err != nil {
		t.Fatalf("ChildErrors: %v", err)
	}
	_, ok := fs.Field("title")
	if ok {
		t.Fatal("ok is true")
	}
}
