package table

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/docform/internal/customfield/validators"
	"github.com/faciam-dev/docform/pkg/schema"
)

var itemFields = []schema.FieldDescriptor{
	{FieldName: "item_code", Label: "Item", FieldType: schema.Link, Options: "Item", InListView: true, ParentSchema: "Sales Order Item"},
	{FieldName: "qty", Label: "Qty", FieldType: schema.Float, InListView: true, ParentSchema: "Sales Order Item"},
	{FieldName: "rate", Label: "Rate", FieldType: schema.Currency, ParentSchema: "Sales Order Item"},
	{FieldName: "amount", Label: "Amount", FieldType: schema.Currency, ReadOnly: true, ParentSchema: "Sales Order Item"},
	{FieldName: "sec", FieldType: schema.SectionBreak, ParentSchema: "Sales Order Item"},
	{FieldName: "discount", Label: "Discount", FieldType: schema.Percent, DependsOn: "eval:doc.qty > 0", ParentSchema: "Sales Order Item"},
	{FieldName: "note", Label: "Note", FieldType: schema.Data, Hidden: true, ParentSchema: "Sales Order Item"},
}

var itemsField = schema.FieldDescriptor{FieldName: "items", Label: "Items", FieldType: schema.Table, Options: "Sales Order Item"}

func newEditor(opts ...Option) *Editor {
	return New(itemsField, itemFields, nil, opts...)
}

func TestAddRowSeedsVisibleDefaults(t *testing.T) {
	e := newEditor(WithRowDefaults(map[string]any{"qty": 1}))
	idx := e.AddRow()
	if idx != 0 {
		t.Fatalf("idx = %v, want %v", idx, 0)
	}

	row, err := e.Row(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{
		"item_code": "",
		"qty":       1.0,
		"rate":      0.0,
		"amount":    0.0,
		"discount":  0.0,
	}, row); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestConditionalFieldNotSeededWhenHidden(t *testing.T) {
	e := newEditor()
	e.AddRow()
	row, err := e.Row(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, seeded := row["discount"]
	if seeded {
		t.Fatal("discount depends on qty > 0")
	}
	_, seeded = row["note"]
	if seeded {
		t.Fatal("hidden fields are not seeded")
	}
}

func TestAddRowsEqualsRepeatedAddRow(t *testing.T) {
	batch := newEditor(WithRowDefaults(map[string]any{"qty": 1}))
	batch.AddRows(5)

	single := newEditor(WithRowDefaults(map[string]any{"qty": 1}))
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(i, single.AddRow()); diff != "" {
			t.Fatalf("single.AddRow() mismatch (-want +got):\n%s", diff)
		}
	}
	if diff := cmp.Diff(single.Value(), batch.Value()); diff != "" {
		t.Fatalf("batch.Value() mismatch (-want +got):\n%s", diff)
	}
	if got := batch.Len(); got != 5 {
		t.Fatalf("batch.Len() = %v, want %v", got, 5)
	}
}

func TestDeleteSelectedReindexes(t *testing.T) {
	e := newEditor()
	e.AddRows(4)
	for i := 0; i < 4; i++ {
		if err := e.UpdateCell(i, "item_code", []string{"A", "B", "C", "D"}[i]); err != nil {
			t.Fatalf("UpdateCell: %v", err)
		}
	}
	if err := e.ToggleRowSelection(1); err != nil {
		t.Fatalf("ToggleRowSelection: %v", err)
	}
	if err := e.ToggleRowSelection(3); err != nil {
		t.Fatalf("ToggleRowSelection: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3}, e.Selected()); diff != "" {
		t.Fatalf("e.Selected() mismatch (-want +got):\n%s", diff)
	}

	if got := e.DeleteSelected(); got != 2 {
		t.Fatalf("e.DeleteSelected() = %v, want %v", got, 2)
	}
	if got := e.Selected(); len(got) != 0 {
		t.Fatalf("Selected: got %v, want none", got)
	}
	rows := e.Value()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if got := rows[0]["item_code"]; got != "A" {
		t.Fatalf("rows[0][\"item_code\"] = %v, want %v", got, "A")
	}
	if got := rows[1]["item_code"]; got != "C" {
		t.Fatalf("rows[1][\"item_code\"] = %v, want %v", got, "C")
	}
}

func TestSelectAllAfterDeleteIsAllOrNothing(t *testing.T) {
	for _, n := range []int{0, 1, 3, 6} {
		for _, pick := range [][]int{{}, {0}, {0, 2}, {1, 2, 3, 4, 5}} {
			e := newEditor()
			e.AddRows(n)
			for _, i := range pick {
				if i < n {
					if err := e.ToggleRowSelection(i); err != nil {
						t.Fatalf("ToggleRowSelection: %v", err)
					}
				}
			}
			e.DeleteSelected()
			e.ToggleSelectAll()
			sel := e.Selected()
			if !(len(sel) == 0 || len(sel) == e.Len()) {
				t.Fatalf("partial selection %v of %d", sel, e.Len())
			}
			for _, i := range sel {
				if i >= e.Len() {
					t.Fatalf("index %d out of %d rows", i, e.Len())
				}
			}
		}
	}
}

func TestToggleSelectAllClearsWhenFull(t *testing.T) {
	e := newEditor()
	e.AddRows(3)
	e.ToggleSelectAll()
	if diff := cmp.Diff([]int{0, 1, 2}, e.Selected()); diff != "" {
		t.Fatalf("e.Selected() mismatch (-want +got):\n%s", diff)
	}
	e.ToggleSelectAll()
	if got := e.Selected(); len(got) != 0 {
		t.Fatalf("Selected: got %v, want none", got)
	}

	if err := e.ToggleRowSelection(1); err != nil {
		t.Fatalf("ToggleRowSelection: %v", err)
	}
	e.ToggleSelectAll()
	if diff := cmp.Diff([]int{0, 1, 2}, e.Selected()); diff != "" {
		t.Fatalf("e.Selected() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateCellDecodesAndDerivesAmount(t *testing.T) {
	e := newEditor()
	e.AddRow()
	if err := e.UpdateCell(0, "qty", "3"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	if err := e.UpdateCell(0, "rate", "10.333"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}

	row, err := e.Row(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := row["qty"]; got != 3.0 {
		t.Fatalf("row[\"qty\"] = %v, want %v", got, 3.0)
	}
	if got := row["rate"]; got != 10.333 {
		t.Fatalf("row[\"rate\"] = %v, want %v", got, 10.333)
	}
	if got := row["amount"]; got != 31.0 {
		t.Fatalf("row[\"amount\"] = %v, want %v", got, 31.0)
	}
}

func TestUpdateCellRejections(t *testing.T) {
	var notified int
	e := newEditor(WithOnChange(func([]map[string]any) { notified++ }))
	e.AddRow()
	if err := e.UpdateCell(0, "qty", 2); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	before, _ := e.Row(0)
	notified = 0

	err := e.UpdateCell(1, "qty", 1)
	if !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("got %v, want %v", err, ErrRowOutOfRange)
	}
	if err := e.UpdateCell(-1, "qty", 1); !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("UpdateCell: got %v, want %v", err, ErrRowOutOfRange)
	}
	if err := e.UpdateCell(0, "bogus", 1); !errors.Is(err, schema.ErrUnknownField) {
		t.Fatalf("UpdateCell: got %v, want %v", err, schema.ErrUnknownField)
	}
	if err := e.UpdateCell(0, "amount", 1); !errors.Is(err, schema.ErrReadOnlyField) {
		t.Fatalf("UpdateCell: got %v, want %v", err, schema.ErrReadOnlyField)
	}

	err = e.UpdateCell(0, "qty", -1)
	var verr *validators.Error
	if !errors.As(err, &verr) {
		t.Fatal("errors.As(err, &verr) is false")
	}
	if got := verr.Field; got != "qty" {
		t.Fatalf("verr.Field = %v, want %v", got, "qty")
	}
	if !errors.Is(err, validators.ErrInvalid) {
		t.Fatalf("got %v, want %v", err, validators.ErrInvalid)
	}

	after, _ := e.Row(0)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("after mismatch (-want +got):\n%s", diff)
	}
	if notified != 0 {
		t.Fatalf("notified = %d, want 0", notified)
	}
}

func TestValueNeverCarriesSelectionAndIsACopy(t *testing.T) {
	e := New(itemsField, itemFields, []map[string]any{{"qty": "2", "rate": 5, "custom": "x"}})
	if err := e.ToggleRowSelection(0); err != nil {
		t.Fatalf("ToggleRowSelection: %v", err)
	}

	v := e.Value()
	if diff := cmp.Diff([]map[string]any{{"qty": 2.0, "rate": 5.0, "custom": "x"}}, v); diff != "" {
		t.Fatalf("v mismatch (-want +got):\n%s", diff)
	}
	v[0]["qty"] = 99.0
	row, _ := e.Row(0)
	if got := row["qty"]; got != 2.0 {
		t.Fatalf("row[\"qty\"] = %v, want %v", got, 2.0)
	}
}

func TestColumnsAndRowVisibility(t *testing.T) {
	e := newEditor()
	cols := e.Columns()
	if len(cols) != 2 {
		t.Fatalf("len(cols) = %d, want 2", len(cols))
	}
	if got := cols[0].FieldName; got != "item_code" {
		t.Fatalf("cols[0].FieldName = %v, want %v", got, "item_code")
	}
	if got := cols[1].FieldName; got != "qty" {
		t.Fatalf("cols[1].FieldName = %v, want %v", got, "qty")
	}

	e.AddRow()
	visible, errs, err := e.VisibleFields(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	names := []string{}
	for _, f := range visible {
		names = append(names, f.FieldName)
	}
	if diff := cmp.Diff([]string{"item_code", "qty", "rate", "amount"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	if err := e.UpdateCell(0, "qty", 1); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	visible, _, _ = e.VisibleFields(0)
	if len(visible) != 5 {
		t.Fatalf("len(visible) = %d, want 5", len(visible))
	}

	_, _, err = e.VisibleFields(3)
	if !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("got %v, want %v", err, ErrRowOutOfRange)
	}
}

func TestEncodeProducesWireValues(t *testing.T) {
	fields := append([]schema.FieldDescriptor{{FieldName: "delivered", Label: "Delivered", FieldType: schema.Check}}, itemFields...)
	e := New(itemsField, fields, []map[string]any{{"delivered": true, "qty": 1}})
	rows := e.Encode()
	if got := rows[0]["delivered"]; got != 1 {
		t.Fatalf("rows[0][\"delivered\"] = %v, want %v", got, 1)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(2.499999); got != 2.5 {
		t.Fatalf("Round2(2.499999) = %v, want %v", got, 2.5)
	}
	if got := Round2(-1.2449); got != -1.24 {
		t.Fatalf("Round2(-1.2449) = %v, want %v", got, -1.24)
	}
	if got := Round2(0); got != 0.0 {
		t.Fatalf("Round2(0) = %v, want %v", got, 0.0)
	}
}

func TestHideUnlabeledChildFields(t *testing.T) {
	fields := append([]schema.FieldDescriptor{{FieldName: "idx_hint", FieldType: schema.Data}}, itemFields[:3]...)

	e := New(itemsField, fields, []map[string]any{{}})
	visible, _, err := e.VisibleFields(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(visible) != 4 {
		t.Fatalf("len(visible) = %d, want 4", len(visible))
	}

	e = New(itemsField, fields, []map[string]any{{}}, WithHideUnlabeled(true))
	visible, _, err = e.VisibleFields(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(visible) != 3 {
		t.Fatalf("len(visible) = %d, want 3", len(visible))
	}
	if got := visible[0].FieldName; got != "item_code" {
		t.Fatalf("visible[0].FieldName = %v, want %v", got, "item_code")
	}

	row, err := e.Row(e.AddRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := row["idx_hint"]; ok {
		t.Fatalf("seeded row carries hidden unlabeled field: %v", row)
	}
	if _, ok := row["item_code"]; !ok {
		t.Fatalf("seeded row lacks item_code: %v", row)
	}
}
