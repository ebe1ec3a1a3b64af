package schema

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(fs []FieldDescriptor) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.FieldName)
	}
	return out
}

func TestOrderedFollowsFieldOrder(t *testing.T) {
	s := &Schema{
		Fields: []FieldDescriptor{
			{FieldName: "a", FieldType: Data},
			{FieldName: "b", FieldType: Int},
			{FieldName: "c", FieldType: Check},
		},
		FieldOrder: []string{"c", "missing", "a", "c", "b"},
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, names(s.Ordered())); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
}

func TestOrderedFallsBackToDeclarationOrder(t *testing.T) {
	s := &Schema{Fields: []FieldDescriptor{{FieldName: "x"}, {FieldName: "y"}, {FieldName: "x", Label: "dup"}}}
	got := s.Ordered()
	if diff := cmp.Diff([]string{"x", "y"}, names(got)); diff != "" {
		t.Fatalf("order diff (-want +got)\n%s", diff)
	}
	if got[0].Label != "" {
		t.Fatalf("expected first declaration to win, got %+v", got[0])
	}
}

// TestOrderedPermutations checks every shuffled order maps one to one onto the descriptors.
func TestOrderedPermutations(t *testing.T) {
	fields := []FieldDescriptor{{FieldName: "a"}, {FieldName: "b"}, {FieldName: "c"}, {FieldName: "d"}, {FieldName: "e"}}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		order := []string{"a", "b", "c", "d", "e", "zz"}
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		s := &Schema{Fields: fields, FieldOrder: order}
		var want []string
		for _, n := range order {
			if n != "zz" {
				want = append(want, n)
			}
		}
		if diff := cmp.Diff(want, names(s.Ordered())); diff != "" {
			t.Fatalf("order %v diff (-want +got)\n%s", order, diff)
		}
	}
}

func TestParseFieldType(t *testing.T) {
	cases := map[string]FieldType{
		"Data":          Data,
		"section break": SectionBreak,
		"Ratting":       Rating,
		"Child Table":   Table,
		"Small Text":    Text,
		"Dynamic Link":  DynamicLink,
		"Geolocation":   FieldType("Geolocation"),
	}
	for in, want := range cases {
		if got := ParseFieldType(in); got != want {
			t.Fatalf("ParseFieldType(%q) = %q, want %q", in, got, want)
		}
	}
	if FieldType("Geolocation").Known() {
		t.Fatalf("unexpected known type")
	}
}

func TestDecodeServerMeta(t *testing.T) {
	raw := `{
		"name": "Sales Order",
		"fields": [
			{"fieldname": "qty", "fieldtype": "Int", "reqd": 1, "hidden": 0, "in_list_view": "1"},
			{"fieldname": "items", "fieldtype": "Table", "options": "Sales Order Item", "read_only": true}
		],
		"field_order": ["items", "qty"],
		"permissions": [{"role": "Sales User", "read": 1, "write": 1, "if_owner": 1}]
	}`
	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !s.Fields[0].Required || s.Fields[0].Hidden || !s.Fields[0].InListView {
		t.Fatalf("flags not decoded: %+v", s.Fields[0])
	}
	if !s.Fields[1].ReadOnly || s.Fields[1].FieldType != Table {
		t.Fatalf("unexpected field: %+v", s.Fields[1])
	}
	g := s.Permissions[0]
	if !g.Allows(ActionWrite) || g.Allows(ActionDelete) || !bool(g.IfOwner) {
		t.Fatalf("unexpected grant: %+v", g)
	}
	if len(s.Tables()) != 1 {
		t.Fatalf("expected one table field")
	}
}

func TestChoices(t *testing.T) {
	if got := (FieldDescriptor{FieldType: Select}).Choices(); len(got) != 0 {
		t.Fatalf("expected empty choices, got %v", got)
	}
	got := (FieldDescriptor{FieldType: Select, Options: "\nOpen\r\nClosed"}).Choices()
	if diff := cmp.Diff([]string{"", "Open", "Closed"}, got); diff != "" {
		t.Fatalf("choices diff (-want +got)\n%s", diff)
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := Record{"items": []map[string]any{{"qty": 1}}, "name": "SO-1"}
	c := r.Clone()
	c["items"].([]map[string]any)[0]["qty"] = 5
	if r["items"].([]map[string]any)[0]["qty"] != 1 {
		t.Fatalf("clone shares rows")
	}
	if c.Name() != "SO-1" {
		t.Fatalf("name = %q", c.Name())
	}
}
