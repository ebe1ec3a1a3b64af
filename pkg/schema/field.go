package schema

import "strings"

// FieldDescriptor is one schema entry.
//
// Options depends on FieldType: newline separated choices for Select, target
// doctype for Link and Table, the name of the field holding the target doctype
// for Dynamic Link, star count for Rating. ParentSchema names the schema that
// owns the field; for fields of a child table it is the child doctype.
type FieldDescriptor struct {
	FieldName    string    `json:"fieldname" yaml:"fieldname"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	FieldType    FieldType `json:"fieldtype" yaml:"fieldtype"`
	Options      string    `json:"options,omitempty" yaml:"options,omitempty"`
	Required     Flag      `json:"reqd,omitempty" yaml:"reqd,omitempty"`
	ReadOnly     Flag      `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	Hidden       Flag      `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	DependsOn    string    `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	InListView   Flag      `json:"in_list_view,omitempty" yaml:"in_list_view,omitempty"`
	Default      string    `json:"default,omitempty" yaml:"default,omitempty"`
	ParentSchema string    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// HasValue reports whether the field stores a value in the record.
func (f FieldDescriptor) HasValue() bool {
	return f.FieldName != "" && !f.FieldType.Layout()
}

// Choices splits Select options on newlines. An empty option string yields
// no choices; blank lines are kept because they stand for "no selection".
func (f FieldDescriptor) Choices() []string {
	if f.Options == "" {
		return []string{}
	}
	parts := strings.Split(f.Options, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimRight(p, "\r")
	}
	return parts
}

// Blank reports a descriptor without a fieldname. Such entries are never
// shown.
func (f FieldDescriptor) Blank() bool {
	return strings.TrimSpace(f.FieldName) == ""
}

// Unlabeled reports a descriptor without a label.
func (f FieldDescriptor) Unlabeled() bool {
	return strings.TrimSpace(f.Label) == ""
}
