package schema

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the declared type of a field as reported by the server.
type FieldType string

const (
	Data         FieldType = "Data"
	Int          FieldType = "Int"
	Float        FieldType = "Float"
	Currency     FieldType = "Currency"
	Percent      FieldType = "Percent"
	Text         FieldType = "Text"
	LongText     FieldType = "Long Text"
	Select       FieldType = "Select"
	Link         FieldType = "Link"
	DynamicLink  FieldType = "Dynamic Link"
	Check        FieldType = "Check"
	Date         FieldType = "Date"
	Datetime     FieldType = "Datetime"
	Time         FieldType = "Time"
	Duration     FieldType = "Duration"
	Rating       FieldType = "Rating"
	Color        FieldType = "Color"
	Attach       FieldType = "Attach"
	AttachImage  FieldType = "Attach Image"
	Barcode      FieldType = "Barcode"
	Table        FieldType = "Table"
	SectionBreak FieldType = "Section Break"
	ColumnBreak  FieldType = "Column Break"
	TabBreak     FieldType = "Tab Break"
	ReadOnly     FieldType = "Read Only"
	Button       FieldType = "Button"
)

// aliases maps lower-cased server spellings onto the canonical tags.
var aliases = map[string]FieldType{
	"data":          Data,
	"int":           Int,
	"float":         Float,
	"currency":      Currency,
	"percent":       Percent,
	"text":          Text,
	"small text":    Text,
	"text editor":   LongText,
	"long text":     LongText,
	"longtext":      LongText,
	"select":        Select,
	"link":          Link,
	"dynamic link":  DynamicLink,
	"dynamiclink":   DynamicLink,
	"check":         Check,
	"date":          Date,
	"datetime":      Datetime,
	"time":          Time,
	"duration":      Duration,
	"rating":        Rating,
	"ratting":       Rating,
	"color":         Color,
	"attach":        Attach,
	"attach image":  AttachImage,
	"attachimage":   AttachImage,
	"barcode":       Barcode,
	"table":         Table,
	"child table":   Table,
	"section break": SectionBreak,
	"column break":  ColumnBreak,
	"tab break":     TabBreak,
	"read only":     ReadOnly,
	"readonly":      ReadOnly,
	"button":        Button,
}

// ParseFieldType normalizes a server spelling. Unknown spellings are kept
// verbatim so the renderer registry can fall back to Data for them.
func ParseFieldType(s string) FieldType {
	key := strings.ToLower(strings.TrimSpace(s))
	if ft, ok := aliases[key]; ok {
		return ft
	}
	return FieldType(strings.TrimSpace(s))
}

// Known reports whether t is one of the enumerated field types.
func (t FieldType) Known() bool {
	_, ok := aliases[strings.ToLower(string(t))]
	return ok
}

// Layout reports whether the type only structures the form and carries no value.
func (t FieldType) Layout() bool {
	switch t {
	case SectionBreak, ColumnBreak, TabBreak, Button:
		return true
	}
	return false
}

func (t FieldType) Numeric() bool {
	switch t {
	case Int, Float, Currency, Percent:
		return true
	}
	return false
}

func (t *FieldType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseFieldType(s)
	return nil
}

func (t *FieldType) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	*t = ParseFieldType(s)
	return nil
}
