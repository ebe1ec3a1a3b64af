package schema

import "fmt"

// Standard keys every document record carries.
const (
	KeyName     = "name"
	KeyDocType  = "doctype"
	KeyOwner    = "owner"
	KeyCreation = "creation"
	KeyModified = "modified"
	// KeyLocal marks a record that has not been saved yet.
	KeyLocal = "__islocal"
)

// Record is a document as a map from fieldname to a dynamically typed value.
// Table fields hold []map[string]any.
type Record map[string]any

func (r Record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) Name() string     { return r.str(KeyName) }
func (r Record) DocType() string  { return r.str(KeyDocType) }
func (r Record) Owner() string    { return r.str(KeyOwner) }
func (r Record) Modified() string { return r.str(KeyModified) }

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(CloneMap(r))
}

// CloneMap deep-copies nested maps and slices of a value map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices; scalars are returned as is.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneMap(x)
	case Record:
		return x.Clone()
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, m := range x {
			out[i] = CloneMap(m)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
