package schema

// Schema is the server description of one document type.
type Schema struct {
	DocType     string            `json:"name" yaml:"name"`
	Fields      []FieldDescriptor `json:"fields" yaml:"fields"`
	FieldOrder  []string          `json:"field_order,omitempty" yaml:"field_order,omitempty"`
	Permissions PermissionSet     `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	IsTable     Flag              `json:"istable,omitempty" yaml:"istable,omitempty"`
}

// Field returns the first descriptor named name.
func (s *Schema) Field(name string) (FieldDescriptor, bool) {
	if s == nil {
		return FieldDescriptor{}, false
	}
	for _, f := range s.Fields {
		if f.FieldName == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Ordered returns the fields in FieldOrder. Names that do not resolve to a
// descriptor and repeated names are dropped. When FieldOrder is empty the
// declaration order is used.
func (s *Schema) Ordered() []FieldDescriptor {
	if s == nil {
		return nil
	}
	order := s.FieldOrder
	if len(order) == 0 {
		order = make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			order = append(order, f.FieldName)
		}
	}
	index := make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if f.FieldName == "" {
			continue
		}
		if _, dup := index[f.FieldName]; !dup {
			index[f.FieldName] = i
		}
	}
	seen := make(map[string]struct{}, len(order))
	out := make([]FieldDescriptor, 0, len(order))
	for _, name := range order {
		i, ok := index[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, s.Fields[i])
	}
	return out
}

// Tables returns the Table fields that name a child schema.
func (s *Schema) Tables() []FieldDescriptor {
	if s == nil {
		return nil
	}
	var out []FieldDescriptor
	for _, f := range s.Fields {
		if f.FieldType == Table && f.Options != "" {
			out = append(out, f)
		}
	}
	return out
}
