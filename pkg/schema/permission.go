package schema

// Action is a document-level operation guarded by a grant.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// Grant is one per-role permission row. A grant with IfOwner set only applies
// when the acting user owns the document. Grants above permlevel 0 only
// control field groups and never confer document-level access.
type Grant struct {
	Role      string `json:"role" yaml:"role"`
	PermLevel int    `json:"permlevel,omitempty" yaml:"permlevel,omitempty"`
	Read      Flag   `json:"read,omitempty" yaml:"read,omitempty"`
	Write     Flag   `json:"write,omitempty" yaml:"write,omitempty"`
	Create    Flag   `json:"create,omitempty" yaml:"create,omitempty"`
	Delete    Flag   `json:"delete,omitempty" yaml:"delete,omitempty"`
	IfOwner   Flag   `json:"if_owner,omitempty" yaml:"if_owner,omitempty"`
}

// Allows reports whether the grant carries the flag for a.
func (g Grant) Allows(a Action) bool {
	switch a {
	case ActionRead:
		return bool(g.Read)
	case ActionWrite:
		return bool(g.Write)
	case ActionCreate:
		return bool(g.Create)
	case ActionDelete:
		return bool(g.Delete)
	}
	return false
}

// PermissionSet is the list of grants declared by a schema.
type PermissionSet []Grant

// Identity is the acting user as supplied by the auth collaborator.
type Identity struct {
	ID      string   `json:"id" yaml:"id"`
	Roles   []string `json:"roles" yaml:"roles"`
	Company string   `json:"company,omitempty" yaml:"company,omitempty"`
}
