package permission

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/faciam-dev/docform/pkg/schema"
)

// Mode selects how grants are evaluated.
type Mode string

const (
	// ModeEnforce evaluates the schema grants with ownership.
	ModeEnforce Mode = "enforce"
	// ModeAllowAll permits everything. It exists for debugging against
	// servers that enforce permissions themselves.
	ModeAllowAll Mode = "allow-all"
)

// RoleAll is held implicitly by every authenticated identity.
const RoleAll = "All"

// ParseMode maps a settings value to a Mode; anything unknown enforces.
func ParseMode(s string) Mode {
	if Mode(s) == ModeAllowAll {
		return ModeAllowAll
	}
	return ModeEnforce
}

// Checker decides whether an identity may perform an action on a document.
// owner reports whether the identity owns the document.
type Checker interface {
	Allowed(id schema.Identity, act schema.Action, owner bool) (bool, error)
}

type allowAll struct{}

func (allowAll) Allowed(schema.Identity, schema.Action, bool) (bool, error) { return true, nil }

// AllowAll returns the debug checker.
func AllowAll() Checker { return allowAll{} }

// Policy evaluates a PermissionSet with casbin.
type Policy struct {
	docType  string
	enforcer *casbin.Enforcer
}

func newModel() model.Model {
	m := model.NewModel()
	m.AddDef("r", "r", "sub, obj, act, owner")
	m.AddDef("p", "p", "sub, obj, act, ifowner")
	m.AddDef("e", "e", "some(where (p.eft == allow))")
	m.AddDef("m", "m", `r.sub == p.sub && r.obj == p.obj && r.act == p.act && (p.ifowner == "0" || r.owner == "1")`)
	return m
}

// NewPolicy loads the document-level grants of perms. Grants above
// permlevel 0 guard field groups only and are skipped.
func NewPolicy(docType string, perms schema.PermissionSet) (*Policy, error) {
	e, err := casbin.NewEnforcer(newModel())
	if err != nil {
		return nil, err
	}
	for _, g := range perms {
		if g.PermLevel > 0 || g.Role == "" {
			continue
		}
		ifOwner := "0"
		if g.IfOwner {
			ifOwner = "1"
		}
		for _, act := range []schema.Action{schema.ActionRead, schema.ActionWrite, schema.ActionCreate, schema.ActionDelete} {
			if !g.Allows(act) {
				continue
			}
			if _, err := e.AddPolicy(g.Role, docType, string(act), ifOwner); err != nil {
				return nil, fmt.Errorf("add policy %s/%s: %w", g.Role, act, err)
			}
		}
	}
	return &Policy{docType: docType, enforcer: e}, nil
}

// New returns the checker for mode.
func New(mode Mode, docType string, perms schema.PermissionSet) (Checker, error) {
	if mode == ModeAllowAll {
		return AllowAll(), nil
	}
	return NewPolicy(docType, perms)
}

// Allowed reports whether any role of id carries act. A grant restricted to
// owners only counts when owner is true.
func (p *Policy) Allowed(id schema.Identity, act schema.Action, owner bool) (bool, error) {
	o := "0"
	if owner {
		o = "1"
	}
	for _, role := range Roles(id) {
		ok, err := p.enforcer.Enforce(role, p.docType, string(act), o)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Roles returns the roles of id including the implicit ones.
func Roles(id schema.Identity) []string {
	roles := append([]string(nil), id.Roles...)
	if id.ID != "" {
		roles = append(roles, RoleAll)
	}
	return roles
}

// IsOwner reports whether id owns a document whose owner field is owner.
func IsOwner(id schema.Identity, owner string) bool {
	return id.ID != "" && id.ID == owner
}
