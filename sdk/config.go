package sdk

import (
	"go.uber.org/zap"

	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/pkg/schema"
)

// FormConfig holds the collaborators and settings of a Form.
//
// PermissionMode is "enforce" (default) or "allow-all"; the latter skips
// grant evaluation and is meant for debugging. HiddenFields are never shown
// regardless of schema flags, but their values still round-trip; with
// HideUnlabeled fields without a label are hidden too. RowDefaults
// override the seed of child fields by fieldname in every table.
// DefaultCompany applies when the identity carries no company.
type FormConfig struct {
	Transport Transport
	Identity  schema.Identity
	Logger    *zap.SugaredLogger
	Companies CompanyLookup
	Uploader  Uploader
	Registry  widgets.Registry

	PermissionMode string
	HiddenFields   []string
	HideUnlabeled  bool
	RowDefaults    map[string]any
	DefaultCompany string
	SchemaWorkers  int
	// CacheSize bounds the number of memoized dependsOn programs.
	CacheSize int

	// OnConditionError receives every dependsOn evaluation failure.
	OnConditionError func(*ConditionError)
}
