package sdk

import (
	"errors"
	"fmt"

	"github.com/faciam-dev/docform/internal/condition"
	"github.com/faciam-dev/docform/internal/customfield/validators"
	"github.com/faciam-dev/docform/internal/table"
	"github.com/faciam-dev/docform/pkg/schema"
)

var (
	ErrSchemaLoad   = errors.New("schema load failed")
	ErrDocumentLoad = errors.New("document load failed")
	// ErrConditionEval is recovered locally: the field is hidden.
	ErrConditionEval = condition.ErrEval
	// ErrValidation blocks a mutation or a save and leaves the prior value intact.
	ErrValidation       = validators.ErrInvalid
	ErrPermissionDenied = errors.New("permission denied")
	ErrSave             = errors.New("save failed")
	ErrDelete           = errors.New("delete failed")
	// ErrSuperseded is returned to a load whose result was discarded because
	// a newer load started.
	ErrSuperseded            = errors.New("superseded by a newer load")
	ErrNotReady              = errors.New("form is not ready")
	ErrUnknownField          = schema.ErrUnknownField
	ErrReadOnlyField         = schema.ErrReadOnlyField
	ErrRowOutOfRange         = table.ErrRowOutOfRange
	ErrNotTable              = errors.New("field is not a table")
	ErrNoLinkTarget          = errors.New("link field has no target doctype")
	ErrAttachmentUnsupported = errors.New("attachment upload is not supported")
)

// ValidationError names the field and the reason a value was rejected.
type ValidationError = validators.Error

// ConditionError describes a dependsOn rule that could not be decided.
type ConditionError = condition.Error

// PermissionError is returned when the acting identity lacks a grant.
type PermissionError struct {
	DocType string
	Name    string
	Action  schema.Action
	User    string
}

func (e *PermissionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s may not %s %s", e.User, e.Action, e.DocType)
	}
	return fmt.Sprintf("%s may not %s %s %s", e.User, e.Action, e.DocType, e.Name)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// OpError wraps a collaborator failure with the operation it broke. Kind is
// one of the sentinels above and matches with errors.Is.
type OpError struct {
	Op      string
	DocType string
	Name    string
	Kind    error
	Err     error
}

func (e *OpError) Error() string {
	target := e.DocType
	if e.Name != "" {
		target += " " + e.Name
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *OpError) Unwrap() []error { return []error{e.Kind, e.Err} }
