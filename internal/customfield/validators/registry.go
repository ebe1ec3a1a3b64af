package validators

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/faciam-dev/docform/pkg/schema"
)

// Stage says when a validator runs.
type Stage string

const (
	// StageMutation validators run on every cell or field update and reject it.
	StageMutation Stage = "mutation"
	// StageSave validators run over the visible fields before submission.
	StageSave Stage = "save"
)

// ErrInvalid is the sentinel every validation failure matches.
var ErrInvalid = errors.New("invalid value")

// Error reports a rejected value.
type Error struct {
	Field     string
	Validator string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Validator describes a field validator and its applicability. AppliesTo
// lists field types ("*" matches all), FieldMatch restricts it to field names
// (a trailing "*" matches a prefix) and OptionMatch to fields whose options
// equal one of the entries. Check returns a non-empty reason on failure.
type Validator struct {
	ID          string
	Name        string
	Description string
	Stage       Stage
	AppliesTo   []string
	FieldMatch  []string
	OptionMatch []string
	Check       func(f schema.FieldDescriptor, v any) string
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{5,20}$`)
	quantities   = []string{"qty", "quantity", "stock_qty"}
	numericTypes = []string{string(schema.Int), string(schema.Float), string(schema.Currency), string(schema.Percent)}
)

func builtin() []Validator {
	return []Validator{
		{ID: "non_negative_quantity", Name: "non-negative quantity", Description: "Quantities cannot be negative",
			Stage: StageMutation, AppliesTo: numericTypes, FieldMatch: quantities,
			Check: func(_ schema.FieldDescriptor, v any) string {
				if n, ok := number(v); ok && n < 0 {
					return "quantity cannot be negative"
				}
				return ""
			}},
		{ID: "required", Name: "required", Description: "Mandatory field", Stage: StageSave, AppliesTo: []string{"*"},
			Check: func(f schema.FieldDescriptor, v any) string {
				if bool(f.Required) && Empty(v) {
					return "value is required"
				}
				return ""
			}},
		{ID: "email", Name: "email", Description: "Email format", Stage: StageSave,
			AppliesTo: []string{string(schema.Data)}, OptionMatch: []string{"Email"},
			Check: func(_ schema.FieldDescriptor, v any) string {
				s, _ := v.(string)
				if s == "" {
					return ""
				}
				if _, err := mail.ParseAddress(s); err != nil {
					return "invalid email address"
				}
				return ""
			}},
		{ID: "phone", Name: "phone", Description: "Phone number format", Stage: StageSave,
			AppliesTo: []string{string(schema.Data)}, OptionMatch: []string{"Phone"},
			Check: func(_ schema.FieldDescriptor, v any) string {
				s, _ := v.(string)
				if s == "" || phonePattern.MatchString(s) {
					return ""
				}
				return "invalid phone number"
			}},
		{ID: "url", Name: "url", Description: "URL format", Stage: StageSave,
			AppliesTo: []string{string(schema.Data)}, OptionMatch: []string{"URL"},
			Check: func(_ schema.FieldDescriptor, v any) string {
				s, _ := v.(string)
				if s == "" {
					return ""
				}
				u, err := url.ParseRequestURI(s)
				if err != nil || u.Scheme == "" || u.Host == "" {
					return "invalid URL"
				}
				return ""
			}},
	}
}

func matchesField(v Validator, name string) bool {
	if len(v.FieldMatch) == 0 {
		return true
	}
	n := strings.ToLower(name)
	for _, m := range v.FieldMatch {
		m = strings.ToLower(m)
		if strings.HasSuffix(m, "*") {
			if strings.HasPrefix(n, strings.TrimSuffix(m, "*")) {
				return true
			}
		} else if n == m {
			return true
		}
	}
	return false
}

func supportsType(v Validator, typ schema.FieldType) bool {
	t := strings.ToLower(string(typ))
	for _, a := range v.AppliesTo {
		if a == "*" || strings.ToLower(a) == t {
			return true
		}
	}
	return false
}

func matchesOptions(v Validator, options string) bool {
	if len(v.OptionMatch) == 0 {
		return true
	}
	for _, o := range v.OptionMatch {
		if strings.EqualFold(strings.TrimSpace(options), o) {
			return true
		}
	}
	return false
}

// Filter returns the validators of stage applicable to f.
func Filter(stage Stage, f schema.FieldDescriptor) []Validator {
	res := make([]Validator, 0, 4)
	for _, v := range builtin() {
		if v.Stage == stage && supportsType(v, f.FieldType) && matchesField(v, f.FieldName) && matchesOptions(v, f.Options) {
			res = append(res, v)
		}
	}
	return res
}

// Validate runs the validators of stage for f and returns the first failure.
func Validate(stage Stage, f schema.FieldDescriptor, v any) *Error {
	for _, val := range Filter(stage, f) {
		if reason := val.Check(f, v); reason != "" {
			return &Error{Field: f.FieldName, Validator: val.ID, Reason: reason}
		}
	}
	return nil
}

// Empty reports values a required field may not hold: nil, blank text and
// empty tables. Zero numbers and false are values.
func Empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
