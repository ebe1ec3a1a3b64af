package condition

import (
	"fmt"
	"regexp"
	"strings"
)

// ExplicitPrefix marks a dependsOn string as a boolean expression rather than
// a bare field path.
const ExplicitPrefix = "eval:"

var pathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Expression is a compiled dependsOn rule. It holds no reference to any
// snapshot and is safe to share between goroutines.
type Expression struct {
	Text     string
	explicit bool
	path     []string
	ast      *orExpr
	deps     []string
}

// Explicit reports whether the rule uses the expression form.
func (x *Expression) Explicit() bool { return x.explicit }

// Dependencies lists the root snapshot keys the rule reads.
func (x *Expression) Dependencies() []string {
	if !x.explicit {
		return []string{x.path[0]}
	}
	return append([]string(nil), x.deps...)
}

// Compile parses a dependsOn string. An empty string compiles to nil, which
// Eval treats as always visible.
func Compile(text string) (*Expression, error) {
	src := strings.TrimSpace(text)
	if src == "" {
		return nil, nil
	}
	if body, ok := strings.CutPrefix(src, ExplicitPrefix); ok {
		body = strings.TrimSpace(body)
		if body == "" {
			return nil, fmt.Errorf("%w: %w: empty expression", ErrEval, ErrSyntax)
		}
		ast, err := exprParser.ParseString("", body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %v", ErrEval, ErrSyntax, err)
		}
		set := map[string]struct{}{}
		ast.deps(set)
		deps := make([]string, 0, len(set))
		for k := range set {
			deps = append(deps, k)
		}
		return &Expression{Text: text, explicit: true, ast: ast, deps: deps}, nil
	}
	if !pathPattern.MatchString(src) {
		return nil, fmt.Errorf("%w: %w: %q is not a field path", ErrEval, ErrSyntax, src)
	}
	return &Expression{Text: text, path: rootPath(strings.Split(src, "."))}, nil
}

// Eval decides visibility against snap. A bare path that is missing is simply
// falsy; an explicit expression that reads a missing key fails with
// ErrUndefined. Eval never mutates snap.
func (x *Expression) Eval(snap map[string]any) (bool, error) {
	if x == nil {
		return true, nil
	}
	if !x.explicit {
		v, ok := lookup(snap, x.path)
		if !ok {
			return false, nil
		}
		return Truthy(v), nil
	}
	for _, d := range x.deps {
		if _, ok := snap[d]; !ok {
			return false, fmt.Errorf("%w: %w: %s", ErrEval, ErrUndefined, d)
		}
	}
	ok, err := x.ast.eval(snap)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEval, err)
	}
	return ok, nil
}
