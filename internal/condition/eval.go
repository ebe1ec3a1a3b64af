package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/faciam-dev/docform/pkg/schema"
)

var (
	// ErrEval is the sentinel all evaluation failures wrap.
	ErrEval = errors.New("condition evaluation failed")
	// ErrUndefined reports a path that is not present in the snapshot.
	ErrUndefined = errors.New("undefined dependency")
	// ErrSyntax reports an expression outside the grammar.
	ErrSyntax = errors.New("syntax error")
	// ErrType reports an ordering comparison between incomparable values.
	ErrType = errors.New("incomparable operands")
)

// evalOr and friends return plain booleans. Value-producing nodes are only
// primaries, which keeps "&&" and "||" from leaking operand values.
func (e *orExpr) eval(snap map[string]any) (bool, error) {
	ok, err := e.Left.eval(snap)
	if err != nil || ok {
		return ok, err
	}
	for _, r := range e.Right {
		ok, err = r.eval(snap)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (e *andExpr) eval(snap map[string]any) (bool, error) {
	ok, err := e.Left.eval(snap)
	if err != nil || !ok {
		return false, err
	}
	for _, r := range e.Right {
		ok, err = r.eval(snap)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *cmpExpr) eval(snap map[string]any) (bool, error) {
	left, err := e.Left.value(snap)
	if err != nil {
		return false, err
	}
	if e.Tail == nil {
		return Truthy(left), nil
	}
	right, err := e.Tail.Right.value(snap)
	if err != nil {
		return false, err
	}
	switch e.Tail.Op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	}
	c, err := order(left, right)
	if err != nil {
		return false, err
	}
	switch e.Tail.Op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: operator %q", ErrSyntax, e.Tail.Op)
}

// value returns the operand value; a negated operand collapses to a boolean.
func (u *unaryExpr) value(snap map[string]any) (any, error) {
	v, err := u.Primary.value(snap)
	if err != nil {
		return nil, err
	}
	if len(u.Not) == 0 {
		return v, nil
	}
	b := Truthy(v)
	if len(u.Not)%2 == 1 {
		b = !b
	}
	return b, nil
}

func (p *primary) value(snap map[string]any) (any, error) {
	switch {
	case p.Str != nil:
		return string(*p.Str), nil
	case p.Num != nil:
		return *p.Num, nil
	case p.Bool != nil:
		return bool(*p.Bool), nil
	case p.Null:
		return nil, nil
	case p.Sub != nil:
		return p.Sub.eval(snap)
	case len(p.Path) > 0:
		v, ok := lookup(snap, rootPath(p.Path))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUndefined, strings.Join(p.Path, "."))
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: empty operand", ErrSyntax)
}

// lookup walks path through nested maps. The final segment "length" yields
// the size of a string or list when no such key exists.
func lookup(snap map[string]any, path []string) (any, bool) {
	var cur any = snap
	for i, seg := range path {
		m, isMap := asMap(cur)
		if isMap {
			v, ok := m[seg]
			if ok {
				cur = v
				continue
			}
		}
		if seg == "length" && i == len(path)-1 {
			if n, ok := length(cur); ok {
				return float64(n), true
			}
		}
		return nil, false
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case schema.Record:
		return m, true
	}
	return nil, false
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return len([]rune(x)), true
	case []any:
		return len(x), true
	case []map[string]any:
		return len(x), true
	case []string:
		return len(x), true
	}
	return 0, false
}

// Truthy follows the usual form semantics: nil, false, zero, NaN and the
// empty string are false; lists are true only when non-empty.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case schema.Flag:
		return bool(x)
	case []any, []map[string]any, []string:
		n, _ := length(x)
		return n > 0
	}
	if f, ok := number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// number converts numeric kinds; strings are not numbers here.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// coerce converts numbers, booleans and numeric strings to float64 the way
// loose comparison does. The empty string counts as zero.
func coerce(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		return ab == bb
	}
	fa, okA := coerce(a)
	fb, okB := coerce(b)
	if okA && okB {
		return fa == fb
	}
	return false
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	fa, okA := number(a)
	fb, okB := number(b)
	return okA && okB && fa == fb
}

// order compares two operands: strings lexically, everything else numerically.
func order(a, b any) (int, error) {
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), nil
	}
	fa, okA := coerce(a)
	fb, okB := coerce(b)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: %v and %v", ErrType, a, b)
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}
