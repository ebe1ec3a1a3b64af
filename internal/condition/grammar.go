package condition

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The explicit-expression language is deliberately small:
//
//	or      = and { ("||" | "or") and }
//	and     = cmp { ("&&" | "and") cmp }
//	cmp     = unary [ ("==" | "===" | "!=" | "!==" | "<" | "<=" | ">" | ">=") unary ]
//	unary   = { "!" | "not" } primary
//	primary = string | number | "true" | "false" | "null" | "undefined" | path | "(" or ")"
//	path    = ident { "." ident }
//
// Paths resolve against the form snapshot only; a leading "doc." is accepted
// and stripped.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"|'(\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?`},
	{Name: "Op", Pattern: `===|!==|==|!=|<=|>=|&&|\|\||[<>!().]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[orExpr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( ( '||' | 'or' ) @@ )*"`
}

type andExpr struct {
	Left  *cmpExpr   `parser:"@@"`
	Right []*cmpExpr `parser:"( ( '&&' | 'and' ) @@ )*"`
}

type cmpExpr struct {
	Left *unaryExpr `parser:"@@"`
	Tail *cmpTail   `parser:"@@?"`
}

type cmpTail struct {
	Op    string     `parser:"@( '===' | '!==' | '==' | '!=' | '<=' | '>=' | '<' | '>' )"`
	Right *unaryExpr `parser:"@@"`
}

type unaryExpr struct {
	Not     []string `parser:"( @( '!' | 'not' ) )*"`
	Primary *primary `parser:"@@"`
}

type primary struct {
	Str  *strLit  `parser:"  @String"`
	Num  *float64 `parser:"| @Number"`
	Bool *boolLit `parser:"| @( 'true' | 'false' )"`
	Null bool     `parser:"| @( 'null' | 'undefined' )"`
	Path []string `parser:"| @Ident ( '.' @Ident )*"`
	Sub  *orExpr  `parser:"| '(' @@ ')'"`
}

type boolLit bool

func (b *boolLit) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

type strLit string

// Capture strips the quotes and resolves backslash escapes for either quote style.
func (s *strLit) Capture(values []string) error {
	raw := values[0]
	if len(raw) < 2 {
		return fmt.Errorf("malformed string literal %s", raw)
	}
	body := raw[1 : len(raw)-1]
	var sb strings.Builder
	sb.Grow(len(body))
	escaped := false
	for _, r := range body {
		if escaped {
			switch r {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		sb.WriteRune(r)
	}
	*s = strLit(sb.String())
	return nil
}

// deps appends the root snapshot keys referenced by the expression.
func (e *orExpr) deps(out map[string]struct{}) {
	e.Left.deps(out)
	for _, r := range e.Right {
		r.deps(out)
	}
}

func (e *andExpr) deps(out map[string]struct{}) {
	e.Left.deps(out)
	for _, r := range e.Right {
		r.deps(out)
	}
}

func (e *cmpExpr) deps(out map[string]struct{}) {
	e.Left.Primary.deps(out)
	if e.Tail != nil {
		e.Tail.Right.Primary.deps(out)
	}
}

func (p *primary) deps(out map[string]struct{}) {
	switch {
	case p.Sub != nil:
		p.Sub.deps(out)
	case len(p.Path) > 0:
		out[rootPath(p.Path)[0]] = struct{}{}
	}
}

// rootPath drops the optional "doc" receiver.
func rootPath(path []string) []string {
	if len(path) > 1 && path[0] == "doc" {
		return path[1:]
	}
	return path
}
