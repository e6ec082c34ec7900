// Package render turns cir trees into C text. It is strictly
// presentational: it never reorders, adds or removes effects. The only
// statements it drops are bindings that provably emit no code at all, a
// void-typed binding's name and an assignment of a temporary to itself.
package render

import (
	"fmt"
	"strings"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

const indent = "  "

// rootsPerLine is how many parameters one root-registration macro
// accepts; larger parameter lists continue with the auxiliary form.
const rootsPerLine = 5

// CType spells a type as it appears in a cast or a return position, the
// abstract-declarator form: "int *", "int (*)[4]".
func CType(t ctypes.Type) string {
	base, decl := declarator(t, "")
	if decl == "" {
		return base
	}
	return base + " " + decl
}

func baseName(t ctypes.Type) string {
	switch t := t.(type) {
	case ctypes.Void:
		return "void"
	case ctypes.Primitive:
		return t.Kind.String()
	case ctypes.Struct:
		return "struct " + t.Tag
	case ctypes.Union:
		return "union " + t.Tag
	case ctypes.Abstract:
		return t.Name
	case ctypes.Managed:
		return "value"
	default:
		return fmt.Sprintf("/* %T */", t)
	}
}

// declare renders a declarator for a named object, e.g. "struct s *x",
// "int (*x)[4]", or "value argv[]" for an array parameter (which
// decays).
func declare(t ctypes.Type, name string) string {
	base, decl := declarator(t, name)
	return base + " " + decl
}

// declarator builds a C declarator inside out around inner: a pointer
// prefixes a star, an array suffixes its bound, and a pointer nested
// inside an array bound needs parentheses, so a pointer to an array
// spells "int (*x)[4]", not the array-of-pointers "int *x[4]".
func declarator(t ctypes.Type, inner string) (base, decl string) {
	switch u := ctypes.Strip(t).(type) {
	case ctypes.Pointer:
		return declarator(u.Elem, "*"+inner)
	case ctypes.Array:
		if strings.HasPrefix(inner, "*") {
			inner = "(" + inner + ")"
		}
		if u.Len > 0 {
			return declarator(u.Elem, fmt.Sprintf("%s[%d]", inner, u.Len))
		}
		return declarator(u.Elem, inner+"[]")
	default:
		return baseName(u), inner
	}
}

func renderExpr(x cir.Expr) (string, error) {
	switch x := x.(type) {
	case cir.Var:
		return x.Name, nil
	case cir.Const:
		return x.Text, nil
	case cir.Cast:
		inner, err := renderOperand(x.X)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s)%s", CType(x.To), inner), nil
	case cir.AddrOf:
		inner, err := renderOperand(x.X)
		if err != nil {
			return "", err
		}
		return "&" + inner, nil
	case cir.Sizeof:
		return fmt.Sprintf("sizeof(%s)", CType(x.Of)), nil
	default:
		return "", &cir.InternalError{Op: "render", Detail: fmt.Sprintf("unknown expression %T", x)}
	}
}

// renderOperand parenthesizes anything that is not a plain name or
// constant, so nested expressions never depend on precedence.
func renderOperand(x cir.Expr) (string, error) {
	s, err := renderExpr(x)
	if err != nil {
		return "", err
	}
	switch x.(type) {
	case cir.Var, cir.Const:
		return s, nil
	default:
		return "(" + s + ")", nil
	}
}

func renderEff(e cir.Eff) (string, error) {
	switch e := e.(type) {
	case cir.Exp:
		return renderExpr(e.X)
	case cir.Call:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := renderExpr(a)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return fmt.Sprintf("%s(%s)", e.Func.Name, strings.Join(args, ", ")), nil
	case cir.Index:
		arr, err := renderOperand(e.Arr)
		if err != nil {
			return "", err
		}
		i, err := renderExpr(e.I)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", arr, i), nil
	case cir.Deref:
		inner, err := renderOperand(e.X)
		if err != nil {
			return "", err
		}
		return "*" + inner, nil
	case cir.Assign:
		rhs, err := renderEff(e.RHS)
		if err != nil {
			return "", err
		}
		lhs := e.Target.Name
		if e.Idx != nil {
			i, err := renderExpr(e.Idx)
			if err != nil {
				return "", err
			}
			lhs = fmt.Sprintf("%s[%s]", lhs, i)
		}
		return fmt.Sprintf("%s = %s", lhs, rhs), nil
	default:
		return "", &cir.InternalError{Op: "render", Detail: fmt.Sprintf("unknown effect %T", e)}
	}
}

// elidedAssign reports an assignment of a variable to itself, which a
// normalized tree can contain as a dead renaming.
func elidedAssign(e cir.Eff) bool {
	a, ok := e.(cir.Assign)
	if !ok || a.Idx != nil {
		return false
	}
	exp, ok := a.RHS.(cir.Exp)
	if !ok {
		return false
	}
	v, ok := exp.X.(cir.Var)
	return ok && v.Name == a.Target.Name
}

func renderComp(b *strings.Builder, c cir.Comp) error {
	for {
		switch n := c.(type) {
		case cir.Let:
			s, err := renderEff(n.E)
			if err != nil {
				return err
			}
			switch ctypes.Strip(n.V.Type).(type) {
			case ctypes.Void:
				if !elidedAssign(n.E) {
					fmt.Fprintf(b, "%s%s;\n", indent, s)
				}
			case ctypes.Struct, ctypes.Union:
				fmt.Fprintf(b, "%s%s;\n", indent, declare(n.V.Type, n.V.Name))
				fmt.Fprintf(b, "%s%s = %s;\n", indent, n.V.Name, s)
			default:
				fmt.Fprintf(b, "%s%s = %s;\n", indent, declare(n.V.Type, n.V.Name), s)
			}
			c = n.Body
		case cir.LetConst:
			fmt.Fprintf(b, "%senum { %s = %d };\n", indent, n.Name, n.Value)
			c = n.Body
		case cir.LocalArray:
			fmt.Fprintf(b, "%sCAMLlocalN(%s, %s);\n", indent, n.V.Name, n.Count)
			c = n.Body
		case cir.Return:
			s, err := renderEff(n.E)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sreturn %s;\n", indent, s)
			return nil
		case cir.ScopedReturn:
			s, err := renderEff(n.E)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sCAMLreturnT(%s, %s);\n", indent, CType(n.Type), s)
			return nil
		case cir.ScopedReturn0:
			fmt.Fprintf(b, "%sCAMLreturn0;\n", indent)
			return nil
		default:
			return &cir.InternalError{Op: "render", Detail: fmt.Sprintf("unnormalized computation %T", c)}
		}
	}
}

func signature(def *cir.FunctionDef) string {
	params := "void"
	if len(def.Params) > 0 {
		ps := make([]string, len(def.Params))
		for i, p := range def.Params {
			ps[i] = declare(p.Type, p.Name)
		}
		params = strings.Join(ps, ", ")
	}
	// The function itself is a declarator around its return type, so a
	// derived return type wraps it: "int (*f(void))[4]".
	base, decl := declarator(def.Return, fmt.Sprintf("%s(%s)", def.Name, params))
	return base + " " + decl
}

// rootRegistration emits the macros registering boxed parameters with the
// collector. Parameters beyond the first chunk continue with the
// auxiliary macro in groups of up to five.
func rootRegistration(b *strings.Builder, params []cir.Var) {
	var boxed []string
	for _, p := range params {
		if _, ok := ctypes.Strip(p.Type).(ctypes.Managed); ok {
			boxed = append(boxed, p.Name)
		}
	}
	if len(boxed) == 0 {
		fmt.Fprintf(b, "%sCAMLparam0();\n", indent)
		return
	}
	head := boxed
	if len(head) > rootsPerLine {
		head = boxed[:rootsPerLine]
	}
	fmt.Fprintf(b, "%sCAMLparam%d(%s);\n", indent, len(head), strings.Join(head, ", "))
	rest := boxed[len(head):]
	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > rootsPerLine {
			chunk = rest[:rootsPerLine]
		}
		fmt.Fprintf(b, "%sCAMLxparam%d(%s);\n", indent, len(chunk), strings.Join(chunk, ", "))
		rest = rest[len(chunk):]
	}
}

// Def renders a full function definition. A definition without a body
// renders as its prototype.
func Def(def *cir.FunctionDef) (string, error) {
	if def.Body == nil {
		return Decl(def), nil
	}
	var b strings.Builder
	b.WriteString(signature(def))
	b.WriteString("\n{\n")
	if def.Rooted {
		rootRegistration(&b, def.Params)
	}
	if err := renderComp(&b, def.Body); err != nil {
		return "", err
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// Decl renders the declaration-only prototype, for header generation.
func Decl(def *cir.FunctionDef) string {
	return signature(def) + ";\n"
}
