package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

var (
	intT    = ctypes.Primitive{Kind: ctypes.Int}
	doubleT = ctypes.Primitive{Kind: ctypes.Double}
	valueT  = ctypes.Managed{Kind: ctypes.Value}
)

func TestCType(t *testing.T) {
	tests := []struct {
		name string
		t    ctypes.Type
		want string
	}{
		{"void", ctypes.Void{}, "void"},
		{"int", intT, "int"},
		{"unsigned long long", ctypes.Primitive{Kind: ctypes.ULLong}, "unsigned long long"},
		{"value", valueT, "value"},
		{"struct", ctypes.Struct{Tag: "point"}, "struct point"},
		{"union", ctypes.Union{Tag: "u"}, "union u"},
		{"opaque", ctypes.Abstract{Name: "FILE"}, "FILE"},
		{"pointer", ctypes.Pointer{Elem: intT}, "int *"},
		{"pointer to pointer", ctypes.Pointer{Elem: ctypes.Pointer{Elem: ctypes.Struct{Tag: "s"}}}, "struct s **"},
		{"void pointer", ctypes.Pointer{Elem: ctypes.Void{}}, "void *"},
		{"view is transparent", ctypes.View{Underlying: intT, Read: "r", Write: "w"}, "int"},
		{"pointer to array", ctypes.Pointer{Elem: ctypes.Array{Elem: intT, Len: 4}}, "int (*)[4]"},
		{"array of pointers", ctypes.Array{Elem: ctypes.Pointer{Elem: ctypes.Primitive{Kind: ctypes.Char}}, Len: 3}, "char *[3]"},
		{"pointer to array of pointers", ctypes.Pointer{Elem: ctypes.Array{Elem: ctypes.Pointer{Elem: intT}, Len: 2}}, "int *(*)[2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CType(tt.t); got != tt.want {
				t.Errorf("CType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeclare(t *testing.T) {
	charPtr := ctypes.Pointer{Elem: ctypes.Primitive{Kind: ctypes.Char}}
	tests := []struct {
		label string
		t     ctypes.Type
		name  string
		want  string
	}{
		{"scalar", intT, "x1", "int x1"},
		{"pointer", ctypes.Pointer{Elem: intT}, "x1", "int *x1"},
		{"pointer to pointer", ctypes.Pointer{Elem: ctypes.Pointer{Elem: ctypes.Struct{Tag: "s"}}}, "x1", "struct s **x1"},
		{"unsized array decays", ctypes.Array{Elem: valueT}, "argv", "value argv[]"},
		{"sized array", ctypes.Array{Elem: intT, Len: 4}, "row", "int row[4]"},
		{"pointer to array", ctypes.Pointer{Elem: ctypes.Array{Elem: intT, Len: 4}}, "x1", "int (*x1)[4]"},
		{"array of pointers", ctypes.Array{Elem: charPtr, Len: 3}, "names", "char *names[3]"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := declare(tt.t, tt.name); got != tt.want {
				t.Errorf("declare() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderExprParenthesization(t *testing.T) {
	v := cir.Var{Name: "x1", Type: ctypes.Pointer{Elem: intT}}
	cast, err := cir.NewCast(ctypes.Pointer{Elem: doubleT}, v)
	if err != nil {
		t.Fatal(err)
	}
	got, err := renderExpr(cir.AddrOf{X: cast})
	if err != nil {
		t.Fatal(err)
	}
	// Operands that are not bare names get parenthesized, so nesting
	// never depends on C precedence.
	want := "&((double *)x1)"
	if got != want {
		t.Errorf("renderExpr() = %q, want %q", got, want)
	}
}

func TestRenderCastToPointerToArray(t *testing.T) {
	got, err := renderExpr(cir.Cast{
		To: ctypes.Pointer{Elem: ctypes.Array{Elem: intT, Len: 4}},
		X:  cir.Var{Name: "x1", Type: ctypes.Pointer{Elem: ctypes.Void{}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := "(int (*)[4])x1"; got != want {
		t.Errorf("renderExpr() = %q, want %q", got, want)
	}
}

func TestRenderEff(t *testing.T) {
	x := cir.Var{Name: "x1", Type: intT}
	arr := cir.Var{Name: "locals", Type: ctypes.Array{Elem: valueT, Len: 2}}
	tests := []struct {
		name string
		eff  cir.Eff
		want string
	}{
		{"call", cir.Call{Func: cir.Func{Name: "f", Return: intT}, Args: []cir.Expr{x, cir.Const{Text: "3", Type: intT}}}, "f(x1, 3)"},
		{"nullary call", cir.Call{Func: cir.Func{Name: "g", Return: intT}}, "g()"},
		{"index", cir.Index{Arr: arr, I: cir.Const{Text: "0", Type: intT}}, "locals[0]"},
		{"deref", cir.Deref{X: cir.Var{Name: "p", Type: ctypes.Pointer{Elem: intT}}}, "*p"},
		{"assign", cir.Assign{Target: x, RHS: cir.Exp{X: cir.Const{Text: "0", Type: intT}}}, "x1 = 0"},
		{"indexed assign", cir.Assign{Target: arr, Idx: cir.Const{Text: "1", Type: intT}, RHS: cir.Exp{X: cir.Const{Text: "v", Type: valueT}}}, "locals[1] = v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderEff(tt.eff)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("renderEff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefPlainFunction(t *testing.T) {
	x1 := cir.Var{Name: "x1", Type: intT}
	def := &cir.FunctionDef{
		Name:   "twice",
		Params: []cir.Var{x1},
		Return: intT,
		Body: cir.Let{
			V:    cir.Var{Name: "x2", Type: intT},
			E:    cir.Call{Func: cir.Func{Name: "dbl", Params: []ctypes.Type{intT}, Return: intT}, Args: []cir.Expr{x1}},
			Body: cir.Return{E: cir.Exp{X: cir.Var{Name: "x2", Type: intT}}},
		},
	}
	got, err := Def(def)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"int twice(int x1)",
		"{",
		"  int x2 = dbl(x1);",
		"  return x2;",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Def() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefRootedScope(t *testing.T) {
	params := []cir.Var{
		{Name: "x1", Type: valueT},
		{Name: "x2", Type: valueT},
	}
	def := &cir.FunctionDef{
		Name:   "stub_pair",
		Params: params,
		Return: valueT,
		Rooted: true,
		Body:   cir.ScopedReturn{Type: valueT, E: cir.Exp{X: cir.Var{Name: "x1", Type: valueT}}},
	}
	got, err := Def(def)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"value stub_pair(value x1, value x2)",
		"{",
		"  CAMLparam2(x1, x2);",
		"  CAMLreturnT(value, x1);",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Def() mismatch (-want +got):\n%s", diff)
	}
}

func TestRootRegistrationChunks(t *testing.T) {
	mk := func(n int) []cir.Var {
		ps := make([]cir.Var, n)
		for i := range ps {
			ps[i] = cir.Var{Name: "x" + string(rune('1'+i)), Type: valueT}
		}
		return ps
	}
	t.Run("no boxed params", func(t *testing.T) {
		var b strings.Builder
		rootRegistration(&b, []cir.Var{{Name: "n", Type: intT}})
		if got, want := b.String(), "  CAMLparam0();\n"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
	t.Run("five fit in one macro", func(t *testing.T) {
		var b strings.Builder
		rootRegistration(&b, mk(5))
		if got, want := b.String(), "  CAMLparam5(x1, x2, x3, x4, x5);\n"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
	t.Run("seven overflow to auxiliary macro", func(t *testing.T) {
		var b strings.Builder
		rootRegistration(&b, mk(7))
		want := "  CAMLparam5(x1, x2, x3, x4, x5);\n  CAMLxparam2(x6, x7);\n"
		if got := b.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestDefElisions(t *testing.T) {
	t.Run("void let renders a bare statement", func(t *testing.T) {
		def := &cir.FunctionDef{
			Name:   "fire",
			Return: ctypes.Void{},
			Body: cir.Let{
				V:    cir.Var{Name: "x1", Type: ctypes.Void{}},
				E:    cir.Call{Func: cir.Func{Name: "go", Return: ctypes.Void{}}},
				Body: cir.ScopedReturn0{},
			},
		}
		got, err := Def(def)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(got, "  go();\n") {
			t.Errorf("void binding must render without a declarator:\n%s", got)
		}
		if strings.Contains(got, "x1") {
			t.Errorf("no name may appear for a void binding:\n%s", got)
		}
	})
	t.Run("self assignment is dropped", func(t *testing.T) {
		x := cir.Var{Name: "x1", Type: valueT}
		def := &cir.FunctionDef{
			Name:   "id",
			Params: []cir.Var{x},
			Return: valueT,
			Body: cir.Let{
				V:    cir.Var{Name: "", Type: ctypes.Void{}},
				E:    cir.Assign{Target: x, RHS: cir.Exp{X: x}},
				Body: cir.Return{E: cir.Exp{X: x}},
			},
		}
		got, err := Def(def)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(got, "x1 = x1") {
			t.Errorf("a self assignment must be elided:\n%s", got)
		}
	})
}

func TestDefStructBinding(t *testing.T) {
	s := ctypes.Struct{Tag: "point", Fields: []ctypes.Field{{Name: "x", Type: intT}}}
	def := &cir.FunctionDef{
		Name:   "origin",
		Return: s,
		Body: cir.Let{
			V:    cir.Var{Name: "x1", Type: s},
			E:    cir.Call{Func: cir.Func{Name: "mk", Return: s}},
			Body: cir.Return{E: cir.Exp{X: cir.Var{Name: "x1", Type: s}}},
		},
	}
	got, err := Def(def)
	if err != nil {
		t.Fatal(err)
	}
	// Aggregates are declared first and assigned on a separate line.
	if !strings.Contains(got, "  struct point x1;\n  x1 = mk();\n") {
		t.Errorf("struct bindings split declaration and assignment:\n%s", got)
	}
}

func TestDecl(t *testing.T) {
	tests := []struct {
		name string
		def  *cir.FunctionDef
		want string
	}{
		{"nullary", &cir.FunctionDef{Name: "f", Return: intT}, "int f(void);\n"},
		{"value params", &cir.FunctionDef{Name: "stub_add", Params: []cir.Var{{Name: "x1", Type: valueT}, {Name: "x2", Type: valueT}}, Return: valueT}, "value stub_add(value x1, value x2);\n"},
		{"argv param", &cir.FunctionDef{Name: "stub_f_byte7", Params: []cir.Var{{Name: "argv", Type: ctypes.Array{Elem: valueT}}, {Name: "argc", Type: intT}}, Return: valueT}, "value stub_f_byte7(value argv[], int argc);\n"},
		{"pointer-to-array return", &cir.FunctionDef{Name: "row_of", Params: []cir.Var{{Name: "x1", Type: intT}}, Return: ctypes.Pointer{Elem: ctypes.Array{Elem: intT, Len: 4}}}, "int (*row_of(int x1))[4];\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decl(tt.def); got != tt.want {
				t.Errorf("Decl() = %q, want %q", got, tt.want)
			}
		})
	}
}
