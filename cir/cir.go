// Package cir is the intermediate representation for generated C stub
// bodies. It is a layered algebra: side-effect-free expressions (Expr),
// effects that carry an evaluation-order requirement (Eff), and sequenced
// computations terminating in a return (Comp). The layers are distinct
// sum types with explicit injection (Exp lifts an Expr into an Eff; Val
// lifts an Eff into a Comp); there is no structural subtyping between
// them. Types of expressions are structurally derivable; a derivation
// failure is an InternalError, an engine bug rather than bad input.
package cir

import (
	"fmt"

	"github.com/podhmo/stubgen/ctypes"
)

// InternalError reports a violation of the IR's structural typing rules,
// e.g. dereferencing an expression whose type is not a pointer. It always
// indicates a bug in the synthesizer, never bad input, and is fatal for
// the stub being generated.
type InternalError struct {
	Op     string
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal inconsistency in %s: %s", e.Op, e.Detail)
}

// Func identifies a callable C symbol together with its native signature.
type Func struct {
	Name   string
	Params []ctypes.Type
	Return ctypes.Type
}

// --- expressions -----------------------------------------------------------

// Expr is a side-effect-free term: constant, variable, cast, address-of,
// or a sizeof constant expression.
type Expr interface {
	isExpr()
}

// Var is a named local or parameter.
type Var struct {
	Name string
	Type ctypes.Type
}

// Const is a literal or symbolic constant spelled verbatim.
type Const struct {
	Text string
	Type ctypes.Type
}

// Cast reinterprets X as To. Build casts through NewCast so that no-op
// casts are elided.
type Cast struct {
	To ctypes.Type
	X  Expr
}

// AddrOf takes the address of X.
type AddrOf struct {
	X Expr
}

// Sizeof is the sizeof constant expression for a type.
type Sizeof struct {
	Of ctypes.Type
}

func (Var) isExpr()    {}
func (Const) isExpr()  {}
func (Cast) isExpr()   {}
func (AddrOf) isExpr() {}
func (Sizeof) isExpr() {}

// NewCast builds a cast of x to the target type, eliding it when it is
// provably a no-op under C's conversion rules: when source and target are
// identical after stripping views, and when one side is void* (the
// universally-compatible pointer type) and the other is pointer-like, in
// either direction.
func NewCast(to ctypes.Type, x Expr) (Expr, error) {
	from, err := TypeOf(x)
	if err != nil {
		return nil, err
	}
	if ctypes.Equal(to, from) {
		return x, nil
	}
	if isVoidPointer(to) && ctypes.IsPointerLike(from) {
		return x, nil
	}
	if isVoidPointer(from) {
		if _, ok := ctypes.Strip(to).(ctypes.Pointer); ok {
			return x, nil
		}
	}
	return Cast{To: to, X: x}, nil
}

func isVoidPointer(t ctypes.Type) bool {
	p, ok := ctypes.Strip(t).(ctypes.Pointer)
	if !ok {
		return false
	}
	_, ok = ctypes.Strip(p.Elem).(ctypes.Void)
	return ok
}

// TypeOf derives the type of a pure expression.
func TypeOf(x Expr) (ctypes.Type, error) {
	switch x := x.(type) {
	case Var:
		return x.Type, nil
	case Const:
		return x.Type, nil
	case Cast:
		return x.To, nil
	case AddrOf:
		t, err := TypeOf(x.X)
		if err != nil {
			return nil, err
		}
		return ctypes.Pointer{Elem: t}, nil
	case Sizeof:
		return ctypes.Primitive{Kind: ctypes.Size}, nil
	default:
		return nil, &InternalError{Op: "TypeOf", Detail: fmt.Sprintf("unknown expression %T", x)}
	}
}

// --- effects ---------------------------------------------------------------

// Eff is an expression extended with operations whose evaluation order is
// observable: calls, indexing, dereferences and assignments.
type Eff interface {
	isEff()
}

// Exp injects a pure expression into the effect layer.
type Exp struct {
	X Expr
}

// Call invokes Func with the given argument expressions.
type Call struct {
	Func Func
	Args []Expr
}

// Index reads element I of the array-typed expression Arr.
type Index struct {
	Arr Expr
	I   Expr
}

// Deref dereferences a pointer-typed expression.
type Deref struct {
	X Expr
}

// Assign stores the value of an effect into a variable, or into an
// element of an array-typed variable when Idx is non-nil.
type Assign struct {
	Target Var
	Idx    Expr // nil for plain variable assignment
	RHS    Eff
}

func (Exp) isEff()    {}
func (Call) isEff()   {}
func (Index) isEff()  {}
func (Deref) isEff()  {}
func (Assign) isEff() {}

// EffType derives the type of an effect's value. Assignments are
// statements and have type void.
func EffType(e Eff) (ctypes.Type, error) {
	switch e := e.(type) {
	case Exp:
		return TypeOf(e.X)
	case Call:
		return e.Func.Return, nil
	case Index:
		t, err := TypeOf(e.Arr)
		if err != nil {
			return nil, err
		}
		switch t := ctypes.Strip(t).(type) {
		case ctypes.Array:
			return t.Elem, nil
		case ctypes.Pointer:
			return t.Elem, nil
		default:
			return nil, &InternalError{Op: "EffType", Detail: fmt.Sprintf("indexing a non-array value of type %T", t)}
		}
	case Deref:
		t, err := TypeOf(e.X)
		if err != nil {
			return nil, err
		}
		switch t := ctypes.Strip(t).(type) {
		case ctypes.Pointer:
			return t.Elem, nil
		case ctypes.Array:
			return t.Elem, nil
		default:
			return nil, &InternalError{Op: "EffType", Detail: fmt.Sprintf("dereferencing a non-pointer value of type %T", t)}
		}
	case Assign:
		return ctypes.Void{}, nil
	default:
		return nil, &InternalError{Op: "EffType", Detail: fmt.Sprintf("unknown effect %T", e)}
	}
}

// --- computations ----------------------------------------------------------

// Comp is a sequence of bindings of effects terminating in a return. Val
// is the pre-normalization terminal ("the value of this computation is
// this effect"); Bind rewrites it away, so rendered computations end in
// Return, ScopedReturn or ScopedReturn0.
type Comp interface {
	isComp()
}

// Val is a computation whose result is the value of a single effect.
type Val struct {
	E Eff
}

// Let binds the value of an effect to a variable and continues with Body.
// When V's type is void the renderer emits the effect as a bare
// statement and no binding is introduced.
type Let struct {
	V    Var
	E    Eff
	Body Comp
}

// LetConst introduces a named integer constant usable in constant
// positions (array bounds in particular) and continues with Body.
type LetConst struct {
	Name  string
	Value int
	Body  Comp
}

// LocalArray declares a collector-visible local array of boxed values.
// Count names a constant introduced by an enclosing LetConst.
type LocalArray struct {
	V     Var
	Count string
	Body  Comp
}

// Return terminates a computation with a plain return.
type Return struct {
	E Eff
}

// ScopedReturn terminates a computation by releasing registered roots and
// returning a value of the given native type.
type ScopedReturn struct {
	Type ctypes.Type
	E    Eff
}

// ScopedReturn0 is the unparameterized scoped return used for void.
type ScopedReturn0 struct{}

func (Val) isComp()           {}
func (Let) isComp()           {}
func (LetConst) isComp()      {}
func (LocalArray) isComp()    {}
func (Return) isComp()        {}
func (ScopedReturn) isComp()  {}
func (ScopedReturn0) isComp() {}

// FunctionDef is a C function: name, ordered parameters, return type and
// an optional body. A nil Body renders as a declaration only. Rooted
// marks the body as wrapped in the runtime's root-registration scope, so
// every boxed parameter stays visible to the collector for the call's
// duration.
type FunctionDef struct {
	Name   string
	Params []Var
	Return ctypes.Type
	Body   Comp
	Rooted bool
}
