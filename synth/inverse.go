package synth

import (
	"fmt"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

// Inverse synthesizes the native-callable function that dispatches into
// managed logic: each native parameter is injected into a slot of a
// collector-visible local array, the runtime's generic N-ary callback
// entry point is invoked against slot `index` of the process-wide
// closure table named `table`, and the callback's boxed result is
// projected into the native return type.
//
// The index must match the slot under which the corresponding managed
// closure is registered at startup by the linking collaborator. A
// mismatch is undefined behavior at the native level and cannot be
// detected here; validation belongs to whoever builds the table.
func Inverse(ns *cir.Names, stubName string, sig Signature, table string, index int) (*cir.FunctionDef, error) {
	if err := checkSignature(sig, Sequential); err != nil {
		return nil, err
	}
	for _, p := range sig.Params {
		if m, ok := ctypes.Strip(p).(ctypes.Managed); ok && m.Kind != ctypes.Value {
			return nil, unsupported("unsupported buffer kind: %s", m.Kind)
		}
	}

	params := make([]cir.Var, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = ns.Fresh(ctypes.Strip(p))
	}

	// The callback entry point always receives at least one argument;
	// a parameterless stub passes the unit value in a single slot.
	slots := len(params)
	if slots == 0 {
		slots = 1
	}
	locals := cir.Var{Name: "locals", Type: ctypes.Array{Elem: valueT}}
	tableVar := cir.Var{Name: table, Type: ctypes.Array{Elem: valueT}}
	nargs := cir.Const{Text: "nargs", Type: intT}

	fill := func(i int, rhs cir.Eff, body cir.Comp) cir.Comp {
		assign := cir.Assign{Target: locals, Idx: cir.Const{Text: fmt.Sprint(i), Type: intT}, RHS: rhs}
		return cir.Let{V: cir.Var{Name: "", Type: voidT}, E: assign, Body: body}
	}

	retU := ctypes.Strip(sig.Return)
	invoke := func() (cir.Comp, error) {
		slot := cir.Val{E: cir.Index{Arr: tableVar, I: cir.Const{Text: fmt.Sprint(index), Type: intT}}}
		return cir.Bind(ns, slot, func(closure cir.Expr) (cir.Comp, error) {
			call := cir.Val{E: cir.Call{Func: fnCallbackN, Args: []cir.Expr{closure, nargs, locals}}}
			if _, isVoid := retU.(ctypes.Void); isVoid {
				// The callback still runs; its unit result is dropped.
				return cir.BindTo(ns, voidT, call, func(cir.Expr) (cir.Comp, error) {
					return cir.ScopedReturn0{}, nil
				})
			}
			return cir.Bind(ns, call, func(res cir.Expr) (cir.Comp, error) {
				return projectResult(ns, retU, res)
			})
		})
	}

	var build func(i int) (cir.Comp, error)
	build = func(i int) (cir.Comp, error) {
		if i == len(params) {
			if len(params) == 0 {
				body, err := invoke()
				if err != nil {
					return nil, err
				}
				return fill(0, cir.Exp{X: unitValue()}, body), nil
			}
			return invoke()
		}
		rhs, err := injectParam(ctypes.Strip(sig.Params[i]), params[i])
		if err != nil {
			return nil, err
		}
		body, err := build(i + 1)
		if err != nil {
			return nil, err
		}
		return fill(i, rhs, body), nil
	}

	body, err := build(0)
	if err != nil {
		return nil, err
	}
	body = cir.LetConst{Name: "nargs", Value: slots, Body: cir.LocalArray{V: locals, Count: "nargs", Body: body}}

	return &cir.FunctionDef{
		Name:   stubName,
		Params: params,
		Return: ctypes.Strip(sig.Return),
		Body:   body,
		Rooted: true,
	}, nil
}

// injectParam boxes one native parameter for its slot.
func injectParam(u ctypes.Type, v cir.Var) (cir.Eff, error) {
	if m, ok := u.(ctypes.Managed); ok && m.Kind == ctypes.Value {
		return cir.Exp{X: v}, nil
	}
	return inject(u, v)
}

// projectResult unboxes the callback's result into the native return
// type and terminates with the scoped return, which degenerates to the
// unparameterized form for void.
func projectResult(ns *cir.Names, u ctypes.Type, res cir.Expr) (cir.Comp, error) {
	switch u := u.(type) {
	case ctypes.Void:
		return cir.ScopedReturn0{}, nil
	case ctypes.Primitive:
		proj, ok := ctypes.Projector(u.Kind)
		if !ok {
			return nil, &cir.InternalError{Op: "projectResult", Detail: fmt.Sprintf("no projection for kind %s", u.Kind)}
		}
		accessor := cir.Func{Name: proj.Accessor, Params: []ctypes.Type{valueT}, Return: proj.Native}
		return cir.ScopedReturn{Type: u, E: cir.Call{Func: accessor, Args: []cir.Expr{res}}}, nil
	case ctypes.Pointer:
		return cir.ScopedReturn{Type: u, E: cir.Call{Func: fnAddrOfFatptr, Args: []cir.Expr{res}}}, nil
	case ctypes.Struct, ctypes.Union:
		return cir.BindTo(ns, ctypes.Pointer{Elem: u}, cir.Val{E: cir.Call{Func: fnAddrOfFatptr, Args: []cir.Expr{res}}},
			func(p cir.Expr) (cir.Comp, error) {
				return cir.ScopedReturn{Type: u, E: cir.Deref{X: p}}, nil
			})
	default:
		return nil, &cir.InternalError{Op: "projectResult", Detail: fmt.Sprintf("unprojectable return %T", u)}
	}
}
