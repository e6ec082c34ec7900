package synth

import (
	"fmt"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

// Forward synthesizes the stub that makes a native function callable from
// managed code. The stub takes one boxed parameter per signature
// argument, projects each to its native representation in input order,
// calls the native symbol strictly after all projections, injects the
// result back into a boxed value, and returns it through the scoped
// return so the registered roots are released first.
func Forward(ns *cir.Names, nativeSymbol, stubName string, sig Signature, policy Policy) (*cir.FunctionDef, error) {
	if err := checkSignature(sig, policy); err != nil {
		return nil, err
	}

	params := make([]cir.Var, len(sig.Params))
	for i := range sig.Params {
		params[i] = ns.Fresh(valueT)
	}

	native := cir.Func{
		Name:   nativeSymbol,
		Params: make([]ctypes.Type, len(sig.Params)),
		Return: ctypes.Strip(sig.Return),
	}
	for i, p := range sig.Params {
		native.Params[i] = ctypes.Strip(p)
	}

	args := make([]cir.Expr, 0, len(sig.Params))
	var build func(i int) (cir.Comp, error)
	build = func(i int) (cir.Comp, error) {
		if i == len(sig.Params) {
			return callAndInject(ns, native, args, sig.Return, policy)
		}
		bindAs, comp, err := project(ns, sig.Params[i], params[i])
		if err != nil {
			return nil, err
		}
		return cir.BindTo(ns, bindAs, comp, func(x cir.Expr) (cir.Comp, error) {
			args = append(args, x)
			return build(i + 1)
		})
	}
	body, err := build(0)
	if err != nil {
		return nil, err
	}

	return &cir.FunctionDef{
		Name:   stubName,
		Params: params,
		Return: valueT,
		Body:   body,
		Rooted: true,
	}, nil
}

// project produces the computation reading one native argument out of a
// boxed parameter, together with the type its binding should carry.
func project(ns *cir.Names, t ctypes.Type, v cir.Var) (ctypes.Type, cir.Comp, error) {
	u := ctypes.Strip(t)
	switch u := u.(type) {
	case ctypes.Primitive:
		proj, ok := ctypes.Projector(u.Kind)
		if !ok {
			return nil, nil, &cir.InternalError{Op: "project", Detail: fmt.Sprintf("no projection for kind %s", u.Kind)}
		}
		accessor := cir.Func{Name: proj.Accessor, Params: []ctypes.Type{valueT}, Return: proj.Native}
		return u, cir.Val{E: cir.Call{Func: accessor, Args: []cir.Expr{v}}}, nil
	case ctypes.Pointer:
		return u, cir.Val{E: cir.Call{Func: fnAddrOfFatptr, Args: []cir.Expr{v}}}, nil
	case ctypes.Struct, ctypes.Union:
		// Extract the address, reinterpret as a typed pointer via the
		// binding's declaration, and dereference.
		comp, err := cir.BindTo(ns, ctypes.Pointer{Elem: u}, cir.Val{E: cir.Call{Func: fnAddrOfFatptr, Args: []cir.Expr{v}}},
			func(p cir.Expr) (cir.Comp, error) {
				return cir.Val{E: cir.Deref{X: p}}, nil
			})
		if err != nil {
			return nil, nil, err
		}
		return u, comp, nil
	case ctypes.Managed:
		switch u.Kind {
		case ctypes.Value:
			return valueT, cir.Val{E: cir.Exp{X: v}}, nil
		case ctypes.String:
			return fnStringPtr.Return, cir.Val{E: cir.Call{Func: fnStringPtr, Args: []cir.Expr{v}}}, nil
		case ctypes.Bytes:
			return fnBytesPtr.Return, cir.Val{E: cir.Call{Func: fnBytesPtr, Args: []cir.Expr{v}}}, nil
		default:
			return nil, nil, unsupported("unsupported buffer kind: %s", u.Kind)
		}
	default:
		// checkSignature rejected everything else already.
		return nil, nil, &cir.InternalError{Op: "project", Detail: fmt.Sprintf("unprojectable type %T", u)}
	}
}

// callAndInject emits the native call and the boxing of its result. The
// call is bracketed by the runtime-lock release under the unlocked
// policy.
func callAndInject(ns *cir.Names, native cir.Func, args []cir.Expr, ret ctypes.Type, policy Policy) (cir.Comp, error) {
	prelude := func(next func() (cir.Comp, error)) (cir.Comp, error) {
		if policy != Unlocked {
			return next()
		}
		return cir.Bind(ns, cir.Val{E: cir.Call{Func: fnReleaseLock}}, func(cir.Expr) (cir.Comp, error) {
			return next()
		})
	}
	reacquire := func(next func() (cir.Comp, error)) (cir.Comp, error) {
		if policy != Unlocked {
			return next()
		}
		return cir.Bind(ns, cir.Val{E: cir.Call{Func: fnAcquireLock}}, func(cir.Expr) (cir.Comp, error) {
			return next()
		})
	}

	callEff := cir.Call{Func: native, Args: args}
	retU := ctypes.Strip(ret)

	if _, isVoid := retU.(ctypes.Void); isVoid {
		return prelude(func() (cir.Comp, error) {
			return cir.Bind(ns, cir.Val{E: callEff}, func(cir.Expr) (cir.Comp, error) {
				return reacquire(func() (cir.Comp, error) {
					return cir.ScopedReturn{Type: valueT, E: cir.Exp{X: unitValue()}}, nil
				})
			})
		})
	}

	return prelude(func() (cir.Comp, error) {
		return cir.Bind(ns, cir.Val{E: callEff}, func(res cir.Expr) (cir.Comp, error) {
			return reacquire(func() (cir.Comp, error) {
				boxed, err := inject(retU, res)
				if err != nil {
					return nil, err
				}
				return cir.ScopedReturn{Type: valueT, E: boxed}, nil
			})
		})
	})
}

// inject boxes a native result expression.
func inject(u ctypes.Type, x cir.Expr) (cir.Eff, error) {
	switch u := u.(type) {
	case ctypes.Primitive:
		inj, ok := ctypes.Injector(u.Kind)
		if !ok {
			return nil, &cir.InternalError{Op: "inject", Detail: fmt.Sprintf("no injection for kind %s", u.Kind)}
		}
		arg, err := cir.NewCast(inj.Native, x)
		if err != nil {
			return nil, err
		}
		ctor := cir.Func{Name: inj.Constructor, Params: []ctypes.Type{inj.Native}, Return: valueT}
		return cir.Call{Func: ctor, Args: []cir.Expr{arg}}, nil
	case ctypes.Pointer:
		arg, err := cir.NewCast(voidPtr, x)
		if err != nil {
			return nil, err
		}
		return cir.Call{Func: fnFromPtr, Args: []cir.Expr{arg}}, nil
	case ctypes.Struct, ctypes.Union:
		addr, err := cir.NewCast(voidPtr, cir.AddrOf{X: x})
		if err != nil {
			return nil, err
		}
		return cir.Call{Func: fnCopyBytes, Args: []cir.Expr{addr, cir.Sizeof{Of: u}}}, nil
	default:
		return nil, &cir.InternalError{Op: "inject", Detail: fmt.Sprintf("uninjectable type %T", u)}
	}
}
