package synth

import (
	"fmt"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

// DefaultArityThreshold is the largest arity the runtime's fixed-arity
// native call path accepts. Above it, applications go through the
// bytecode calling convention (an argument array plus a count) and the
// stub needs an adapter. The limit is the runtime's, not ours, so
// callers may override it.
const DefaultArityThreshold = 5

// ByteAdapter synthesizes the variable-arity shim for a forward stub
// whose arity exceeds the threshold. The shim recovers each boxed
// argument from the argument array positionally, in increasing order,
// and forwards them to the fixed-arity stub; its semantics are identical
// to a direct call. No root registration is needed: the shim allocates
// nothing before tail-calling the stub.
func ByteAdapter(ns *cir.Names, stub *cir.FunctionDef) (*cir.FunctionDef, error) {
	n := len(stub.Params)
	argv := cir.Var{Name: "argv", Type: ctypes.Array{Elem: valueT}}
	argc := cir.Var{Name: "argc", Type: intT}

	target := cir.Func{
		Name:   stub.Name,
		Params: make([]ctypes.Type, n),
		Return: stub.Return,
	}
	for i := range target.Params {
		target.Params[i] = valueT
	}

	args := make([]cir.Expr, 0, n)
	var build func(i int) (cir.Comp, error)
	build = func(i int) (cir.Comp, error) {
		if i == n {
			return cir.Return{E: cir.Call{Func: target, Args: args}}, nil
		}
		slot := cir.Val{E: cir.Index{Arr: argv, I: cir.Const{Text: fmt.Sprint(i), Type: intT}}}
		return cir.Bind(ns, slot, func(x cir.Expr) (cir.Comp, error) {
			args = append(args, x)
			return build(i + 1)
		})
	}
	body, err := build(0)
	if err != nil {
		return nil, err
	}

	return &cir.FunctionDef{
		Name:   fmt.Sprintf("%s_byte%d", stub.Name, n),
		Params: []cir.Var{argv, argc},
		Return: stub.Return,
		Body:   body,
	}, nil
}
