package cir

import "github.com/podhmo/stubgen/ctypes"

// This file is the let-insertion normalizer: a selective
// continuation-passing transform that flattens nested effectful
// computations into an order-preserving sequence of named bindings.
//
// The laws it implements:
//   - a pure expression substitutes directly into the continuation; no
//     temporary is introduced
//   - an effect is bound to a fresh name and the continuation receives a
//     reference to it
//   - a nested let / const-binding / local-array declaration is hoisted
//     outward and the continuation pushed inward, preserving both
//     evaluation order and scope
//   - a terminal return ends the computation; the continuation is dead
//
// Every effect in the input appears in the output exactly once and in
// the same relative order.

// Bind sequences a computation with its continuation. The fresh name, if
// one is needed, takes the effect's derived type.
func Bind(ns *Names, c Comp, k func(Expr) (Comp, error)) (Comp, error) {
	return bind(ns, nil, c, k)
}

// BindTo is Bind with an explicit type for the introduced binding. A
// substituted pure expression is cast to the requested type instead (the
// cast is elided when it is a no-op); an introduced temporary is declared
// with it, making the C initializer perform the conversion.
func BindTo(ns *Names, t ctypes.Type, c Comp, k func(Expr) (Comp, error)) (Comp, error) {
	return bind(ns, t, c, k)
}

func bind(ns *Names, want ctypes.Type, c Comp, k func(Expr) (Comp, error)) (Comp, error) {
	switch c := c.(type) {
	case Val:
		if e, ok := c.E.(Exp); ok {
			x := e.X
			if want != nil {
				cast, err := NewCast(want, x)
				if err != nil {
					return nil, err
				}
				x = cast
			}
			return k(x)
		}
		t := want
		if t == nil {
			derived, err := EffType(c.E)
			if err != nil {
				return nil, err
			}
			t = derived
		}
		v := ns.Fresh(t)
		body, err := k(v)
		if err != nil {
			return nil, err
		}
		return Let{V: v, E: c.E, Body: body}, nil
	case Let:
		body, err := bind(ns, want, c.Body, k)
		if err != nil {
			return nil, err
		}
		return Let{V: c.V, E: c.E, Body: body}, nil
	case LetConst:
		body, err := bind(ns, want, c.Body, k)
		if err != nil {
			return nil, err
		}
		return LetConst{Name: c.Name, Value: c.Value, Body: body}, nil
	case LocalArray:
		body, err := bind(ns, want, c.Body, k)
		if err != nil {
			return nil, err
		}
		return LocalArray{V: c.V, Count: c.Count, Body: body}, nil
	case Return, ScopedReturn, ScopedReturn0:
		return c, nil
	default:
		return nil, &InternalError{Op: "Bind", Detail: "unknown computation"}
	}
}
