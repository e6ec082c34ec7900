// Package synth builds the IR for marshalling stubs: forward stubs that
// let managed code call a native function, inverse stubs that let native
// code call back into managed logic, and the variable-arity adapter used
// by the runtime's bytecode calling convention.
package synth

import (
	"fmt"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

// Signature is the native shape of a bound function: parameter types in
// order, and the return type.
type Signature struct {
	Params []ctypes.Type
	Return ctypes.Type
}

// Policy selects how a forward stub interacts with the runtime lock
// around the native call.
type Policy int

const (
	// Sequential keeps the runtime lock held for the call's duration.
	Sequential Policy = iota
	// Unlocked releases the runtime lock before the native call and
	// reacquires it afterwards, allowing managed code to run on other
	// threads meanwhile. Arguments backed by managed-heap pointers are
	// rejected under this policy because releasing the lock invalidates
	// them.
	Unlocked
)

// UnsupportedError reports a type category that cannot be marshalled.
// The originating declaration must be rejected outright; there is no
// fallback output and no retry.
type UnsupportedError struct {
	Category string
}

func (e *UnsupportedError) Error() string {
	return "unsupported feature: " + e.Category
}

func unsupported(format string, args ...any) error {
	return &UnsupportedError{Category: fmt.Sprintf(format, args...)}
}

var (
	valueT  = ctypes.Managed{Kind: ctypes.Value}
	voidT   = ctypes.Void{}
	voidPtr = ctypes.Pointer{Elem: ctypes.Void{}}
	intT    = ctypes.Primitive{Kind: ctypes.Int}
)

// Runtime entry points the generated stubs call into.
var (
	fnAddrOfFatptr = cir.Func{Name: "CTYPES_ADDR_OF_FATPTR", Params: []ctypes.Type{valueT}, Return: voidPtr}
	fnFromPtr      = cir.Func{Name: "CTYPES_FROM_PTR", Params: []ctypes.Type{voidPtr}, Return: valueT}
	fnStringPtr    = cir.Func{Name: "CTYPES_PTR_OF_OCAML_STRING", Params: []ctypes.Type{valueT}, Return: ctypes.Pointer{Elem: ctypes.Primitive{Kind: ctypes.Char}}}
	fnBytesPtr     = cir.Func{Name: "CTYPES_PTR_OF_OCAML_BYTES", Params: []ctypes.Type{valueT}, Return: ctypes.Pointer{Elem: ctypes.Primitive{Kind: ctypes.UChar}}}
	fnCopyBytes    = cir.Func{Name: "ctypes_copy_bytes", Params: []ctypes.Type{voidPtr, ctypes.Primitive{Kind: ctypes.Size}}, Return: valueT}
	fnCallbackN    = cir.Func{Name: "caml_callbackN", Params: []ctypes.Type{valueT, intT, ctypes.Pointer{Elem: valueT}}, Return: valueT}
	fnReleaseLock  = cir.Func{Name: "caml_release_runtime_system", Return: voidT}
	fnAcquireLock  = cir.Func{Name: "caml_acquire_runtime_system", Return: voidT}
)

func unitValue() cir.Expr {
	return cir.Const{Text: "Val_unit", Type: valueT}
}

// checkSignature enforces passability for every type in a signature: not
// a raw array, not an opaque block passed or returned by value, not a
// managed-heap reference in return position, and not a buffer kind the
// catalog cannot marshal.
func checkSignature(sig Signature, policy Policy) error {
	for _, p := range sig.Params {
		switch t := ctypes.Strip(p).(type) {
		case ctypes.Array:
			return unsupported("array parameter")
		case ctypes.Abstract:
			return unsupported("opaque block %q passed by value", t.Name)
		case ctypes.Void:
			return unsupported("void parameter")
		case ctypes.Managed:
			if t.Kind == ctypes.FloatArray {
				return unsupported("unsupported buffer kind: %s", t.Kind)
			}
			if policy == Unlocked {
				return unsupported("managed-heap-backed %s argument with the unlocked calling policy", t.Kind)
			}
		}
	}
	switch t := ctypes.Strip(sig.Return).(type) {
	case ctypes.Array:
		return unsupported("array return type")
	case ctypes.Abstract:
		return unsupported("opaque block %q returned by value", t.Name)
	case ctypes.Managed:
		return unsupported("managed-reference return type")
	}
	return nil
}
