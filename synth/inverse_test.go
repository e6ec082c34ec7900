package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/ctypes"
)

func TestInverseTwoArgs(t *testing.T) {
	sig := Signature{Params: []ctypes.Type{intT, doubleT}, Return: intT}
	def, err := Inverse(cir.NewNames(), "stub_notify", sig, "stubgen_closures", 0)
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	want := strings.Join([]string{
		"int stub_notify(int x1, double x2)",
		"{",
		"  CAMLparam0();",
		"  enum { nargs = 2 };",
		"  CAMLlocalN(locals, nargs);",
		"  locals[0] = Val_int(x1);",
		"  locals[1] = caml_copy_double(x2);",
		"  value x3 = stubgen_closures[0];",
		"  value x4 = caml_callbackN(x3, nargs, locals);",
		"  CAMLreturnT(int, Int_val(x4));",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, mustRender(t, def)); diff != "" {
		t.Errorf("stub mismatch (-want +got):\n%s", diff)
	}
}

func TestInverseVoidReturn(t *testing.T) {
	sig := Signature{Params: []ctypes.Type{intT}, Return: ctypes.Void{}}
	def, err := Inverse(cir.NewNames(), "stub_log", sig, "stubgen_closures", 1)
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	want := strings.Join([]string{
		"void stub_log(int x1)",
		"{",
		"  CAMLparam0();",
		"  enum { nargs = 1 };",
		"  CAMLlocalN(locals, nargs);",
		"  locals[0] = Val_int(x1);",
		"  value x2 = stubgen_closures[1];",
		"  caml_callbackN(x2, nargs, locals);",
		"  CAMLreturn0;",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, mustRender(t, def)); diff != "" {
		t.Errorf("stub mismatch (-want +got):\n%s", diff)
	}
}

func TestInverseNullary(t *testing.T) {
	sig := Signature{Return: intT}
	def, err := Inverse(cir.NewNames(), "stub_tick", sig, "stubgen_closures", 2)
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	// The callback entry point needs at least one argument, so a
	// parameterless stub passes the unit value in a single slot.
	want := strings.Join([]string{
		"int stub_tick(void)",
		"{",
		"  CAMLparam0();",
		"  enum { nargs = 1 };",
		"  CAMLlocalN(locals, nargs);",
		"  locals[0] = Val_unit;",
		"  value x1 = stubgen_closures[2];",
		"  value x2 = caml_callbackN(x1, nargs, locals);",
		"  CAMLreturnT(int, Int_val(x2));",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, mustRender(t, def)); diff != "" {
		t.Errorf("stub mismatch (-want +got):\n%s", diff)
	}
}

func TestInversePointerReturn(t *testing.T) {
	intPtr := ctypes.Pointer{Elem: intT}
	sig := Signature{Params: []ctypes.Type{intPtr}, Return: intPtr}
	def, err := Inverse(cir.NewNames(), "stub_reseat", sig, "stubgen_closures", 3)
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	got := mustRender(t, def)
	if !strings.Contains(got, "locals[0] = CTYPES_FROM_PTR(x1);") {
		t.Errorf("pointer parameters are boxed into their slot:\n%s", got)
	}
	if !strings.Contains(got, "CAMLreturnT(int *, CTYPES_ADDR_OF_FATPTR(") {
		t.Errorf("the boxed result is unwrapped to a native pointer:\n%s", got)
	}
}

func TestInverseStructReturn(t *testing.T) {
	point := ctypes.Struct{Tag: "point"}
	sig := Signature{Params: []ctypes.Type{intT}, Return: point}
	def, err := Inverse(cir.NewNames(), "stub_origin_at", sig, "stubgen_closures", 4)
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	want := strings.Join([]string{
		"struct point stub_origin_at(int x1)",
		"{",
		"  CAMLparam0();",
		"  enum { nargs = 1 };",
		"  CAMLlocalN(locals, nargs);",
		"  locals[0] = Val_int(x1);",
		"  value x2 = stubgen_closures[4];",
		"  value x3 = caml_callbackN(x2, nargs, locals);",
		"  struct point *x4 = CTYPES_ADDR_OF_FATPTR(x3);",
		"  CAMLreturnT(struct point, *x4);",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, mustRender(t, def)); diff != "" {
		t.Errorf("stub mismatch (-want +got):\n%s", diff)
	}
}

func TestInverseRejectsBuffers(t *testing.T) {
	for _, kind := range []ctypes.ManagedKind{ctypes.String, ctypes.Bytes, ctypes.FloatArray} {
		sig := Signature{Params: []ctypes.Type{ctypes.Managed{Kind: kind}}, Return: intT}
		_, err := Inverse(cir.NewNames(), "stub_cb", sig, "stubgen_closures", 0)
		var uerr *UnsupportedError
		if !errors.As(err, &uerr) {
			t.Errorf("%s parameter: want UnsupportedError, got %v", kind, err)
		}
	}
}
