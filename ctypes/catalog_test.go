package ctypes

import "testing"

var allKinds = []Kind{
	Char, SChar, UChar, Bool, Short, UShort, Int, UInt, Long, ULong,
	LLong, ULLong, Size, Int8, Int16, Int32, Int64, UInt8, UInt16,
	UInt32, UInt64, Float, Double, FloatComplex, DoubleComplex,
}

// The catalog must be total over the closed set of kinds: every kind has
// both a projection and an injection.
func TestCatalogTotal(t *testing.T) {
	for _, k := range allKinds {
		p, ok := Projector(k)
		if !ok {
			t.Errorf("Projector(%s): missing entry", k)
			continue
		}
		if p.Accessor == "" || p.Native == nil {
			t.Errorf("Projector(%s) = %+v: incomplete entry", k, p)
		}
		i, ok := Injector(k)
		if !ok {
			t.Errorf("Injector(%s): missing entry", k)
			continue
		}
		if i.Constructor == "" || i.Native == nil {
			t.Errorf("Injector(%s) = %+v: incomplete entry", k, i)
		}
	}
}

func TestCatalogUnknownKind(t *testing.T) {
	if _, ok := Projector(Kind(999)); ok {
		t.Errorf("Projector should not know Kind(999)")
	}
	if _, ok := Injector(Kind(999)); ok {
		t.Errorf("Injector should not know Kind(999)")
	}
}

// Allocation flags drive rooting decisions downstream: immediates must
// not be marked allocating, boxed numbers must be.
func TestInjectionAllocates(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{Int, false},
		{Bool, false},
		{Char, false},
		{UInt8, false},
		{Int32, true},
		{Int64, true},
		{UInt64, true},
		{Float, true},
		{Double, true},
		{DoubleComplex, true},
	}
	for _, tt := range tests {
		inj, ok := Injector(tt.kind)
		if !ok {
			t.Fatalf("Injector(%s): missing entry", tt.kind)
		}
		if inj.Allocates != tt.want {
			t.Errorf("Injector(%s).Allocates = %v, want %v", tt.kind, inj.Allocates, tt.want)
		}
	}
}

func TestProjectorAccessors(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Int, "Int_val"},
		{Long, "Long_val"},
		{Double, "Double_val"},
		{Int64, "Int64_val"},
		{UInt8, "Uint8_val"},
	}
	for _, tt := range tests {
		p, ok := Projector(tt.kind)
		if !ok {
			t.Fatalf("Projector(%s): missing entry", tt.kind)
		}
		if p.Accessor != tt.want {
			t.Errorf("Projector(%s).Accessor = %q, want %q", tt.kind, p.Accessor, tt.want)
		}
	}
}
