// Package ctypes models the subset of the C type system that stub
// synthesis needs: primitives, pointers, struct/union aggregates, fixed
// arrays, opaque blocks, and the runtime's boxed references. It is not a
// general C type system; anything outside this closed set is out of scope.
package ctypes

import "fmt"

// Kind identifies a primitive arithmetic type.
type Kind int

const (
	Char Kind = iota
	SChar
	UChar
	Bool
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LLong
	ULLong
	Size
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float
	Double
	FloatComplex
	DoubleComplex
)

var kindSpellings = map[Kind]string{
	Char:          "char",
	SChar:         "signed char",
	UChar:         "unsigned char",
	Bool:          "_Bool",
	Short:         "short",
	UShort:        "unsigned short",
	Int:           "int",
	UInt:          "unsigned int",
	Long:          "long",
	ULong:         "unsigned long",
	LLong:         "long long",
	ULLong:        "unsigned long long",
	Size:          "size_t",
	Int8:          "int8_t",
	Int16:         "int16_t",
	Int32:         "int32_t",
	Int64:         "int64_t",
	UInt8:         "uint8_t",
	UInt16:        "uint16_t",
	UInt32:        "uint32_t",
	UInt64:        "uint64_t",
	Float:         "float",
	Double:        "double",
	FloatComplex:  "float _Complex",
	DoubleComplex: "double _Complex",
}

// String returns the C spelling of the primitive.
func (k Kind) String() string {
	if s, ok := kindSpellings[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ManagedKind identifies what a boxed reference carries at the C level.
type ManagedKind int

const (
	// Value is the runtime's uniform boxed representation, passed through
	// unchanged.
	Value ManagedKind = iota
	// String is an immutable heap-allocated byte string; its backing
	// pointer can be extracted as char*.
	String
	// Bytes is a mutable heap-allocated byte buffer; its backing pointer
	// can be extracted as unsigned char*.
	Bytes
	// FloatArray is the runtime's unboxed float array. No projection is
	// defined for it; signatures mentioning it are rejected.
	FloatArray
)

func (k ManagedKind) String() string {
	switch k {
	case Value:
		return "value"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case FloatArray:
		return "float array"
	default:
		return fmt.Sprintf("ManagedKind(%d)", int(k))
	}
}

// Type is the closed sum of C-level types the synthesizer understands.
// The implementations are Void, Primitive, Pointer, Struct, Union, Array,
// Abstract, Managed, and View; no other implementation exists.
type Type interface {
	isType()
}

// Void is the C void type.
type Void struct{}

// Primitive is a primitive arithmetic type.
type Primitive struct {
	Kind Kind
}

// Pointer is a pointer to Elem.
type Pointer struct {
	Elem Type
}

// Field is a named member of a struct or union. Offset is as reported by
// the type-registry collaborator; emission itself only needs it for
// documentation since aggregates are copied whole.
type Field struct {
	Name   string
	Type   Type
	Offset int
}

// Struct is a tagged struct type. Fields are in declaration order.
type Struct struct {
	Tag    string
	Fields []Field
}

// Union is a tagged union type.
type Union struct {
	Tag    string
	Fields []Field
}

// Array is a fixed-length array of Elem. Arrays are never passable as
// parameters or returns; they appear only inside aggregates.
type Array struct {
	Elem Type
	Len  int
}

// Abstract is an opaque block known only by name, size and alignment.
// It can be pointed at but never passed or returned by value.
type Abstract struct {
	Name string
}

// Managed is a reference into the managed heap.
type Managed struct {
	Kind ManagedKind
}

// View wraps an underlying type with language-level read/write
// conversions. Views are transparent at the C level: stub synthesis and
// cast elision always operate on the stripped underlying type.
type View struct {
	Underlying Type
	Read       string
	Write      string
}

func (Void) isType()      {}
func (Primitive) isType() {}
func (Pointer) isType()   {}
func (Struct) isType()    {}
func (Union) isType()     {}
func (Array) isType()     {}
func (Abstract) isType()  {}
func (Managed) isType()   {}
func (View) isType()      {}

// Strip removes any chain of views, returning the underlying C type.
func Strip(t Type) Type {
	for {
		v, ok := t.(View)
		if !ok {
			return t
		}
		t = v.Underlying
	}
}

// Equal reports whether two types are structurally identical after
// stripping views. It is the notion of identity the cast-elision rule
// uses.
func Equal(a, b Type) bool {
	a, b = Strip(a), Strip(b)
	switch a := a.(type) {
	case Void:
		_, ok := b.(Void)
		return ok
	case Primitive:
		bb, ok := b.(Primitive)
		return ok && a.Kind == bb.Kind
	case Pointer:
		bb, ok := b.(Pointer)
		return ok && Equal(a.Elem, bb.Elem)
	case Struct:
		bb, ok := b.(Struct)
		return ok && a.Tag == bb.Tag
	case Union:
		bb, ok := b.(Union)
		return ok && a.Tag == bb.Tag
	case Array:
		bb, ok := b.(Array)
		return ok && a.Len == bb.Len && Equal(a.Elem, bb.Elem)
	case Abstract:
		bb, ok := b.(Abstract)
		return ok && a.Name == bb.Name
	case Managed:
		bb, ok := b.(Managed)
		return ok && a.Kind == bb.Kind
	default:
		return false
	}
}

// IsPointerLike reports whether a type converts implicitly to and from
// void* in C, i.e. pointers and arrays (which decay).
func IsPointerLike(t Type) bool {
	switch Strip(t).(type) {
	case Pointer, Array:
		return true
	default:
		return false
	}
}
