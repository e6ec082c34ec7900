package ctypes

// Projection describes how to read a primitive out of a boxed value:
// the runtime accessor to call and the C type it yields.
type Projection struct {
	Accessor string
	Native   Type
}

// Injection describes how to box a primitive: the runtime constructor to
// call, the C type it consumes, and whether calling it allocates on the
// managed heap. Allocation matters downstream: a raw pointer extracted
// from the heap earlier in the stub is no longer valid once an allocating
// constructor runs.
type Injection struct {
	Constructor string
	Allocates   bool
	Native      Type
}

func prim(k Kind) Type { return Primitive{Kind: k} }

var projections = map[Kind]Projection{
	Char:          {Accessor: "Int_val", Native: prim(Int)},
	SChar:         {Accessor: "Int_val", Native: prim(Int)},
	UChar:         {Accessor: "Uint8_val", Native: prim(UInt8)},
	Bool:          {Accessor: "Bool_val", Native: prim(Bool)},
	Short:         {Accessor: "Int_val", Native: prim(Int)},
	UShort:        {Accessor: "Uint16_val", Native: prim(UInt16)},
	Int:           {Accessor: "Int_val", Native: prim(Int)},
	UInt:          {Accessor: "Uint32_val", Native: prim(UInt32)},
	Long:          {Accessor: "Long_val", Native: prim(Long)},
	ULong:         {Accessor: "Uint64_val", Native: prim(UInt64)},
	LLong:         {Accessor: "Int64_val", Native: prim(Int64)},
	ULLong:        {Accessor: "Uint64_val", Native: prim(UInt64)},
	Size:          {Accessor: "Uint64_val", Native: prim(UInt64)},
	Int8:          {Accessor: "Int_val", Native: prim(Int)},
	Int16:         {Accessor: "Int_val", Native: prim(Int)},
	Int32:         {Accessor: "Int32_val", Native: prim(Int32)},
	Int64:         {Accessor: "Int64_val", Native: prim(Int64)},
	UInt8:         {Accessor: "Uint8_val", Native: prim(UInt8)},
	UInt16:        {Accessor: "Uint16_val", Native: prim(UInt16)},
	UInt32:        {Accessor: "Uint32_val", Native: prim(UInt32)},
	UInt64:        {Accessor: "Uint64_val", Native: prim(UInt64)},
	Float:         {Accessor: "Double_val", Native: prim(Double)},
	Double:        {Accessor: "Double_val", Native: prim(Double)},
	FloatComplex:  {Accessor: "ctypes_float_complex_val", Native: prim(FloatComplex)},
	DoubleComplex: {Accessor: "ctypes_double_complex_val", Native: prim(DoubleComplex)},
}

var injections = map[Kind]Injection{
	Char:          {Constructor: "Val_int", Native: prim(Int)},
	SChar:         {Constructor: "Val_int", Native: prim(Int)},
	UChar:         {Constructor: "Val_int", Native: prim(Int)},
	Bool:          {Constructor: "Val_bool", Native: prim(Bool)},
	Short:         {Constructor: "Val_int", Native: prim(Int)},
	UShort:        {Constructor: "Val_int", Native: prim(Int)},
	Int:           {Constructor: "Val_int", Native: prim(Int)},
	UInt:          {Constructor: "ctypes_copy_uint32", Allocates: true, Native: prim(UInt32)},
	Long:          {Constructor: "Val_long", Native: prim(Long)},
	ULong:         {Constructor: "ctypes_copy_uint64", Allocates: true, Native: prim(UInt64)},
	LLong:         {Constructor: "caml_copy_int64", Allocates: true, Native: prim(Int64)},
	ULLong:        {Constructor: "ctypes_copy_uint64", Allocates: true, Native: prim(UInt64)},
	Size:          {Constructor: "ctypes_copy_uint64", Allocates: true, Native: prim(UInt64)},
	Int8:          {Constructor: "Val_int", Native: prim(Int)},
	Int16:         {Constructor: "Val_int", Native: prim(Int)},
	Int32:         {Constructor: "caml_copy_int32", Allocates: true, Native: prim(Int32)},
	Int64:         {Constructor: "caml_copy_int64", Allocates: true, Native: prim(Int64)},
	UInt8:         {Constructor: "Val_int", Native: prim(Int)},
	UInt16:        {Constructor: "Val_int", Native: prim(Int)},
	UInt32:        {Constructor: "ctypes_copy_uint32", Allocates: true, Native: prim(UInt32)},
	UInt64:        {Constructor: "ctypes_copy_uint64", Allocates: true, Native: prim(UInt64)},
	Float:         {Constructor: "caml_copy_double", Allocates: true, Native: prim(Double)},
	Double:        {Constructor: "caml_copy_double", Allocates: true, Native: prim(Double)},
	FloatComplex:  {Constructor: "ctypes_copy_float_complex", Allocates: true, Native: prim(FloatComplex)},
	DoubleComplex: {Constructor: "ctypes_copy_double_complex", Allocates: true, Native: prim(DoubleComplex)},
}

// Projector returns the projection entry for a primitive kind. The
// catalog is total over the closed set of kinds; ok is false only for a
// Kind value outside that set.
func Projector(k Kind) (Projection, bool) {
	p, ok := projections[k]
	return p, ok
}

// Injector returns the injection entry for a primitive kind.
func Injector(k Kind) (Injection, bool) {
	i, ok := injections[k]
	return i, ok
}
