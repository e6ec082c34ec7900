// Package manifest loads the YAML bindings manifest that drives batch
// generation: which native functions get forward stubs, which callbacks
// get inverse stubs, and the struct/union/opaque types their signatures
// mention. It is driver glue over the library; it is not a surface
// type-description language.
package manifest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/podhmo/stubgen/ctypes"
	"github.com/podhmo/stubgen/synth"
)

// Manifest describes one generation run.
type Manifest struct {
	// Version is the manifest schema version, a semver label like "v1".
	Version string `yaml:"version"`
	// Prefix is prepended to derived stub names. Defaults to "stub_".
	Prefix string `yaml:"prefix"`
	// ClosureTable overrides the registered-closure table symbol.
	ClosureTable string `yaml:"closure_table"`

	Structs []AggregateDecl `yaml:"structs"`
	Unions  []AggregateDecl `yaml:"unions"`
	Opaque  []string        `yaml:"opaque"`

	Functions []Function `yaml:"functions"`
}

// AggregateDecl declares a struct or union tag with its fields, as
// supplied by the type-registry collaborator.
type AggregateDecl struct {
	Tag    string      `yaml:"tag"`
	Fields []FieldDecl `yaml:"fields"`
}

// FieldDecl is one member of an aggregate.
type FieldDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Offset int    `yaml:"offset"`
}

// Function is one binding: a native function to wrap (the default) or a
// callback to expose to native code (kind: callback).
type Function struct {
	// Name is the native symbol for a function, or the inverse stub
	// name for a callback.
	Name string `yaml:"name"`
	// Stub overrides the derived stub name.
	Stub string `yaml:"stub"`
	// Kind is "function" (default) or "callback".
	Kind   string   `yaml:"kind"`
	Params []string `yaml:"params"`
	Return string   `yaml:"return"`
}

// IsCallback reports whether this entry generates an inverse stub.
func (f Function) IsCallback() bool {
	return f.Kind == "callback"
}

// StubName returns the stub name, deriving one from the prefix when no
// override is given.
func (f Function) StubName(prefix string) string {
	if f.Stub != "" {
		return f.Stub
	}
	return prefix + f.Name
}

// Load reads and validates a manifest.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != "" && !semver.IsValid(m.Version) {
		return nil, fmt.Errorf("invalid manifest version %q: want a semver label like v1", m.Version)
	}
	if m.Prefix == "" {
		m.Prefix = "stub_"
	}
	for _, fn := range m.Functions {
		if fn.Name == "" {
			return nil, fmt.Errorf("function entry without a name")
		}
		if fn.Kind != "" && fn.Kind != "function" && fn.Kind != "callback" {
			return nil, fmt.Errorf("function %s: unknown kind %q", fn.Name, fn.Kind)
		}
	}
	return &m, nil
}

// Signature resolves a function entry's type references.
func (m *Manifest) Signature(f Function) (synth.Signature, error) {
	sig := synth.Signature{Return: ctypes.Void{}}
	if f.Return != "" {
		ret, err := m.ResolveType(f.Return)
		if err != nil {
			return sig, fmt.Errorf("function %s: return: %w", f.Name, err)
		}
		sig.Return = ret
	}
	for i, p := range f.Params {
		t, err := m.ResolveType(p)
		if err != nil {
			return sig, fmt.Errorf("function %s: param %d: %w", f.Name, i, err)
		}
		sig.Params = append(sig.Params, t)
	}
	return sig, nil
}

var primitives = map[string]ctypes.Kind{
	"char":               ctypes.Char,
	"signed char":        ctypes.SChar,
	"unsigned char":      ctypes.UChar,
	"bool":               ctypes.Bool,
	"_Bool":              ctypes.Bool,
	"short":              ctypes.Short,
	"unsigned short":     ctypes.UShort,
	"int":                ctypes.Int,
	"unsigned int":       ctypes.UInt,
	"uint":               ctypes.UInt,
	"long":               ctypes.Long,
	"unsigned long":      ctypes.ULong,
	"long long":          ctypes.LLong,
	"unsigned long long": ctypes.ULLong,
	"size_t":             ctypes.Size,
	"int8_t":             ctypes.Int8,
	"int16_t":            ctypes.Int16,
	"int32_t":            ctypes.Int32,
	"int64_t":            ctypes.Int64,
	"uint8_t":            ctypes.UInt8,
	"uint16_t":           ctypes.UInt16,
	"uint32_t":           ctypes.UInt32,
	"uint64_t":           ctypes.UInt64,
	"float":              ctypes.Float,
	"double":             ctypes.Double,
	"float complex":      ctypes.FloatComplex,
	"double complex":     ctypes.DoubleComplex,
}

// ResolveType resolves a type reference: a primitive spelling, "void",
// the managed references "value", "string" and "bytes", a declared
// "struct T" / "union T" / opaque name, any of those followed by "*"s,
// or "T[n]" for a fixed array (arrays resolve but are never passable, so
// synthesis will reject them with a category message).
func (m *Manifest) ResolveType(s string) (ctypes.Type, error) {
	return (&resolver{m: m, busy: map[string]bool{}}).resolve(s)
}

// resolver tracks aggregate tags currently being resolved so that a
// self-referential field (e.g. struct node holding a struct node *)
// terminates. A tag seen again resolves to its bare tag reference;
// emission only ever needs the tag.
type resolver struct {
	m    *Manifest
	busy map[string]bool
}

func (r *resolver) resolve(s string) (ctypes.Type, error) {
	m := r.m
	s = strings.TrimSpace(s)

	if strings.HasSuffix(s, "*") {
		elem, err := r.resolve(strings.TrimSpace(strings.TrimSuffix(s, "*")))
		if err != nil {
			return nil, err
		}
		return ctypes.Pointer{Elem: elem}, nil
	}
	if open := strings.LastIndex(s, "["); open != -1 && strings.HasSuffix(s, "]") {
		n, err := strconv.Atoi(strings.TrimSpace(s[open+1 : len(s)-1]))
		if err != nil {
			return nil, fmt.Errorf("bad array length in %q", s)
		}
		elem, err := r.resolve(strings.TrimSpace(s[:open]))
		if err != nil {
			return nil, err
		}
		return ctypes.Array{Elem: elem, Len: n}, nil
	}

	switch s {
	case "void":
		return ctypes.Void{}, nil
	case "value":
		return ctypes.Managed{Kind: ctypes.Value}, nil
	case "string":
		return ctypes.Managed{Kind: ctypes.String}, nil
	case "bytes":
		return ctypes.Managed{Kind: ctypes.Bytes}, nil
	case "float array":
		return ctypes.Managed{Kind: ctypes.FloatArray}, nil
	}
	if k, ok := primitives[s]; ok {
		return ctypes.Primitive{Kind: k}, nil
	}

	if tag, ok := strings.CutPrefix(s, "struct "); ok {
		return r.structType(tag)
	}
	if tag, ok := strings.CutPrefix(s, "union "); ok {
		return r.unionType(tag)
	}
	for _, name := range m.Opaque {
		if name == s {
			return ctypes.Abstract{Name: name}, nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

func (r *resolver) structType(tag string) (ctypes.Type, error) {
	if r.busy["struct "+tag] {
		return ctypes.Struct{Tag: tag}, nil
	}
	for _, d := range r.m.Structs {
		if d.Tag == tag {
			r.busy["struct "+tag] = true
			fields, err := r.fields(d)
			delete(r.busy, "struct "+tag)
			if err != nil {
				return nil, fmt.Errorf("struct %s: %w", tag, err)
			}
			return ctypes.Struct{Tag: tag, Fields: fields}, nil
		}
	}
	return nil, fmt.Errorf("undeclared struct %q", tag)
}

func (r *resolver) unionType(tag string) (ctypes.Type, error) {
	if r.busy["union "+tag] {
		return ctypes.Union{Tag: tag}, nil
	}
	for _, d := range r.m.Unions {
		if d.Tag == tag {
			r.busy["union "+tag] = true
			fields, err := r.fields(d)
			delete(r.busy, "union "+tag)
			if err != nil {
				return nil, fmt.Errorf("union %s: %w", tag, err)
			}
			return ctypes.Union{Tag: tag, Fields: fields}, nil
		}
	}
	return nil, fmt.Errorf("undeclared union %q", tag)
}

func (r *resolver) fields(d AggregateDecl) ([]ctypes.Field, error) {
	fields := make([]ctypes.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		t, err := r.resolve(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, ctypes.Field{Name: f.Name, Type: t, Offset: f.Offset})
	}
	return fields, nil
}
