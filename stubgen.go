// Package stubgen synthesizes C source implementing marshalling between
// the OCaml runtime's boxed values and native C calling conventions, in
// both directions: forward stubs let managed code call a native
// function, inverse stubs let native code call back into managed logic.
// It is a pure text-generation library; writing the emitted text
// anywhere is the caller's concern.
package stubgen

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/podhmo/stubgen/cir"
	"github.com/podhmo/stubgen/render"
	"github.com/podhmo/stubgen/synth"
)

// Re-export the synthesis types callers need, for convenience.
type (
	Signature = synth.Signature
	Policy    = synth.Policy
)

const (
	Sequential = synth.Sequential
	Unlocked   = synth.Unlocked
)

// DefaultClosureTable is the symbol of the process-wide registered
// closure table inverse stubs index into.
const DefaultClosureTable = "stubgen_closures"

// Preamble is the header block a generated C file needs.
const Preamble = `/* Code generated by stubgen. DO NOT EDIT. */

#include <caml/mlvalues.h>
#include <caml/memory.h>
#include <caml/callback.h>
#include <caml/threads.h>
#include "ctypes_cstubs_internals.h"

`

// Generator synthesizes stubs. It is safe for concurrent use: every stub
// gets its own fresh-name session, and the only shared state, the
// closure-table slot assignment, is guarded by a mutex.
type Generator struct {
	logger    *slog.Logger
	threshold int
	table     string
	policy    Policy

	mu      sync.Mutex
	indexes map[string]int
	order   []string
}

// Option is a functional option for configuring a Generator.
type Option func(*Generator)

// WithLogger sets the logger. The default discards nothing but logs at
// the handler's level via slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithArityThreshold overrides the largest arity the runtime's
// fixed-arity call path accepts. The default is the runtime's documented
// limit; change it only if the target runtime differs.
func WithArityThreshold(n int) Option {
	return func(g *Generator) {
		g.threshold = n
	}
}

// WithClosureTable sets the C symbol of the registered-closure table
// inverse stubs dispatch through.
func WithClosureTable(symbol string) Option {
	return func(g *Generator) {
		g.table = symbol
	}
}

// WithConcurrencyPolicy sets the runtime-lock policy for forward stubs.
func WithConcurrencyPolicy(p Policy) Option {
	return func(g *Generator) {
		g.policy = p
	}
}

// New creates a Generator, configured with options.
func New(options ...Option) (*Generator, error) {
	g := &Generator{
		logger:    slog.Default(),
		threshold: synth.DefaultArityThreshold,
		table:     DefaultClosureTable,
		indexes:   make(map[string]int),
	}
	for _, opt := range options {
		opt(g)
	}
	if g.threshold < 1 {
		return nil, fmt.Errorf("arity threshold must be at least 1, got %d", g.threshold)
	}
	if g.table == "" {
		return nil, fmt.Errorf("closure table symbol must not be empty")
	}
	return g, nil
}

// Unit is the buffered output of one synthesis request. Nothing is
// written to any shared sink until a Unit exists, so a failed synthesis
// produces zero output.
type Unit struct {
	// Name is the stub name.
	Name string
	// Code holds the function definition(s): the stub, plus the
	// bytecode adapter when the arity exceeds the threshold.
	Code string
	// Decl holds the matching declaration-only prototypes, for header
	// generation.
	Decl string
	// ClosureIndex is the registered-closure table slot for an inverse
	// stub, and -1 for a forward stub.
	ClosureIndex int
}

// ForwardStub synthesizes the stub making nativeSymbol callable from
// managed code, plus the bytecode adapter when the arity exceeds the
// threshold.
func (g *Generator) ForwardStub(nativeSymbol, stubName string, sig Signature) (*Unit, error) {
	ns := cir.NewNames()
	def, err := synth.Forward(ns, nativeSymbol, stubName, sig, g.policy)
	if err != nil {
		return nil, fmt.Errorf("forward stub %s for %s: %w", stubName, nativeSymbol, err)
	}

	var code, decl bytes.Buffer
	text, err := render.Def(def)
	if err != nil {
		return nil, fmt.Errorf("forward stub %s: %w", stubName, err)
	}
	code.WriteString(text)
	decl.WriteString(render.Decl(def))

	if len(sig.Params) > g.threshold {
		adapter, err := synth.ByteAdapter(ns, def)
		if err != nil {
			return nil, fmt.Errorf("bytecode adapter for %s: %w", stubName, err)
		}
		text, err := render.Def(adapter)
		if err != nil {
			return nil, fmt.Errorf("bytecode adapter for %s: %w", stubName, err)
		}
		code.WriteString("\n")
		code.WriteString(text)
		decl.WriteString(render.Decl(adapter))
	}

	g.logger.Debug("synthesized forward stub", "stub", stubName, "symbol", nativeSymbol, "arity", len(sig.Params))
	return &Unit{Name: stubName, Code: code.String(), Decl: decl.String(), ClosureIndex: -1}, nil
}

// InverseStub synthesizes the native-callable function dispatching into
// the managed closure registered under this stub's table slot. The slot
// is assigned once per distinct stub name, in assignment order; the
// linking collaborator must register closures under the same slots (see
// Indexes).
func (g *Generator) InverseStub(stubName string, sig Signature) (*Unit, error) {
	index := g.closureIndex(stubName)
	ns := cir.NewNames()
	def, err := synth.Inverse(ns, stubName, sig, g.table, index)
	if err != nil {
		return nil, fmt.Errorf("inverse stub %s: %w", stubName, err)
	}

	text, err := render.Def(def)
	if err != nil {
		return nil, fmt.Errorf("inverse stub %s: %w", stubName, err)
	}

	g.logger.Debug("synthesized inverse stub", "stub", stubName, "index", index, "arity", len(sig.Params))
	return &Unit{Name: stubName, Code: text, Decl: render.Decl(def), ClosureIndex: index}, nil
}

// ForwardDecl renders only the prototype of a forward stub, for header
// generation without emitting the definition.
func (g *Generator) ForwardDecl(nativeSymbol, stubName string, sig Signature) (string, error) {
	u, err := g.ForwardStub(nativeSymbol, stubName, sig)
	if err != nil {
		return "", err
	}
	return u.Decl, nil
}

func (g *Generator) closureIndex(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i, ok := g.indexes[name]; ok {
		return i
	}
	i := len(g.order)
	g.indexes[name] = i
	g.order = append(g.order, name)
	return i
}

// Indexes returns the closure-table slot assigned to each inverse stub
// name, in slot order. The table built at startup must register the
// managed closures under exactly these slots; this library cannot verify
// that contract.
func (g *Generator) Indexes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
