package stubgen

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/podhmo/stubgen/manifest"
)

// Generate synthesizes every stub a manifest names. Stubs are generated
// concurrently, each into its own buffered Unit, and the result slice is
// in manifest order, so output is deterministic regardless of
// scheduling. On any failure the whole batch fails and nothing is
// returned; callers writing to a shared stream therefore never see
// partial output.
func (g *Generator) Generate(ctx context.Context, m *manifest.Manifest) ([]*Unit, error) {
	// Closure-table slots must not depend on goroutine scheduling, so
	// assign them up front, in manifest order.
	for _, fn := range m.Functions {
		if fn.IsCallback() {
			g.closureIndex(fn.StubName(m.Prefix))
		}
	}

	units := make([]*Unit, len(m.Functions))
	eg, ctx := errgroup.WithContext(ctx)
	for i, fn := range m.Functions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sig, err := m.Signature(fn)
			if err != nil {
				return err
			}
			var u *Unit
			if fn.IsCallback() {
				u, err = g.InverseStub(fn.StubName(m.Prefix), sig)
			} else {
				u, err = g.ForwardStub(fn.Name, fn.StubName(m.Prefix), sig)
			}
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

// WriteCode writes the preamble, the closure-table definition if any
// inverse stub was generated, and every unit's definitions.
func (g *Generator) WriteCode(w io.Writer, units []*Unit) error {
	if _, err := io.WriteString(w, Preamble); err != nil {
		return fmt.Errorf("write preamble: %w", err)
	}
	if n := len(g.Indexes()); n > 0 {
		if _, err := fmt.Fprintf(w, "value %s[%d];\n\n", g.table, n); err != nil {
			return fmt.Errorf("write closure table: %w", err)
		}
	}
	for i, u := range units {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return fmt.Errorf("write stub %s: %w", u.Name, err)
			}
		}
		if _, err := io.WriteString(w, u.Code); err != nil {
			return fmt.Errorf("write stub %s: %w", u.Name, err)
		}
	}
	return nil
}

// WriteDecls writes the declaration-only prototypes for every unit, for
// header generation.
func (g *Generator) WriteDecls(w io.Writer, units []*Unit) error {
	if _, err := io.WriteString(w, Preamble); err != nil {
		return fmt.Errorf("write preamble: %w", err)
	}
	for _, u := range units {
		if _, err := io.WriteString(w, u.Decl); err != nil {
			return fmt.Errorf("write prototype for %s: %w", u.Name, err)
		}
	}
	return nil
}
