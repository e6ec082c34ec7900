package cir

import (
	"fmt"

	"github.com/podhmo/stubgen/ctypes"
)

// Names mints fresh variable names for one generation session. The
// counter is monotonic for the session's lifetime and names are never
// reused, so every binding introduced by normalization is unique within
// the compilation unit. Sessions are not safe for concurrent use; give
// each concurrently generated stub its own Names. Generated names are C
// function locals, so distinct stubs may reuse the same numbering without
// colliding.
type Names struct {
	n int
}

// NewNames returns a session counter starting at zero.
func NewNames() *Names {
	return &Names{}
}

// Fresh mints a new variable of the given type.
func (ns *Names) Fresh(t ctypes.Type) Var {
	ns.n++
	return Var{Name: fmt.Sprintf("x%d", ns.n), Type: t}
}
