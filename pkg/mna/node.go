package mna

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/edp1096/tube-spice/pkg/expr"
)

// Node is a handle into an Arena. Ground is 0, named nodes are positive and
// device-internal nodes are negative.
type Node int64

const Ground Node = 0

func (n Node) IsGround() bool   { return n == 0 }
func (n Node) IsInternal() bool { return n < 0 }

func (n Node) String() string {
	switch {
	case n == 0:
		return "0"
	case n < 0:
		return fmt.Sprintf("~%d", -n)
	}
	return fmt.Sprintf("n%d", int64(n))
}

// V is the voltage of n relative to ground. Ground itself is the constant 0.
func V(n Node) expr.Expr {
	if n == Ground {
		return expr.Zero
	}
	return expr.Sym("V[" + n.String() + "]")
}

// BranchCurrent is the auxiliary current unknown of voltage-source branch k.
func BranchCurrent(k int) *expr.Symbol {
	return expr.Sym(fmt.Sprintf("I[%d]", k))
}

// Arena owns node identities for one circuit. Named nodes are created by the
// topology owner; internal nodes come from a lock-free counter so concurrent
// device analyses never receive the same handle.
type Arena struct {
	mu       sync.RWMutex
	names    []string
	byName   map[string]Node
	internal atomic.Int64
}

func NewArena() *Arena {
	return &Arena{byName: make(map[string]Node)}
}

func isGroundName(name string) bool {
	return name == "0" || strings.EqualFold(name, "gnd")
}

// Named returns the node called name, creating it on first use.
func (a *Arena) Named(name string) Node {
	if isGroundName(name) {
		return Ground
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.byName[name]; ok {
		return n
	}
	a.names = append(a.names, name)
	n := Node(len(a.names))
	a.byName[name] = n
	return n
}

func (a *Arena) Lookup(name string) (Node, bool) {
	if isGroundName(name) {
		return Ground, true
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.byName[name]
	return n, ok
}

func (a *Arena) NewInternal() Node {
	return Node(-a.internal.Add(1))
}

// Name returns the user-visible name of n. Internal nodes get a synthetic
// name that cannot collide with a netlist node.
func (a *Arena) Name(n Node) string {
	switch {
	case n == Ground:
		return "0"
	case n < 0:
		return fmt.Sprintf("_int%d", -n)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(n) > len(a.names) {
		return n.String()
	}
	return a.names[n-1]
}

// NamedNodes returns every named node in creation order.
func (a *Arena) NamedNodes() []Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	nodes := make([]Node, len(a.names))
	for i := range a.names {
		nodes[i] = Node(i + 1)
	}
	return nodes
}

// sortNodes orders named nodes first, ascending, then internal nodes in
// allocation order.
func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if (a < 0) != (b < 0) {
			return a > 0
		}
		if a < 0 {
			return a > b
		}
		return a < b
	})
}
