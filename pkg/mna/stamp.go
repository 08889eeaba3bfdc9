package mna

import (
	"fmt"

	"github.com/edp1096/tube-spice/internal/consts"
	"github.com/edp1096/tube-spice/pkg/expr"
)

type StampKind uint8

const (
	StampResistor StampKind = iota
	StampCapacitor
	StampVoltageSource
	StampCurrentSource
	StampDiode
)

func (k StampKind) String() string {
	switch k {
	case StampResistor:
		return "R"
	case StampCapacitor:
		return "C"
	case StampVoltageSource:
		return "V"
	case StampCurrentSource:
		return "I"
	case StampDiode:
		return "D"
	}
	return "?"
}

// Stamp is one two-terminal constraint between A and B.
type Stamp struct {
	Kind     StampKind
	A, B     Node
	Value    expr.Expr // R, C, E, I or Is depending on Kind
	Emission expr.Expr // diode emission coefficient n
	Branch   int       // voltage-source branch index, -1 otherwise
	Owner    string
}

// Vt is the thermal voltage the diode stamp uses.
var Vt = consts.ThermalVoltage(consts.TNOM)

// Current is the DC current flowing from A to B through the stamp.
// A capacitor carries no DC current; a voltage source carries its branch
// unknown.
func (s Stamp) Current() expr.Expr {
	vab := expr.Sub(V(s.A), V(s.B))
	switch s.Kind {
	case StampResistor:
		return expr.Div(vab, s.Value)
	case StampCurrentSource:
		return s.Value
	case StampDiode:
		// Is*(exp(Vab/(n*Vt)) - 1)
		arg := expr.Div(vab, expr.Mul(s.Emission, expr.Const(Vt)))
		return expr.Mul(s.Value, expr.Sub(expr.Exp(arg), expr.One))
	case StampVoltageSource:
		return BranchCurrent(s.Branch)
	}
	return expr.Zero
}

// Constraint is the extra branch equation V(A) - V(B) - E = 0 of a voltage
// source, nil for every other kind.
func (s Stamp) Constraint() expr.Expr {
	if s.Kind != StampVoltageSource {
		return nil
	}
	return expr.Sub(expr.Sub(V(s.A), V(s.B)), s.Value)
}

func (s Stamp) String() string {
	switch s.Kind {
	case StampDiode:
		return fmt.Sprintf("%s %s %s Is=%s n=%s", s.Kind, s.A, s.B, s.Value, s.Emission)
	case StampVoltageSource:
		return fmt.Sprintf("%s%d %s %s %s", s.Kind, s.Branch, s.A, s.B, s.Value)
	}
	return fmt.Sprintf("%s %s %s %s", s.Kind, s.A, s.B, s.Value)
}

// Builder is the surface a device analyzes against. Every Stamp* call
// appends exactly one constraint.
type Builder interface {
	NewInternalNode() Node
	StampResistor(a, b Node, r expr.Expr)
	StampCapacitor(a, b Node, c expr.Expr)
	StampVoltageSource(a, b Node, e expr.Expr)
	StampCurrentSource(a, b Node, i expr.Expr)
	StampDiode(a, b Node, is, n expr.Expr)
}

// Recorder collects the contribution of a single device. It is not safe for
// concurrent use; each device analysis gets its own.
type Recorder struct {
	owner    string
	arena    *Arena
	stamps   []Stamp
	internal []Node
}

var _ Builder = (*Recorder)(nil)

func NewRecorder(owner string, arena *Arena) *Recorder {
	return &Recorder{owner: owner, arena: arena}
}

func (r *Recorder) Owner() string    { return r.owner }
func (r *Recorder) Stamps() []Stamp  { return r.stamps }
func (r *Recorder) Internal() []Node { return r.internal }

func (r *Recorder) NewInternalNode() Node {
	n := r.arena.NewInternal()
	r.internal = append(r.internal, n)
	return n
}

func (r *Recorder) add(kind StampKind, a, b Node, v expr.Expr) {
	r.stamps = append(r.stamps, Stamp{Kind: kind, A: a, B: b, Value: v, Branch: -1, Owner: r.owner})
}

func (r *Recorder) StampResistor(a, b Node, res expr.Expr) { r.add(StampResistor, a, b, res) }

func (r *Recorder) StampCapacitor(a, b Node, c expr.Expr) { r.add(StampCapacitor, a, b, c) }

func (r *Recorder) StampVoltageSource(a, b Node, e expr.Expr) { r.add(StampVoltageSource, a, b, e) }

func (r *Recorder) StampCurrentSource(a, b Node, i expr.Expr) { r.add(StampCurrentSource, a, b, i) }

func (r *Recorder) StampDiode(a, b Node, is, n expr.Expr) {
	r.add(StampDiode, a, b, is)
	r.stamps[len(r.stamps)-1].Emission = n
}

// Unreferenced returns the internal nodes this recorder allocated that none
// of its own stamps touch. Such a node would leave the system singular.
func (r *Recorder) Unreferenced() []Node {
	used := make(map[Node]bool, 2*len(r.stamps))
	for _, s := range r.stamps {
		used[s.A] = true
		used[s.B] = true
	}
	var out []Node
	for _, n := range r.internal {
		if !used[n] {
			out = append(out, n)
		}
	}
	return out
}
