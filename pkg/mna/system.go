package mna

import (
	"fmt"
	"io"
	"sync"

	"github.com/edp1096/tube-spice/pkg/expr"
)

// System is the flat constraint list of a whole circuit. Commit is the only
// mutating operation and is safe to call from several goroutines.
type System struct {
	mu       sync.Mutex
	arena    *Arena
	stamps   []Stamp
	internal []Node
	branches int
}

func NewSystem(arena *Arena) *System {
	return &System{arena: arena}
}

func (s *System) Arena() *Arena { return s.arena }

// Recorder returns a fresh per-device builder allocating from this system's
// arena.
func (s *System) Recorder(owner string) *Recorder {
	return NewRecorder(owner, s.arena)
}

// Commit appends the recorder's stamps, numbering voltage-source branches in
// commit order.
func (s *System) Commit(r *Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range r.stamps {
		if st.Kind == StampVoltageSource {
			st.Branch = s.branches
			s.branches++
		}
		s.stamps = append(s.stamps, st)
	}
	s.internal = append(s.internal, r.internal...)
}

func (s *System) Stamps() []Stamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Stamp(nil), s.stamps...)
}

func (s *System) Branches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branches
}

// Nodes returns every non-ground node referenced by a stamp: named nodes
// ascending, then internal nodes in allocation order.
func (s *System) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[Node]bool)
	var nodes []Node
	for _, st := range s.stamps {
		for _, n := range [2]Node{st.A, st.B} {
			if n != Ground && !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
	}
	sortNodes(nodes)
	return nodes
}

// Unknown is one entry of the solution vector: a node voltage or a branch
// current.
type Unknown struct {
	Symbol *expr.Symbol
	Node   Node // Ground for branch currents
	Branch int  // -1 for node voltages
}

func (u Unknown) IsBranch() bool { return u.Branch >= 0 }

// Unknowns lists node voltages (in Nodes order) followed by branch currents.
func (s *System) Unknowns() []Unknown {
	nodes := s.Nodes()
	branches := s.Branches()

	out := make([]Unknown, 0, len(nodes)+branches)
	for _, n := range nodes {
		out = append(out, Unknown{Symbol: V(n).(*expr.Symbol), Node: n, Branch: -1})
	}
	for k := 0; k < branches; k++ {
		out = append(out, Unknown{Symbol: BranchCurrent(k), Branch: k})
	}
	return out
}

// Symbols the parametric residuals are written in. A solver binds Gmin to
// the shunt conductance from every node to ground and SourceScale to the
// fraction of every independent source to apply.
var (
	Gmin        = expr.Sym("gmin")
	SourceScale = expr.Sym("srcscale")
)

// Equations returns one residual per unknown, in Unknowns order. Node rows
// are KCL sums of the currents leaving the node plus gmin*V(node); branch
// rows are the voltage-source constraints. The system is solved when every
// residual is zero.
func (s *System) Equations(gmin float64) ([]Unknown, []expr.Expr) {
	return s.equations(expr.Const(gmin), nil)
}

// Parametric is Equations with gmin left as the Gmin symbol and every
// independent source value multiplied by SourceScale.
func (s *System) Parametric() ([]Unknown, []expr.Expr) {
	return s.equations(Gmin, SourceScale)
}

func (s *System) equations(gmin, scale expr.Expr) ([]Unknown, []expr.Expr) {
	unknowns := s.Unknowns()
	stamps := s.Stamps()

	row := make(map[Node]int, len(unknowns))
	solved := make(map[string]bool, len(unknowns))
	for i, u := range unknowns {
		solved[u.Symbol.Name()] = true
		if !u.IsBranch() {
			row[u.Node] = i
		}
	}

	terms := make([][]expr.Expr, len(unknowns))
	branchRow := len(row)
	for _, st := range stamps {
		if scale != nil && isIndependentSource(st, solved) {
			st.Value = expr.Mul(scale, st.Value)
		}
		i := st.Current()
		if st.A != Ground {
			terms[row[st.A]] = append(terms[row[st.A]], i)
		}
		if st.B != Ground {
			terms[row[st.B]] = append(terms[row[st.B]], expr.Neg(i))
		}
		if c := st.Constraint(); c != nil {
			terms[branchRow+st.Branch] = append(terms[branchRow+st.Branch], c)
		}
	}
	for n, r := range row {
		terms[r] = append(terms[r], expr.Mul(gmin, V(n)))
	}

	residuals := make([]expr.Expr, len(unknowns))
	for i := range terms {
		residuals[i] = expr.Add(terms[i]...)
	}
	return unknowns, residuals
}

// isIndependentSource reports whether st is a source whose value does not
// depend on any unknown of the system.
func isIndependentSource(st Stamp, unknowns map[string]bool) bool {
	if st.Kind != StampVoltageSource && st.Kind != StampCurrentSource {
		return false
	}
	for _, sym := range expr.Symbols(st.Value) {
		if unknowns[sym.Name()] {
			return false
		}
	}
	return true
}

// Dump writes the stamp list and the residual equations in a readable form.
func (s *System) Dump(w io.Writer) error {
	stamps := s.Stamps()

	if _, err := fmt.Fprintf(w, "* %d stamps, %d nodes, %d branches\n", len(stamps), len(s.Nodes()), s.Branches()); err != nil {
		return err
	}
	for _, st := range stamps {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", st.Owner, s.describe(st)); err != nil {
			return err
		}
	}

	unknowns, residuals := s.Equations(0)
	for i, u := range unknowns {
		label := u.Symbol.Name()
		if !u.IsBranch() {
			label = fmt.Sprintf("KCL(%s)", s.arena.Name(u.Node))
		}
		if _, err := fmt.Fprintf(w, "%s: 0 = %s\n", label, residuals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) describe(st Stamp) string {
	a, b := s.arena.Name(st.A), s.arena.Name(st.B)
	switch st.Kind {
	case StampDiode:
		return fmt.Sprintf("D %s %s Is=%s n=%s", a, b, st.Value, st.Emission)
	case StampVoltageSource:
		return fmt.Sprintf("V%d %s %s %s", st.Branch, a, b, st.Value)
	}
	return fmt.Sprintf("%s %s %s %s", st.Kind, a, b, st.Value)
}

// Bind maps a solution vector laid out in unknowns order to expression
// bindings.
func Bind(unknowns []Unknown, x []float64) expr.Bindings {
	b := make(expr.Bindings, len(unknowns))
	for i, u := range unknowns {
		b[u.Symbol.Name()] = x[i]
	}
	return b
}
