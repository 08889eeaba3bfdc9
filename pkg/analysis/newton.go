package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/matrix"
	"github.com/edp1096/tube-spice/pkg/mna"
	"gonum.org/v1/gonum/floats"
)

const maxHalvings = 30

type jacobianEntry struct {
	col int
	d   expr.Expr
}

// compiled is an equation system ready for Newton iteration: the parametric
// residuals and their symbolic Jacobian, differentiated once.
type compiled struct {
	unknowns  []mna.Unknown
	residuals []expr.Expr
	jacobian  [][]jacobianEntry
	params    expr.Bindings
}

func compile(sys *mna.System, opts Options, logger *slog.Logger) *compiled {
	unknowns, residuals := sys.Parametric()

	col := make(map[string]int, len(unknowns))
	for i, u := range unknowns {
		col[u.Symbol.Name()] = i
	}

	c := &compiled{
		unknowns:  unknowns,
		residuals: residuals,
		jacobian:  make([][]jacobianEntry, len(residuals)),
		params: expr.Bindings{
			mna.Gmin.Name():        opts.Gmin,
			mna.SourceScale.Name(): 1,
		},
	}
	for name, v := range opts.Inputs {
		c.params[device.InputSymbol(name).Name()] = v
	}

	for i, r := range residuals {
		for _, sym := range expr.Symbols(r) {
			j, ok := col[sym.Name()]
			if !ok {
				if _, bound := c.params[sym.Name()]; !bound {
					logger.Debug("Unbound parameter set to zero", "symbol", sym.Name())
					c.params[sym.Name()] = 0
				}
				continue
			}
			if d := r.Diff(sym); !d.Equal(expr.Zero) {
				c.jacobian[i] = append(c.jacobian[i], jacobianEntry{col: j, d: d})
			}
		}
	}
	return c
}

func (c *compiled) size() int { return len(c.unknowns) }

func (c *compiled) bind(x []float64, gmin, scale float64) expr.Bindings {
	b := make(expr.Bindings, len(c.params)+len(x))
	for k, v := range c.params {
		b[k] = v
	}
	b[mna.Gmin.Name()] = gmin
	b[mna.SourceScale.Name()] = scale
	for i, u := range c.unknowns {
		b[u.Symbol.Name()] = x[i]
	}
	return b
}

func (c *compiled) residual(b expr.Bindings) ([]float64, error) {
	f := make([]float64, len(c.residuals))
	for i, r := range c.residuals {
		v, err := r.Eval(b)
		if err != nil {
			return nil, fmt.Errorf("residual %s: %w", c.unknowns[i].Symbol.Name(), err)
		}
		f[i] = v
	}
	return f, nil
}

// load writes J and -f at b into m.
func (c *compiled) load(m matrix.Matrix, b expr.Bindings, f []float64) error {
	for i, row := range c.jacobian {
		for _, e := range row {
			v, err := e.d.Eval(b)
			if err != nil {
				return fmt.Errorf("jacobian d%s/d%s: %w", c.unknowns[i].Symbol.Name(), c.unknowns[e.col].Symbol.Name(), err)
			}
			m.AddElement(i+1, e.col+1, v)
		}
		m.AddRHS(i+1, -f[i])
	}
	return nil
}

func (c *compiled) labels() []string {
	labels := make([]string, len(c.unknowns))
	for i, u := range c.unknowns {
		labels[i] = u.Symbol.Name()
	}
	return labels
}

// newtonStep solves J*dx = -f at b.
func (c *compiled) newtonStep(b expr.Bindings, f []float64, logger *slog.Logger) ([]float64, error) {
	m, err := matrix.NewMatrix(c.size(), logger)
	if err != nil {
		return nil, err
	}
	defer m.Destroy()
	m.SetupElements()

	if err := c.load(m, b, f); err != nil {
		return nil, err
	}

	var system strings.Builder
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		m.PrintSystem(&system, c.labels())
	}
	if err := m.Solve(); err != nil {
		if system.Len() > 0 {
			logger.Debug("Singular Newton step", "system", system.String())
		}
		return nil, err
	}
	return append([]float64(nil), m.Solution()[1:c.size()+1]...), nil
}

type newton struct {
	sys    *compiled
	opts   Options
	logger *slog.Logger
}

// solve runs damped Newton-Raphson from x0 with the given shunt conductance
// and source scale. It returns the solution and the iterations used.
func (n *newton) solve(x0 []float64, gmin, scale float64) ([]float64, int, error) {
	x := append([]float64(nil), x0...)
	f, err := n.sys.residual(n.sys.bind(x, gmin, scale))
	if err != nil {
		return nil, 0, fmt.Errorf("initial point: %w", err)
	}

	for iter := 1; iter <= n.opts.MaxIter; iter++ {
		b := n.sys.bind(x, gmin, scale)
		dx, err := n.sys.newtonStep(b, f, n.logger)
		if err != nil {
			return nil, iter, err
		}
		if n.converged(x, dx) {
			floats.Add(x, dx)
			return x, iter, nil
		}

		t := n.stepLimit(dx)
		norm0 := floats.Norm(f, 2)
		xn := make([]float64, len(x))
		var fn []float64
		for k := 0; k < maxHalvings; k++ {
			floats.AddScaledTo(xn, x, t, dx)
			fn, err = n.sys.residual(n.sys.bind(xn, gmin, scale))
			if err == nil && floats.Norm(fn, 2) <= (1-1e-4*t)*norm0 {
				break
			}
			t /= 2
		}
		if fn == nil || err != nil {
			return nil, iter, fmt.Errorf("line search: %w", err)
		}

		n.logger.Debug("Newton iteration", "iter", iter, "damping", t, "residual", floats.Norm(fn, 2))
		x, f = xn, fn
	}
	return nil, n.opts.MaxIter, fmt.Errorf("failed to converge in %d iterations", n.opts.MaxIter)
}

func (n *newton) converged(x, dx []float64) bool {
	for i, u := range n.sys.unknowns {
		tol := n.opts.VnTol
		if u.IsBranch() {
			tol = n.opts.AbsTol
		}
		if math.Abs(dx[i]) > n.opts.RelTol*math.Abs(x[i]+dx[i])+tol {
			return false
		}
	}
	return true
}

// stepLimit returns the largest fraction of dx whose node-voltage change
// stays within MaxStep.
func (n *newton) stepLimit(dx []float64) float64 {
	if n.opts.MaxStep <= 0 {
		return 1
	}
	largest := 0.0
	for i, u := range n.sys.unknowns {
		if !u.IsBranch() {
			largest = math.Max(largest, math.Abs(dx[i]))
		}
	}
	if largest <= n.opts.MaxStep {
		return 1
	}
	return n.opts.MaxStep / largest
}
