package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/mna"
)

type OperatingPoint struct {
	BaseAnalysis
	// Guess seeds Newton iteration when its length matches the unknown
	// count; otherwise every unknown starts at zero.
	Guess    []float64
	solution []float64
	system   *mna.System
}

func NewOP() *OperatingPoint {
	return &OperatingPoint{BaseAnalysis: *NewBaseAnalysis()}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return errors.New("circuit not set")
	}
	op.Circuit = ckt
	return nil
}

func (op *OperatingPoint) Execute(ctx context.Context) error {
	if op.Circuit == nil {
		return errors.New("circuit not set")
	}
	sys, err := op.Circuit.Analyze()
	if err != nil {
		return err
	}

	x, err := op.solve(ctx, sys)
	if err != nil {
		return fmt.Errorf("operating point of %s: %w", op.Circuit.Name(), err)
	}
	op.system = sys
	op.solution = x
	op.storeResults(sys, x)
	return nil
}

func (op *OperatingPoint) System() *mna.System { return op.system }

// Solution is the raw solution vector in the order of the system's unknowns.
func (op *OperatingPoint) Solution() []float64 { return op.solution }

// Value returns a single stored result such as "V(out)".
func (op *OperatingPoint) Value(key string) (float64, bool) {
	v, ok := op.results[key]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[len(v)-1], true
}

func (op *OperatingPoint) solve(ctx context.Context, sys *mna.System) ([]float64, error) {
	log := op.logger()
	opts := op.Options
	c := compile(sys, opts, log)
	nr := &newton{sys: c, opts: opts, logger: log}

	x0 := make([]float64, c.size())
	if len(op.Guess) == c.size() {
		copy(x0, op.Guess)
	}

	x, iters, err := nr.solve(x0, opts.Gmin, 1)
	if err == nil {
		log.Debug("Operating point converged", "iterations", iters)
		return x, nil
	}
	log.Info("Direct Newton failed, trying gmin stepping", "error", err)

	x, err = op.gminStepping(ctx, nr, x0)
	if err == nil {
		return x, nil
	}
	log.Info("Gmin stepping failed, trying source stepping", "error", err)

	return op.sourceStepping(ctx, nr)
}

func (op *OperatingPoint) gminStepping(ctx context.Context, nr *newton, x0 []float64) ([]float64, error) {
	x := x0
	floor := nr.opts.Gmin
	for gmin := op.Options.GminStart; ; gmin /= 10 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := math.Max(gmin, floor)
		next, _, err := nr.solve(x, g, 1)
		if err != nil {
			return nil, fmt.Errorf("gmin stepping failed at %g: %w", g, err)
		}
		x = next
		if g == floor {
			return x, nil
		}
	}
}

func (op *OperatingPoint) sourceStepping(ctx context.Context, nr *newton) ([]float64, error) {
	steps := max(op.Options.SourceSteps, 1)
	x := make([]float64, nr.sys.size())
	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scale := float64(i) / float64(steps)
		next, _, err := nr.solve(x, nr.opts.Gmin, scale)
		if err != nil {
			return nil, fmt.Errorf("source stepping failed at %g: %w", scale, err)
		}
		x = next
	}
	return x, nil
}

// storeResults records V(node) for every named node and one current per
// device: I(name) for two-terminal devices (voltage-source branch current
// for sources), Ip(name) and Ig(name) for triodes.
func (op *OperatingPoint) storeResults(sys *mna.System, x []float64) {
	op.appendResult(Point(op.Circuit, sys, x, op.Options.Inputs))
}

// Point evaluates the named results of solution x of sys.
func Point(ckt *circuit.Circuit, sys *mna.System, x []float64, inputs map[string]float64) map[string]float64 {
	unknowns := sys.Unknowns()
	b := mna.Bind(unknowns, x)
	b[mna.Gmin.Name()] = 0
	b[mna.SourceScale.Name()] = 1
	for name, v := range inputs {
		b[device.InputSymbol(name).Name()] = v
	}
	for _, d := range ckt.Devices() {
		if in, ok := d.(*device.Input); ok {
			if _, bound := b[in.Symbol().Name()]; !bound {
				b[in.Symbol().Name()] = 0
			}
		}
	}

	point := make(map[string]float64)
	for i, u := range unknowns {
		if !u.IsBranch() && !u.Node.IsInternal() {
			point[fmt.Sprintf("V(%s)", ckt.NodeName(u.Node))] = x[i]
		}
	}

	byOwner := make(map[string][]mna.Stamp)
	for _, st := range sys.Stamps() {
		byOwner[st.Owner] = append(byOwner[st.Owner], st)
	}
	current := func(st mna.Stamp) (float64, bool) {
		v, err := st.Current().Eval(b)
		return v, err == nil
	}

	for _, d := range ckt.Devices() {
		stamps := byOwner[d.Name()]
		if len(stamps) == 0 {
			continue
		}
		switch d.(type) {
		case *device.Triode:
			for _, st := range stamps {
				key := ""
				switch st.Kind {
				case mna.StampCurrentSource:
					key = "Ip"
				case mna.StampDiode:
					key = "Ig"
				}
				if v, ok := current(st); ok && key != "" {
					point[fmt.Sprintf("%s(%s)", key, d.Name())] = v
				}
			}
		default:
			// first stamp: the anode leg of a potentiometer
			if v, ok := current(stamps[0]); ok {
				point[fmt.Sprintf("I(%s)", d.Name())] = v
			}
		}
	}
	return point
}
