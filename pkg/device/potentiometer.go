package device

import (
	"math"

	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// Wipe is clamped to this range when analyzed so neither leg shorts out.
const (
	MinWipe = 1e-3
	MaxWipe = 0.999
)

func clampWipe(w float64) float64 {
	return math.Max(MinWipe, math.Min(MaxWipe, w))
}

// Potentiometer splits Resistance between Anode-Wiper (1-wipe) and
// Wiper-Cathode (wipe).
type Potentiometer struct {
	BaseDevice
	resistance float64
	wipe       float64
}

func NewPotentiometer(name string, resistance float64) *Potentiometer {
	p := &Potentiometer{resistance: resistance, wipe: 0.5}
	p.init(p, name, "POT", "Anode", "Cathode", "Wiper")
	return p
}

func (p *Potentiometer) Anode() *Terminal   { return p.terminal(0) }
func (p *Potentiometer) Cathode() *Terminal { return p.terminal(1) }
func (p *Potentiometer) Wiper() *Terminal   { return p.terminal(2) }

func (p *Potentiometer) Resistance() float64 { return p.resistance }
func (p *Potentiometer) Wipe() float64       { return p.wipe }

func (p *Potentiometer) SetResistance(v float64) { p.setParam("Resistance", &p.resistance, v) }
func (p *Potentiometer) SetWipe(v float64)       { p.setParam("Wipe", &p.wipe, v) }

func (p *Potentiometer) Analyze(b mna.Builder) error {
	if err := p.checkTerminals(); err != nil {
		return err
	}
	if err := p.positive("Resistance", p.resistance); err != nil {
		return err
	}
	if err := p.finite("Wipe", p.wipe); err != nil {
		return err
	}
	w := clampWipe(p.wipe)
	a, c, wiper := p.Anode().Node(), p.Cathode().Node(), p.Wiper().Node()
	b.StampResistor(a, wiper, expr.Const(p.resistance*(1-w)))
	b.StampResistor(wiper, c, expr.Const(p.resistance*w))
	return nil
}

// VariableResistor is a two-terminal rheostat of Resistance*(1-wipe).
type VariableResistor struct {
	TwoTerminal
	resistance float64
	wipe       float64
}

func NewVariableResistor(name string, resistance float64) *VariableResistor {
	v := &VariableResistor{resistance: resistance, wipe: 0.5}
	v.init(v, name, "VR", "Anode", "Cathode")
	return v
}

func (v *VariableResistor) Resistance() float64 { return v.resistance }
func (v *VariableResistor) Wipe() float64       { return v.wipe }

func (v *VariableResistor) SetResistance(x float64) { v.setParam("Resistance", &v.resistance, x) }
func (v *VariableResistor) SetWipe(x float64)       { v.setParam("Wipe", &v.wipe, x) }

func (v *VariableResistor) Analyze(b mna.Builder) error {
	if err := v.checkTerminals(); err != nil {
		return err
	}
	if err := v.positive("Resistance", v.resistance); err != nil {
		return err
	}
	if err := v.finite("Wipe", v.wipe); err != nil {
		return err
	}
	a, c := v.nodes()
	b.StampResistor(a, c, expr.Const(v.resistance*(1-clampWipe(v.wipe))))
	return nil
}
