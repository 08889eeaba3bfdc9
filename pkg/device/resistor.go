package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// TwoTerminal is the common pinout of two-pin devices: Anode then Cathode.
type TwoTerminal struct {
	BaseDevice
}

func (d *TwoTerminal) Anode() *Terminal   { return d.terminal(0) }
func (d *TwoTerminal) Cathode() *Terminal { return d.terminal(1) }

// ConnectTo wires anode and cathode in one call.
func (d *TwoTerminal) ConnectTo(a, c mna.Node) error {
	if err := d.Anode().ConnectTo(a); err != nil {
		return err
	}
	return d.Cathode().ConnectTo(c)
}

func (d *TwoTerminal) nodes() (mna.Node, mna.Node) {
	return d.Anode().Node(), d.Cathode().Node()
}

type Resistor struct {
	TwoTerminal
	resistance float64
}

func NewResistor(name string, resistance float64) *Resistor {
	r := &Resistor{resistance: resistance}
	r.init(r, name, "R", "Anode", "Cathode")
	return r
}

func (r *Resistor) Resistance() float64 { return r.resistance }

func (r *Resistor) SetResistance(v float64) { r.setParam("Resistance", &r.resistance, v) }

func (r *Resistor) Analyze(b mna.Builder) error {
	if err := r.checkTerminals(); err != nil {
		return err
	}
	if err := r.positive("Resistance", r.resistance); err != nil {
		return err
	}
	a, c := r.nodes()
	b.StampResistor(a, c, expr.Const(r.resistance))
	return nil
}
