package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// Capacitor is recorded for a transient consumer; at DC it is an open
// circuit.
type Capacitor struct {
	TwoTerminal
	capacitance float64
}

func NewCapacitor(name string, capacitance float64) *Capacitor {
	c := &Capacitor{capacitance: capacitance}
	c.init(c, name, "C", "Anode", "Cathode")
	return c
}

func (c *Capacitor) Capacitance() float64 { return c.capacitance }

func (c *Capacitor) SetCapacitance(v float64) { c.setParam("Capacitance", &c.capacitance, v) }

func (c *Capacitor) Analyze(b mna.Builder) error {
	if err := c.checkTerminals(); err != nil {
		return err
	}
	if err := c.positive("Capacitance", c.capacitance); err != nil {
		return err
	}
	a, k := c.nodes()
	b.StampCapacitor(a, k, expr.Const(c.capacitance))
	return nil
}
