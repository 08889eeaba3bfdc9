package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

type Diode struct {
	TwoTerminal
	is float64 // saturation current
	n  float64 // emission coefficient
}

func NewDiode(name string) *Diode {
	d := &Diode{is: 1e-14, n: 1.0}
	d.init(d, name, "D", "Anode", "Cathode")
	return d
}

func (d *Diode) IS() float64 { return d.is }
func (d *Diode) N() float64  { return d.n }

func (d *Diode) SetIS(v float64) { d.setParam("IS", &d.is, v) }
func (d *Diode) SetN(v float64)  { d.setParam("n", &d.n, v) }

func (d *Diode) Analyze(b mna.Builder) error {
	if err := d.checkTerminals(); err != nil {
		return err
	}
	if err := d.positive("IS", d.is); err != nil {
		return err
	}
	if err := d.positive("n", d.n); err != nil {
		return err
	}
	a, c := d.nodes()
	b.StampDiode(a, c, expr.Const(d.is), expr.Const(d.n))
	return nil
}
