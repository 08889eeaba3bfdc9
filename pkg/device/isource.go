package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// CurrentSource forces Current to flow from Anode to Cathode through the
// device.
type CurrentSource struct {
	TwoTerminal
	current float64
}

func NewCurrentSource(name string, current float64) *CurrentSource {
	i := &CurrentSource{current: current}
	i.init(i, name, "I", "Anode", "Cathode")
	return i
}

func (i *CurrentSource) Current() float64 { return i.current }

func (i *CurrentSource) SetCurrent(v float64) { i.setParam("Current", &i.current, v) }

func (i *CurrentSource) Analyze(b mna.Builder) error {
	if err := i.checkTerminals(); err != nil {
		return err
	}
	if err := i.finite("Current", i.current); err != nil {
		return err
	}
	a, c := i.nodes()
	b.StampCurrentSource(a, c, expr.Const(i.current))
	return nil
}
