package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// VoltageSource holds V(Anode) - V(Cathode) at Voltage. Any finite voltage,
// including zero and negative values, is accepted.
type VoltageSource struct {
	TwoTerminal
	voltage float64
}

func NewVoltageSource(name string, voltage float64) *VoltageSource {
	v := &VoltageSource{voltage: voltage}
	v.init(v, name, "V", "Anode", "Cathode")
	return v
}

func (v *VoltageSource) Voltage() float64 { return v.voltage }

func (v *VoltageSource) SetVoltage(x float64) { v.setParam("Voltage", &v.voltage, x) }

func (v *VoltageSource) Analyze(b mna.Builder) error {
	if err := v.checkTerminals(); err != nil {
		return err
	}
	if err := v.finite("Voltage", v.voltage); err != nil {
		return err
	}
	a, c := v.nodes()
	b.StampVoltageSource(a, c, expr.Const(v.voltage))
	return nil
}

// Input is a voltage source driven by an external signal. Its value is the
// free symbol returned by Symbol, which a solver binds (0 when unbound).
type Input struct {
	TwoTerminal
}

func NewInput(name string) *Input {
	in := &Input{}
	in.init(in, name, "Vin", "Anode", "Cathode")
	return in
}

// InputSymbol is the symbol an Input named name drives its branch with.
func InputSymbol(name string) *expr.Symbol { return expr.Sym("Vin[" + name + "]") }

func (in *Input) Symbol() *expr.Symbol { return InputSymbol(in.Name()) }

func (in *Input) Analyze(b mna.Builder) error {
	if err := in.checkTerminals(); err != nil {
		return err
	}
	a, c := in.nodes()
	b.StampVoltageSource(a, c, in.Symbol())
	return nil
}
