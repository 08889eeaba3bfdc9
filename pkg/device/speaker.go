package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// Speaker is the output load. Electrically it is its nominal impedance; the
// voltage across it is the circuit output.
type Speaker struct {
	TwoTerminal
	impedance float64
}

func NewSpeaker(name string) *Speaker {
	s := &Speaker{impedance: 4}
	s.init(s, name, "SPKR", "Anode", "Cathode")
	return s
}

func (s *Speaker) Impedance() float64 { return s.impedance }

func (s *Speaker) SetImpedance(v float64) { s.setParam("Impedance", &s.impedance, v) }

// Output is the voltage across the speaker.
func (s *Speaker) Output() expr.Expr { return expr.Sub(s.Anode().V(), s.Cathode().V()) }

func (s *Speaker) Analyze(b mna.Builder) error {
	if err := s.checkTerminals(); err != nil {
		return err
	}
	if err := s.positive("Impedance", s.impedance); err != nil {
		return err
	}
	a, c := s.nodes()
	b.StampResistor(a, c, expr.Const(s.impedance))
	return nil
}
