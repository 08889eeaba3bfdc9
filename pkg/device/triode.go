package device

import (
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

// Kurt Blum's 12AX7 defaults.
const (
	DefaultMu  = 96.20
	DefaultEx  = 1.437
	DefaultKg1 = 613.4
	DefaultKp  = 740.3
	DefaultKvb = 1672.0
	DefaultRgi = 2000.0
)

// Values of the fixed elements inside the triode macro model.
const (
	triodeShunt = 1e9  // across P-K and the E1 probe pair
	gridIS      = 1e-9 // grid-current diode saturation current
)

// Triode is a 12AX7 after Kurt Blum's SPICE macro model. The plate current
// follows a Koren-style law driven by E1; grid current is a diode behind Rgi.
type Triode struct {
	BaseDevice
	mu, ex, kg1, kp, kvb, rgi float64
}

func NewTriode(name string) *Triode {
	t := &Triode{
		mu:  DefaultMu,
		ex:  DefaultEx,
		kg1: DefaultKg1,
		kp:  DefaultKp,
		kvb: DefaultKvb,
		rgi: DefaultRgi,
	}
	t.init(t, name, "12AX7", "P", "G", "K")
	return t
}

func (t *Triode) Plate() *Terminal   { return t.terminal(0) }
func (t *Triode) Grid() *Terminal    { return t.terminal(1) }
func (t *Triode) Cathode() *Terminal { return t.terminal(2) }

func (t *Triode) Mu() float64  { return t.mu }
func (t *Triode) Ex() float64  { return t.ex }
func (t *Triode) Kg1() float64 { return t.kg1 }
func (t *Triode) Kp() float64  { return t.kp }
func (t *Triode) Kvb() float64 { return t.kvb }
func (t *Triode) Rgi() float64 { return t.rgi }

func (t *Triode) SetMu(v float64)  { t.setParam("Mu", &t.mu, v) }
func (t *Triode) SetEx(v float64)  { t.setParam("Ex", &t.ex, v) }
func (t *Triode) SetKg1(v float64) { t.setParam("Kg1", &t.kg1, v) }
func (t *Triode) SetKp(v float64)  { t.setParam("Kp", &t.kp, v) }
func (t *Triode) SetKvb(v float64) { t.setParam("Kvb", &t.kvb, v) }
func (t *Triode) SetRgi(v float64) { t.setParam("Rgi", &t.rgi, v) }

// ConnectTo wires plate, grid and cathode in one call.
func (t *Triode) ConnectTo(p, g, k mna.Node) error {
	for i, n := range [3]mna.Node{p, g, k} {
		if err := t.terminal(i).ConnectTo(n); err != nil {
			return err
		}
	}
	return nil
}

func (t *Triode) validate() error {
	params := []struct {
		name string
		v    float64
	}{
		{"Mu", t.mu}, {"Ex", t.ex}, {"Kg1", t.kg1},
		{"Kp", t.kp}, {"Kvb", t.kvb}, {"Rgi", t.rgi},
	}
	for _, p := range params {
		if err := t.positive(p.name, p.v); err != nil {
			return err
		}
	}
	return nil
}

// E1 is the model's effective drive voltage
//
//	ln(1 + exp(Kp*(1/mu + Vgk/sqrt(Kvb + Vpk^2)))) * Vpk / Kp
func (t *Triode) E1(vpk, vgk expr.Expr) expr.Expr {
	kp := expr.Const(t.kp)
	inner := expr.Add(
		expr.Const(1/t.mu),
		expr.Mul(vgk, expr.Pow(expr.Add(expr.Const(t.kvb), expr.Square(vpk)), expr.Const(-0.5))),
	)
	return expr.Div(expr.Mul(softplus(expr.Mul(kp, inner)), vpk), kp)
}

// softplus is ln(1 + exp(u)) written as (u + |u|)/2 + ln(1 + exp(-|u|)),
// which stays finite for any finite u.
func softplus(u expr.Expr) expr.Expr {
	abs := expr.Abs(u)
	return expr.Add(
		expr.Mul(expr.Const(0.5), expr.Add(u, abs)),
		expr.Ln(expr.Add(expr.One, expr.Exp(expr.Neg(abs)))),
	)
}

// PlateCurrent is 0.5*(sgnpow(E1,Ex) + |E1|^Ex)/Kg1, which is
// E1^Ex/Kg1 for positive E1 and zero otherwise.
func (t *Triode) PlateCurrent(e1 expr.Expr) expr.Expr {
	ex := expr.Const(t.ex)
	sum := expr.Add(expr.SignedPow(e1, ex), expr.AbsPow(e1, ex))
	return expr.Div(expr.Mul(expr.Const(0.5), sum), expr.Const(t.kg1))
}

func (t *Triode) Analyze(b mna.Builder) error {
	if err := t.checkTerminals(); err != nil {
		return err
	}
	if err := t.validate(); err != nil {
		return err
	}

	p, g, k := t.Plate().Node(), t.Grid().Node(), t.Cathode().Node()
	n0 := b.NewInternalNode()
	n5 := b.NewInternalNode()
	n7 := b.NewInternalNode()

	vpk := expr.Sub(t.Plate().V(), t.Cathode().V())
	vgk := expr.Sub(t.Grid().V(), t.Cathode().V())
	e1 := t.E1(vpk, vgk)

	b.StampResistor(n7, n0, expr.Const(triodeShunt))
	b.StampVoltageSource(n7, n0, e1)

	b.StampResistor(p, k, expr.Const(triodeShunt))
	b.StampCurrentSource(p, k, t.PlateCurrent(e1))

	b.StampResistor(g, n5, expr.Const(t.rgi))
	b.StampDiode(n5, k, expr.Const(gridIS), expr.One)
	return nil
}
