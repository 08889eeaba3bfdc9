package device

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allDevices() []Device {
	return []Device{
		NewResistor("R1", 1e3),
		NewCapacitor("C1", 1e-6),
		NewVoltageSource("V1", 10),
		NewCurrentSource("I1", 1e-3),
		NewDiode("D1"),
		NewInput("IN"),
		NewSpeaker("SPK"),
		NewPotentiometer("POT", 1e6),
		NewVariableResistor("VR", 250e3),
		NewTriode("U1"),
	}
}

// wire connects every terminal of d to a fresh named node.
func wire(t *testing.T, a *mna.Arena, d Device) {
	t.Helper()
	for _, term := range d.Terminals() {
		require.NoError(t, term.ConnectTo(a.Named(d.Name()+"."+term.Name())))
	}
}

func TestTerminalArityIsFixed(t *testing.T) {
	want := map[string]int{
		"R": 2, "C": 2, "V": 2, "I": 2, "D": 2, "Vin": 2, "SPKR": 2,
		"POT": 3, "VR": 2, "12AX7": 3,
	}
	for _, d := range allDevices() {
		n := len(d.Terminals())
		assert.Equal(t, want[d.Type()], n, d.Type())

		a := mna.NewArena()
		wire(t, a, d)
		require.NoError(t, d.Analyze(mna.NewRecorder(d.Name(), a)))
		assert.Len(t, d.Terminals(), n)
	}
}

func TestTerminalWiredTwice(t *testing.T) {
	a := mna.NewArena()
	r := NewResistor("R1", 100)
	require.NoError(t, r.Anode().ConnectTo(a.Named("x")))

	err := r.Anode().ConnectTo(a.Named("y"))
	var topo *TopologyError
	require.ErrorAs(t, err, &topo)
	assert.Equal(t, "R1", topo.Device)
	assert.Equal(t, "Anode", topo.Terminal)
	assert.Equal(t, a.Named("x"), r.Anode().Node())
}

func TestAnalyzeUnwiredTerminal(t *testing.T) {
	tr := NewTriode("U1")
	a := mna.NewArena()
	require.NoError(t, tr.Plate().ConnectTo(a.Named("p")))
	require.NoError(t, tr.Cathode().ConnectTo(mna.Ground))

	err := tr.Analyze(mna.NewRecorder("U1", a))
	var topo *TopologyError
	require.ErrorAs(t, err, &topo)
	assert.Equal(t, "G", topo.Terminal)
}

func TestTriodeE1(t *testing.T) {
	tr := NewTriode("U1")
	vpk, vgk := expr.Sym("vpk"), expr.Sym("vgk")
	e1 := tr.E1(vpk, vgk)

	ref := func(vp, vg float64) float64 {
		arg := DefaultKp * (1/DefaultMu + vg/math.Sqrt(DefaultKvb+vp*vp))
		return math.Log(1+math.Exp(arg)) * vp / DefaultKp
	}

	got, err := e1.Eval(expr.Bindings{"vpk": 300, "vgk": -2})
	require.NoError(t, err)
	assert.InDelta(t, ref(300, -2), got, 1e-12)
	assert.InDelta(t, 1.16, got, 0.01)

	for _, vp := range []float64{-50, 0, 1, 100, 400} {
		for _, vg := range []float64{-10, -1, 0, 0.5} {
			v, err := e1.Eval(expr.Bindings{"vpk": vp, "vgk": vg})
			require.NoError(t, err)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.InDelta(t, ref(vp, vg), v, 1e-9*math.Max(1, math.Abs(v)))
		}
	}
}

func TestTriodeE1PositiveGrid(t *testing.T) {
	tr := NewTriode("U1")
	vpk, vgk := expr.Sym("vpk"), expr.Sym("vgk")
	e1 := tr.E1(vpk, vgk)
	derivs := []expr.Expr{e1.Diff(vpk), e1.Diff(vgk)}

	for _, vp := range []float64{0, 0.5, 5, 50} {
		for _, vg := range []float64{40, 45, 100} {
			b := expr.Bindings{"vpk": vp, "vgk": vg}
			v, err := e1.Eval(b)
			require.NoError(t, err, "vpk=%v vgk=%v", vp, vg)

			// ln(1+exp(u)) equals u once exp(-u) is below float64 resolution.
			u := DefaultKp * (1/DefaultMu + vg/math.Sqrt(DefaultKvb+vp*vp))
			assert.InDelta(t, u*vp/DefaultKp, v, 1e-9*math.Max(1, math.Abs(v)))

			for _, d := range derivs {
				dv, err := d.Eval(b)
				require.NoError(t, err, "derivative at vpk=%v vgk=%v", vp, vg)
				assert.False(t, math.IsNaN(dv) || math.IsInf(dv, 0))
			}
		}
	}
}

func TestTriodePlateCurrent(t *testing.T) {
	tr := NewTriode("U1")
	e := expr.Sym("e1")
	ip := tr.PlateCurrent(e)

	for _, v := range []float64{-3, -0.1, 0} {
		got, err := ip.Eval(expr.Bindings{"e1": v})
		require.NoError(t, err)
		assert.Zero(t, got, "cutoff for E1=%v", v)
	}
	got, err := ip.Eval(expr.Bindings{"e1": 2})
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(2, DefaultEx)/DefaultKg1, got, 1e-15)
}

func TestTriodeStamps(t *testing.T) {
	a := mna.NewArena()
	tr := NewTriode("U1")
	require.NoError(t, tr.ConnectTo(a.Named("p"), a.Named("g"), a.Named("k")))

	r := mna.NewRecorder("U1", a)
	require.NoError(t, tr.Analyze(r))

	kinds := make(map[mna.StampKind]int)
	for _, s := range r.Stamps() {
		kinds[s.Kind]++
	}
	assert.Equal(t, map[mna.StampKind]int{
		mna.StampResistor:      3,
		mna.StampVoltageSource: 1,
		mna.StampCurrentSource: 1,
		mna.StampDiode:         1,
	}, kinds)
	assert.Len(t, r.Internal(), 3)
	assert.Empty(t, r.Unreferenced())
}

func TestInternalNodesFreshPerAnalysis(t *testing.T) {
	a := mna.NewArena()
	t1, t2 := NewTriode("U1"), NewTriode("U2")
	require.NoError(t, t1.ConnectTo(a.Named("p1"), a.Named("g1"), mna.Ground))
	require.NoError(t, t2.ConnectTo(a.Named("p2"), a.Named("g2"), mna.Ground))

	seen := make(map[mna.Node]bool)
	for _, tr := range []*Triode{t1, t2, t1} {
		r := mna.NewRecorder(tr.Name(), a)
		require.NoError(t, tr.Analyze(r))
		for _, n := range r.Internal() {
			assert.False(t, seen[n])
			seen[n] = true
		}
	}
	assert.Len(t, seen, 9)
}

func TestAnalyzeDeterministicModuloInternalNodes(t *testing.T) {
	a := mna.NewArena()
	tr := NewTriode("U1")
	require.NoError(t, tr.ConnectTo(a.Named("p"), a.Named("g"), a.Named("k")))

	render := func() []string {
		r := mna.NewRecorder("U1", a)
		require.NoError(t, tr.Analyze(r))

		local := make(map[mna.Node]string)
		var pairs []string
		for i, n := range r.Internal() {
			local[n] = fmt.Sprintf("#%d", i)
			pairs = append(pairs, mna.V(n).String(), fmt.Sprintf("V[#%d]", i))
		}
		rename := strings.NewReplacer(pairs...)
		name := func(n mna.Node) string {
			if l, ok := local[n]; ok {
				return l
			}
			return n.String()
		}

		var out []string
		for _, s := range r.Stamps() {
			out = append(out, fmt.Sprintf("%s %s %s %s", s.Kind, name(s.A), name(s.B), rename.Replace(s.Value.String())))
		}
		return out
	}
	assert.Equal(t, render(), render())
}

func TestParameterChangeNotifiesOnce(t *testing.T) {
	tr := NewTriode("U1")
	var calls []string
	tr.Watch(func(d Device, param string) {
		assert.Same(t, tr, d)
		calls = append(calls, param)
	})

	rev := tr.Revision()
	tr.SetMu(DefaultMu)
	assert.Empty(t, calls)
	assert.Equal(t, rev, tr.Revision())

	tr.SetMu(100)
	assert.Equal(t, []string{"Mu"}, calls)
	assert.Equal(t, rev+1, tr.Revision())

	tr.SetKp(math.NaN())
	tr.SetKp(math.NaN())
	assert.Equal(t, []string{"Mu", "Kp"}, calls)
}

func TestParameterErrorIsLazy(t *testing.T) {
	tests := []struct {
		name  string
		set   func(*Triode)
		param string
	}{
		{"nan mu", func(tr *Triode) { tr.SetMu(math.NaN()) }, "Mu"},
		{"negative kg1", func(tr *Triode) { tr.SetKg1(-1) }, "Kg1"},
		{"zero rgi", func(tr *Triode) { tr.SetRgi(0) }, "Rgi"},
		{"inf kvb", func(tr *Triode) { tr.SetKvb(math.Inf(1)) }, "Kvb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mna.NewArena()
			tr := NewTriode("U1")
			require.NoError(t, tr.ConnectTo(a.Named("p"), a.Named("g"), mna.Ground))

			assert.NotPanics(t, func() { tt.set(tr) })

			err := tr.Analyze(mna.NewRecorder("U1", a))
			var perr *ParameterError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, "U1", perr.Device)
			assert.Equal(t, tt.param, perr.Param)
		})
	}
}

func TestPassiveParameterErrors(t *testing.T) {
	a := mna.NewArena()
	r := NewResistor("R1", -5)
	require.NoError(t, r.ConnectTo(a.Named("a"), mna.Ground))
	var perr *ParameterError
	require.ErrorAs(t, r.Analyze(mna.NewRecorder("R1", a)), &perr)
	assert.Equal(t, -5.0, perr.Value)

	v := NewVoltageSource("V1", -12)
	require.NoError(t, v.ConnectTo(a.Named("a"), mna.Ground))
	assert.NoError(t, v.Analyze(mna.NewRecorder("V1", a)))
}

func TestPotentiometerSplit(t *testing.T) {
	a := mna.NewArena()
	p := NewPotentiometer("RGAIN", 1e6)
	require.NoError(t, p.Anode().ConnectTo(a.Named("top")))
	require.NoError(t, p.Cathode().ConnectTo(mna.Ground))
	require.NoError(t, p.Wiper().ConnectTo(a.Named("w")))

	legs := func() (float64, float64) {
		r := mna.NewRecorder("RGAIN", a)
		require.NoError(t, p.Analyze(r))
		st := r.Stamps()
		require.Len(t, st, 2)
		return st[0].Value.(*expr.Constant).Value(), st[1].Value.(*expr.Constant).Value()
	}

	p.SetWipe(0.25)
	upper, lower := legs()
	assert.InDelta(t, 750e3, upper, 1e-6)
	assert.InDelta(t, 250e3, lower, 1e-6)

	p.SetWipe(0)
	upper, lower = legs()
	assert.InDelta(t, 1e6*(1-MinWipe), upper, 1e-6)
	assert.InDelta(t, 1e6*MinWipe, lower, 1e-6)
}

func TestVariableResistor(t *testing.T) {
	a := mna.NewArena()
	v := NewVariableResistor("RMID", 10e3)
	require.NoError(t, v.ConnectTo(a.Named("n"), mna.Ground))
	v.SetWipe(0.33)

	r := mna.NewRecorder("RMID", a)
	require.NoError(t, v.Analyze(r))
	require.Len(t, r.Stamps(), 1)
	assert.InDelta(t, 10e3*0.67, r.Stamps()[0].Value.(*expr.Constant).Value(), 1e-6)
}

func TestInputSymbolFollowsName(t *testing.T) {
	a := mna.NewArena()
	in := NewInput("V1")
	require.NoError(t, in.ConnectTo(a.Named("in"), mna.Ground))

	r := mna.NewRecorder("V1", a)
	require.NoError(t, in.Analyze(r))
	require.Len(t, r.Stamps(), 1)
	assert.True(t, r.Stamps()[0].Value.Equal(InputSymbol("V1")))

	in.SetName("SIG")
	assert.Equal(t, "Vin[SIG]", in.Symbol().Name())
}
