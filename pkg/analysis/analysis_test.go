package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/edp1096/tube-spice/internal/consts"
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func divider(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.New("divider")
	require.NoError(t, c.Add(device.NewVoltageSource("V1", 10), "in", "0"))
	require.NoError(t, c.Add(device.NewResistor("R1", 1e3), "in", "mid"))
	require.NoError(t, c.Add(device.NewResistor("R2", 1e3), "mid", "0"))
	return c
}

func runOP(t *testing.T, c *circuit.Circuit, opts ...func(*Options)) *OperatingPoint {
	t.Helper()
	op := NewOP()
	for _, o := range opts {
		o(&op.Options)
	}
	require.NoError(t, op.Setup(c))
	require.NoError(t, op.Execute(context.Background()))
	return op
}

func value(t *testing.T, op *OperatingPoint, key string) float64 {
	t.Helper()
	v, ok := op.Value(key)
	require.True(t, ok, "missing %s in %v", key, op.GetResults())
	return v
}

func TestOperatingPointDivider(t *testing.T) {
	op := runOP(t, divider(t))

	assert.InDelta(t, 10, value(t, op, "V(in)"), 1e-6)
	assert.InDelta(t, 5, value(t, op, "V(mid)"), 1e-6)
	assert.InDelta(t, -5e-3, value(t, op, "I(V1)"), 1e-9)
	assert.InDelta(t, 5e-3, value(t, op, "I(R1)"), 1e-9)
}

func TestOperatingPointDiode(t *testing.T) {
	c := circuit.New("diode")
	require.NoError(t, c.Add(device.NewVoltageSource("V1", 5), "in", "0"))
	require.NoError(t, c.Add(device.NewResistor("R1", 1e3), "in", "a"))
	require.NoError(t, c.Add(device.NewDiode("D1"), "a", "0"))

	op := runOP(t, c)
	vd := value(t, op, "V(a)")
	assert.InDelta(t, 0.69, vd, 0.05)

	vt := consts.ThermalVoltage(consts.TNOM)
	id := 1e-14 * (math.Exp(vd/vt) - 1)
	assert.InEpsilon(t, (5-vd)/1e3, id, 1e-6)
	assert.InEpsilon(t, id, value(t, op, "I(D1)"), 1e-9)
}

func commonCathode(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.New("common cathode")
	require.NoError(t, c.Add(device.NewVoltageSource("VB", 300), "vb", "0"))
	require.NoError(t, c.Add(device.NewResistor("RP", 100e3), "vb", "p"))
	require.NoError(t, c.Add(device.NewTriode("U1"), "p", "g", "k"))
	require.NoError(t, c.Add(device.NewResistor("RK", 1.5e3), "k", "0"))
	require.NoError(t, c.Add(device.NewResistor("RG", 1e6), "g", "0"))
	return c
}

func TestOperatingPointCommonCathode(t *testing.T) {
	op := runOP(t, commonCathode(t))

	vp := value(t, op, "V(p)")
	vk := value(t, op, "V(k)")
	ip := value(t, op, "Ip(U1)")

	assert.Greater(t, vp, 150.0)
	assert.Less(t, vp, 260.0)
	assert.Greater(t, vk, 0.5)
	assert.Less(t, vk, 3.0)
	assert.InEpsilon(t, (300-vp)/100e3, ip, 1e-3)
	assert.InEpsilon(t, vk/1.5e3, ip, 1e-3)
	assert.InDelta(t, 0, value(t, op, "V(g)"), 1e-3)
}

func TestOperatingPointPositiveGrid(t *testing.T) {
	c := circuit.New("positive grid")
	require.NoError(t, c.Add(device.NewVoltageSource("VP", 0), "p", "0"))
	require.NoError(t, c.Add(device.NewVoltageSource("VG", 45), "g", "0"))
	require.NoError(t, c.Add(device.NewTriode("U1"), "p", "g", "0"))

	op := runOP(t, c)
	assert.InDelta(t, 45, value(t, op, "V(g)"), 1e-9)
	assert.InDelta(t, 0, value(t, op, "Ip(U1)"), 1e-9)

	// Grid current through Rgi into the forward-biased grid diode.
	ig := value(t, op, "Ig(U1)")
	vd := consts.ThermalVoltage(consts.TNOM) * math.Log(ig/1e-9+1)
	assert.InEpsilon(t, (45-vd)/device.DefaultRgi, ig, 1e-4)
}

func TestSteppingStrategiesAgree(t *testing.T) {
	c := commonCathode(t)
	direct := runOP(t, c)

	sys, err := c.Analyze()
	require.NoError(t, err)
	op := NewOP()
	nr := &newton{sys: compile(sys, op.Options, op.logger()), opts: op.Options, logger: op.logger()}

	gmin, err := op.gminStepping(context.Background(), nr, make([]float64, nr.sys.size()))
	require.NoError(t, err)
	source, err := op.sourceStepping(context.Background(), nr)
	require.NoError(t, err)

	for i, want := range direct.Solution() {
		tol := 1e-6 * math.Max(1, math.Abs(want))
		assert.InDelta(t, want, gmin[i], tol, "gmin stepping, unknown %d", i)
		assert.InDelta(t, want, source[i], tol, "source stepping, unknown %d", i)
	}
}

func TestOperatingPointInput(t *testing.T) {
	c := circuit.New("input")
	require.NoError(t, c.Add(device.NewInput("V1"), "in", "0"))
	require.NoError(t, c.Add(device.NewResistor("R1", 1e3), "in", "0"))

	op := runOP(t, c)
	assert.InDelta(t, 0, value(t, op, "V(in)"), 1e-9)

	op = runOP(t, c, func(o *Options) { o.Inputs = map[string]float64{"V1": 0.5} })
	assert.InDelta(t, 0.5, value(t, op, "V(in)"), 1e-9)
}

func TestOperatingPointParameterError(t *testing.T) {
	c := commonCathode(t)
	d, ok := c.Device("U1")
	require.True(t, ok)
	d.(*device.Triode).SetKp(-3)

	op := NewOP()
	require.NoError(t, op.Setup(c))
	err := op.Execute(context.Background())
	var perr *device.ParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Kp", perr.Param)
}

func TestDCSweep(t *testing.T) {
	c := divider(t)
	dc := NewDCSweep("V1", 0, 10, 6)
	require.NoError(t, dc.Setup(c))
	require.NoError(t, dc.Execute(context.Background()))

	res := dc.GetResults()
	require.Len(t, res["SWEEP1"], 6)
	for i, v := range res["SWEEP1"] {
		assert.InDelta(t, float64(2*i), v, 1e-12)
		assert.InDelta(t, v/2, res["V(mid)"][i], 1e-6)
	}

	src, _ := c.Device("V1")
	assert.Equal(t, 10.0, src.(*device.VoltageSource).Voltage())
}

func TestDCSweepUnknownSource(t *testing.T) {
	dc := NewDCSweep("VX", 0, 1, 2)
	assert.ErrorContains(t, dc.Setup(divider(t)), "not found")

	dc = NewDCSweep("R1", 0, 1, 2)
	assert.ErrorContains(t, dc.Setup(divider(t)), "cannot be swept")
}

func TestPlateCurves(t *testing.T) {
	vgk := []float64{-2, 0, -1}
	pc := NewPlateCurves(0, 300, 7, vgk)
	require.NoError(t, pc.Setup(nil))
	require.NoError(t, pc.Execute(context.Background()))

	curves := pc.Curves()
	require.Len(t, curves, 3)
	assert.Equal(t, []float64{0, -1, -2}, []float64{curves[0].Vgk, curves[1].Vgk, curves[2].Vgk})

	model := device.NewTriode("ref")
	vpk, vg := expr.Sym("vpk"), expr.Sym("vgk")
	ipExpr := model.PlateCurrent(model.E1(vpk, vg))

	for _, c := range curves {
		require.Len(t, c.Ip, 7)
		assert.InDelta(t, 0, c.Ip[0], 1e-12)
		for i := 1; i < len(c.Ip); i++ {
			assert.Greater(t, c.Ip[i], c.Ip[i-1], "Vgk=%g", c.Vgk)

			want, err := ipExpr.Eval(expr.Bindings{"vpk": c.Vpk[i], "vgk": c.Vgk})
			require.NoError(t, err)
			assert.InEpsilon(t, want, c.Ip[i], 1e-6)
		}
	}
	for i := 1; i < 7; i++ {
		assert.Greater(t, curves[0].Ip[i], curves[1].Ip[i])
		assert.Greater(t, curves[1].Ip[i], curves[2].Ip[i])
	}
}

func TestPlateCurvesUsesCircuitModel(t *testing.T) {
	c := commonCathode(t)
	d, _ := c.Device("U1")
	d.(*device.Triode).SetKg1(1226.8)

	pc := NewPlateCurves(0, 200, 3, []float64{0})
	require.NoError(t, pc.Setup(c))
	require.NoError(t, pc.Execute(context.Background()))

	def := NewPlateCurves(0, 200, 3, []float64{0})
	require.NoError(t, def.Setup(nil))
	require.NoError(t, def.Execute(context.Background()))

	assert.InEpsilon(t, def.Curves()[0].Ip[2]/2, pc.Curves()[0].Ip[2], 1e-6)
}
