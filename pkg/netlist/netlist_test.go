package netlist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"100", 100},
		{"4.7k", 4.7e3},
		{"1M", 1e6},
		{"1meg", 1e6},
		{"22n", 22e-9},
		{"250p", 250e-12},
		{"10u", 10e-6},
		{"10µ", 10e-6},
		{"500m", 0.5},
		{".5", 0.5},
		{"-1.5k", -1500},
		{"1e-25", 1e-25},
		{"0.001f", 1e-18},
		{"1MEG", 1e6},
		{"2.2Meg", 2.2e6},
		{"4.7K", 4.7e3},
		{"10U", 10e-6},
		{"22N", 22e-9},
		{"1G", 1e9},
		{"1g", 1e9},
		{"1T", 1e12},
		{"1ms", 1e-3},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in)
		require.NoError(t, err, tt.in)
		assert.InEpsilon(t, tt.want, got, 1e-12, tt.in)
	}

	_, err := ParseValue("abc")
	assert.Error(t, err)
}

func stage(t *testing.T) *circuit.Circuit {
	t.Helper()
	c := circuit.New("stage")
	require.NoError(t, c.Add(device.NewInput("V1"), "in", "0"))
	require.NoError(t, c.Add(device.NewVoltageSource("VB", 300), "vb", "0"))
	require.NoError(t, c.Add(device.NewResistor("P", 100e3), "vb", "p"))
	require.NoError(t, c.Add(device.NewCapacitor("C", 22e-9), "p", "out"))
	require.NoError(t, c.Add(device.NewPotentiometer("VOL", 1e6), "out", "0", "w"))
	require.NoError(t, c.Add(device.NewVariableResistor("GAIN", 250e3), "k", "kb"))
	require.NoError(t, c.Add(device.NewSpeaker("OUT"), "w", "0"))

	// grid wired first, then cathode, then plate
	u := device.NewTriode("1")
	require.NoError(t, u.Grid().ConnectTo(c.Node("in")))
	require.NoError(t, u.Cathode().ConnectTo(c.Node("k")))
	require.NoError(t, u.Plate().ConnectTo(c.Node("p")))
	require.NoError(t, c.Add(u))
	return c
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	skipped, err := Export(&buf, stage(t), ExportOptions{})
	require.NoError(t, err)
	assert.Empty(t, skipped)

	want := strings.Join([]string{
		"* stage",
		"V_SRC_V1 in 0 SINE(0 0.6447 440) AC",
		"V_SRC_VB vb 0 300 DC",
		"RP vb p 100k",
		"CC p out 22n",
		"XR_VOL out 0 w potentiometer R=1M wiper=.5",
		"XR_GAIN k kb k potentiometer R=250k wiper=.5",
		"R_SPKR_OUT w 0 4",
		"XU1 p in k NH12AX7",
		".INC dmtriodep.inc",
		".subckt potentiometer A W C",
		".param w=limit(wiper,1m,.999)",
		"R0 A C {R*(1-w)}",
		"R1 C B {R*(w)}",
		".ends POT",
		".tran 100m",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestExportOptions(t *testing.T) {
	c := circuit.New("t")
	require.NoError(t, c.Add(device.NewTriode("A"), "p", "g", "0"))

	var buf bytes.Buffer
	_, err := Export(&buf, c, ExportOptions{TriodeModel: "12AX7_KOREN", Include: "koren.inc"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "XUA p g 0 12AX7_KOREN\n")
	assert.Contains(t, buf.String(), ".INC koren.inc\n")
}

func TestExportSkipsUnsupported(t *testing.T) {
	c := circuit.New("mixed")
	require.NoError(t, c.Add(device.NewResistor("A", 1e3), "a", "0"))
	require.NoError(t, c.Add(device.NewDiode("D1"), "a", "0"))
	require.NoError(t, c.Add(device.NewCurrentSource("I1", 1e-3), "0", "a"))
	require.NoError(t, c.Add(device.NewResistor("B", 2e3), "a", "0"))

	var buf bytes.Buffer
	skipped, err := Export(&buf, c, ExportOptions{})
	require.NoError(t, err)
	require.Len(t, skipped, 2)
	assert.Equal(t, "D1", skipped[0].Device)
	assert.Equal(t, "I1", skipped[1].Device)

	out := buf.String()
	assert.Contains(t, out, "RA a 0 1k\n")
	assert.Contains(t, out, "RB a 0 2k\n")
	assert.NotContains(t, out, "D1")
}

func TestLineUnwiredDevice(t *testing.T) {
	c := circuit.New("t")
	r := device.NewResistor("R", 1)
	require.NoError(t, c.Add(r))

	_, err := Line(c, r, DefaultTriodeModel)
	var topo *device.TopologyError
	assert.ErrorAs(t, err, &topo)
}

func TestParseRoundTrip(t *testing.T) {
	orig := stage(t)
	var first bytes.Buffer
	_, err := Export(&first, orig, ExportOptions{})
	require.NoError(t, err)

	parsed, err := Parse(strings.NewReader(first.String()))
	require.NoError(t, err)
	assert.Equal(t, "stage", parsed.Name())
	require.Len(t, parsed.Devices(), len(orig.Devices()))

	for i, d := range orig.Devices() {
		p := parsed.Devices()[i]
		assert.Equal(t, d.Name(), p.Name())
		assert.Equal(t, d.Type(), p.Type())
		assert.Equal(t, orig.TerminalNames(d), parsed.TerminalNames(p), d.Name())
	}

	var second bytes.Buffer
	_, err = Export(&second, parsed, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestParseData(t *testing.T) {
	src := `* hand written
VB vb 0 DC 250
R1 vb p
+ 100k
* comment
IBIAS 0 k 1m
DG k 0 IS=2n N=1.5
XUA p g k NH12AX7 mu=100
.subckt ignored A B
R9 A B 1
.ends
.INC tubes.inc
.op
.end
R2 after end 1
`
	data, err := ParseData(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "hand written", data.Title)
	assert.Equal(t, []string{"tubes.inc"}, data.Includes)
	assert.Equal(t, []string{".op"}, data.Directives)
	require.Len(t, data.Elements, 5)
	assert.Equal(t, 100e3, data.Elements[1].Value)

	ckt, err := Build(data)
	require.NoError(t, err)

	d, ok := ckt.Device("BIAS")
	require.True(t, ok)
	assert.InDelta(t, 1e-3, d.(*device.CurrentSource).Current(), 1e-15)

	d, ok = ckt.Device("G")
	require.True(t, ok)
	assert.InDelta(t, 2e-9, d.(*device.Diode).IS(), 1e-20)
	assert.Equal(t, 1.5, d.(*device.Diode).N())

	_, ok = ckt.Device("UA")
	assert.False(t, ok)
	d, ok = ckt.Device("A")
	require.True(t, ok)
	tri := d.(*device.Triode)
	assert.Equal(t, 100.0, tri.Mu())
	assert.Equal(t, []string{"p", "g", "k"}, ckt.TerminalNames(tri))
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"* t\nR1 a b\n",
		"* t\nR1 a b x\n",
		"* t\nQ1 c b e model\n",
		"* t\nXR_P a b w potentiometer wiper=.5\n",
	}
	for _, src := range tests {
		_, err := Parse(strings.NewReader(src))
		assert.Error(t, err, src)
	}
}
