package netlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/util"
)

const sinkName = "spice netlist"

const (
	DefaultTriodeModel = "NH12AX7"
	DefaultInclude     = "dmtriodep.inc"
)

// Line prefixes of the exported dialect. Parse relies on the longer prefixes
// being matched before "R".
const (
	prefixSource  = "V_SRC_"
	prefixSpeaker = "R_SPKR_"
	prefixPot     = "XR_"
	prefixTriode  = "XU"
)

type ExportOptions struct {
	TriodeModel string
	Include     string
	Logger      *slog.Logger
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.TriodeModel == "" {
		o.TriodeModel = DefaultTriodeModel
	}
	if o.Include == "" {
		o.Include = DefaultInclude
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

var footer = []string{
	".subckt potentiometer A W C",
	".param w=limit(wiper,1m,.999)",
	"R0 A C {R*(1-w)}",
	"R1 C B {R*(w)}",
	".ends POT",
	".tran 100m",
}

// Export writes ckt as a SPICE netlist. Devices without an export rule are
// logged and skipped; the returned slice lists them.
func Export(w io.Writer, ckt *circuit.Circuit, opts ExportOptions) ([]*device.UnsupportedDeviceError, error) {
	opts = opts.withDefaults()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "* %s\n", ckt.Name())

	var skipped []*device.UnsupportedDeviceError
	for _, d := range ckt.Devices() {
		line, err := Line(ckt, d, opts.TriodeModel)
		var unsupported *device.UnsupportedDeviceError
		if errors.As(err, &unsupported) {
			opts.Logger.Warn("Skipping device", "device", d.Name(), "type", d.Type())
			skipped = append(skipped, unsupported)
			continue
		}
		if err != nil {
			return skipped, err
		}
		fmt.Fprintln(bw, line)
	}

	fmt.Fprintf(bw, ".INC %s\n", opts.Include)
	for _, l := range footer {
		fmt.Fprintln(bw, l)
	}
	if err := bw.Flush(); err != nil {
		return skipped, fmt.Errorf("writing netlist: %w", err)
	}
	return skipped, nil
}

// Line is the netlist line of one device.
func Line(ckt *circuit.Circuit, d device.Device, triodeModel string) (string, error) {
	for _, t := range d.Terminals() {
		if !t.Wired() {
			return "", &device.TopologyError{Device: d.Name(), Terminal: t.Name(), Reason: "not connected"}
		}
	}
	node := func(t *device.Terminal) string { return ckt.NodeName(t.Node()) }

	switch x := d.(type) {
	case *device.Resistor:
		return fmt.Sprintf("R%s %s %s %s", x.Name(), node(x.Anode()), node(x.Cathode()), util.FormatSI(x.Resistance())), nil
	case *device.Capacitor:
		return fmt.Sprintf("C%s %s %s %s", x.Name(), node(x.Anode()), node(x.Cathode()), util.FormatSI(x.Capacitance())), nil
	case *device.Input:
		return fmt.Sprintf("%s%s %s %s SINE(0 0.6447 440) AC", prefixSource, x.Name(), node(x.Anode()), node(x.Cathode())), nil
	case *device.Triode:
		return fmt.Sprintf("%s%s %s %s %s %s", prefixTriode, x.Name(), node(x.Plate()), node(x.Grid()), node(x.Cathode()), triodeModel), nil
	case *device.Potentiometer:
		return fmt.Sprintf("%s%s %s %s %s potentiometer R=%s wiper=.5", prefixPot, x.Name(), node(x.Anode()), node(x.Cathode()), node(x.Wiper()), util.FormatSI(x.Resistance())), nil
	case *device.VariableResistor:
		return fmt.Sprintf("%s%s %s %s %s potentiometer R=%s wiper=.5", prefixPot, x.Name(), node(x.Anode()), node(x.Cathode()), node(x.Anode()), util.FormatSI(x.Resistance())), nil
	case *device.VoltageSource:
		return fmt.Sprintf("%s%s %s %s %s DC", prefixSource, x.Name(), node(x.Anode()), node(x.Cathode()), util.FormatSI(x.Voltage())), nil
	case *device.Speaker:
		return fmt.Sprintf("%s%s %s %s %s", prefixSpeaker, x.Name(), node(x.Anode()), node(x.Cathode()), util.FormatSI(x.Impedance())), nil
	default:
		return "", &device.UnsupportedDeviceError{Device: d.Name(), Type: d.Type(), Sink: sinkName}
	}
}
