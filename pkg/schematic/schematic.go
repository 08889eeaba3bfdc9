// Package schematic reads circuit descriptions written in YAML:
//
//	name: common cathode
//	components:
//	  - {type: V, name: VB, nodes: [vb, "0"], value: 300}
//	  - {type: R, name: RP, nodes: [vb, p], value: 100k}
//	  - {type: 12AX7, name: U1, nodes: [p, g, k], params: {mu: 100}}
//
// Values accept SI suffixes. Node "0" (or "gnd") is ground.
package schematic

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/netlist"
	"github.com/edp1096/tube-spice/pkg/util"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Schematic struct {
	Name       string      `yaml:"name" validate:"required"`
	Components []Component `yaml:"components" validate:"required,min=1,unique=Name,dive"`
}

// Component is one device. Type is the device's type code.
type Component struct {
	Type   string             `yaml:"type" validate:"required,oneof=R C V I D Vin SPKR POT VR 12AX7"`
	Name   string             `yaml:"name" validate:"required"`
	Nodes  []string           `yaml:"nodes" validate:"min=2,max=3,dive,required"`
	Value  string             `yaml:"value,omitempty"`
	Wipe   *float64           `yaml:"wipe,omitempty" validate:"omitempty,gte=0,lte=1"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

func Load(r io.Reader) (*Schematic, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Schematic
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding schematic: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func LoadFile(path string) (*Schematic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (s *Schematic) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid schematic: %w", err)
	}
	return nil
}

// Build creates the circuit. Parameter values are checked when the circuit is
// analyzed, not here.
func (s *Schematic) Build(opts ...circuit.Option) (*circuit.Circuit, error) {
	ckt := circuit.New(s.Name, opts...)
	for _, c := range s.Components {
		d, err := c.device()
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", c.Name, err)
		}
		if err := ckt.Add(d, c.Nodes...); err != nil {
			return nil, err
		}
	}
	return ckt, nil
}

func (c Component) value() (float64, error) {
	if c.Value == "" {
		return 0, fmt.Errorf("%s needs a value", c.Type)
	}
	return netlist.ParseValue(c.Value)
}

func (c Component) device() (device.Device, error) {
	var (
		d       device.Device
		setters map[string]func(float64)
	)

	switch c.Type {
	case "Vin":
		d = device.NewInput(c.Name)
	case "D":
		x := device.NewDiode(c.Name)
		setters = map[string]func(float64){"is": x.SetIS, "n": x.SetN}
		d = x
	case "12AX7":
		x := device.NewTriode(c.Name)
		setters = map[string]func(float64){
			"mu":  x.SetMu,
			"ex":  x.SetEx,
			"kg1": x.SetKg1,
			"kp":  x.SetKp,
			"kvb": x.SetKvb,
			"rgi": x.SetRgi,
		}
		d = x
	case "SPKR":
		x := device.NewSpeaker(c.Name)
		if c.Value != "" {
			v, err := c.value()
			if err != nil {
				return nil, err
			}
			x.SetImpedance(v)
		}
		d = x
	default:
		v, err := c.value()
		if err != nil {
			return nil, err
		}
		switch c.Type {
		case "R":
			d = device.NewResistor(c.Name, v)
		case "C":
			d = device.NewCapacitor(c.Name, v)
		case "V":
			d = device.NewVoltageSource(c.Name, v)
		case "I":
			d = device.NewCurrentSource(c.Name, v)
		case "POT":
			x := device.NewPotentiometer(c.Name, v)
			if c.Wipe != nil {
				x.SetWipe(*c.Wipe)
			}
			d = x
		case "VR":
			x := device.NewVariableResistor(c.Name, v)
			if c.Wipe != nil {
				x.SetWipe(*c.Wipe)
			}
			d = x
		default:
			return nil, fmt.Errorf("unknown type %s", c.Type)
		}
	}

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := setters[k]
		if !ok {
			return nil, fmt.Errorf("%s has no parameter %q", c.Type, k)
		}
		set(c.Params[k])
	}
	return d, nil
}

// FromCircuit describes ckt as a schematic. Values are written with
// FormatSI, so they keep five significant digits. Devices with no schematic
// form are logged and skipped; the returned slice lists them.
func FromCircuit(ckt *circuit.Circuit) (*Schematic, []*device.UnsupportedDeviceError, error) {
	s := &Schematic{Name: ckt.Name()}
	var skipped []*device.UnsupportedDeviceError
	for _, d := range ckt.Devices() {
		c := Component{Type: d.Type(), Name: d.Name()}

		switch x := d.(type) {
		case *device.Resistor:
			c.Value = util.FormatSI(x.Resistance())
		case *device.Capacitor:
			c.Value = util.FormatSI(x.Capacitance())
		case *device.VoltageSource:
			c.Value = util.FormatSI(x.Voltage())
		case *device.CurrentSource:
			c.Value = util.FormatSI(x.Current())
		case *device.Input:
		case *device.Speaker:
			c.Value = util.FormatSI(x.Impedance())
		case *device.Potentiometer:
			c.Value = util.FormatSI(x.Resistance())
			c.Wipe = ptr(x.Wipe())
		case *device.VariableResistor:
			c.Value = util.FormatSI(x.Resistance())
			c.Wipe = ptr(x.Wipe())
		case *device.Diode:
			c.Params = map[string]float64{"is": x.IS(), "n": x.N()}
		case *device.Triode:
			c.Params = map[string]float64{
				"mu": x.Mu(), "ex": x.Ex(), "kg1": x.Kg1(),
				"kp": x.Kp(), "kvb": x.Kvb(), "rgi": x.Rgi(),
			}
		default:
			ckt.Logger().Warn("Skipping device", "device", d.Name(), "type", d.Type(), "sink", "schematic")
			skipped = append(skipped, &device.UnsupportedDeviceError{Device: d.Name(), Type: d.Type(), Sink: "schematic"})
			continue
		}

		for _, t := range d.Terminals() {
			if !t.Wired() {
				return nil, skipped, &device.TopologyError{Device: d.Name(), Terminal: t.Name(), Reason: "not connected"}
			}
		}
		c.Nodes = ckt.TerminalNames(d)
		s.Components = append(s.Components, c)
	}
	return s, skipped, nil
}

func (s *Schematic) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding schematic: %w", err)
	}
	return enc.Close()
}

func ptr(v float64) *float64 { return &v }
