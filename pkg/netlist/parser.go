package netlist

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
)

type NetlistData struct {
	Title      string    // Circuit title
	Elements   []Element // Circuit elements
	Includes   []string  // .INC files, in order
	Directives []string  // Other dot commands, kept verbatim
}

type Element struct {
	Type   string            // SPICE letter, or VIN, SPKR, POT, VR, TRIODE
	Name   string            // Device name without the line prefix
	Nodes  []string          // Node names
	Value  float64           // Part value
	Params map[string]string // key=value parameters and the model name
}

// Suffixes are case-insensitive except M and m, which FormatSI writes as
// mega and milli.
var unitMap = map[string]float64{
	"t":   1e12,  // tera
	"g":   1e9,   // giga
	"meg": 1e6,   // mega
	"M":   1e6,   // mega, as FormatSI writes it
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"µ":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)((?i:meg)|[TtGgMKkmUuµNnPpFf])?s?$`)

func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	// factor
	if suffix := matches[2]; suffix != "" {
		if suffix != "M" {
			suffix = strings.ToLower(suffix)
		}
		num *= unitMap[suffix]
	}
	return num, nil
}

// Parse reads a netlist in the dialect Export writes and builds the circuit
// it describes.
func Parse(r io.Reader, opts ...circuit.Option) (*circuit.Circuit, error) {
	data, err := ParseData(r)
	if err != nil {
		return nil, err
	}
	return Build(data, opts...)
}

// ParseData reads a netlist into its element list without building devices.
// The first line is the title. Lines starting with "+" continue the previous
// line; subcircuit definitions are skipped.
func ParseData(r io.Reader) (*NetlistData, error) {
	scanner := bufio.NewScanner(r)
	netlistData := &NetlistData{}

	// Title or comment
	if scanner.Scan() {
		netlistData.Title = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))
	}

	var (
		currentLine string
		lineNo      = 1
		startLine   int
		inSubckt    bool
		ended       bool
	)
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		line := currentLine
		currentLine = ""
		if err := parseLine(netlistData, line, &inSubckt, &ended); err != nil {
			return fmt.Errorf("line %d: %w", startLine, err)
		}
		return nil
	}

	for scanner.Scan() && !ended {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if len(line) == 0 || strings.HasPrefix(line, "*") { // Empty line or comment
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		if strings.HasPrefix(line, "+") { // Line continue
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		currentLine = line
		startLine = lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading netlist: %w", err)
	}
	if !ended {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return netlistData, nil
}

func parseLine(netlistData *NetlistData, line string, inSubckt, ended *bool) error {
	if strings.HasPrefix(line, ".") {
		return parseDotOperator(netlistData, line, inSubckt, ended)
	}
	if *inSubckt {
		return nil
	}

	elem, err := parseElement(line)
	if err != nil {
		return err
	}
	netlistData.Elements = append(netlistData.Elements, *elem)
	return nil
}

func parseDotOperator(netlistData *NetlistData, line string, inSubckt, ended *bool) error {
	fields := strings.Fields(line)
	switch strings.ToUpper(fields[0]) {
	case ".SUBCKT":
		*inSubckt = true
	case ".ENDS":
		*inSubckt = false
	case ".INC", ".INCLUDE":
		if len(fields) < 2 {
			return fmt.Errorf("%s needs a file name", fields[0])
		}
		netlistData.Includes = append(netlistData.Includes, fields[1])
	case ".END":
		*ended = true
	default:
		if !*inSubckt {
			netlistData.Directives = append(netlistData.Directives, line)
		}
	}
	return nil
}

func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	name := fields[0]
	upper := strings.ToUpper(name)

	switch {
	case strings.HasPrefix(upper, prefixSource):
		return parseVoltageSource(name[len(prefixSource):], fields)
	case strings.HasPrefix(upper, prefixSpeaker):
		return parseTwoTerminal("SPKR", name[len(prefixSpeaker):], fields)
	case strings.HasPrefix(upper, prefixPot):
		return parsePotentiometer(name[len(prefixPot):], fields)
	case strings.HasPrefix(upper, prefixTriode):
		return parseTriode(name[len(prefixTriode):], fields)
	}

	switch upper[0] {
	case 'R', 'C':
		return parseTwoTerminal(upper[:1], name[1:], fields)
	case 'V':
		return parseVoltageSource(name[1:], fields)
	case 'I':
		return parseCurrentSource(name[1:], fields)
	case 'D':
		return parseDiode(name[1:], fields)
	}
	return nil, fmt.Errorf("unsupported element %s", name)
}

func parseTwoTerminal(typ, name string, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("insufficient fields for %s", fields[0])
	}
	value, err := ParseValue(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%s value: %w", fields[0], err)
	}
	return &Element{Type: typ, Name: name, Nodes: fields[1:3], Value: value}, nil
}

// parseVoltageSource reads "V a b [DC] v" and "V a b SINE(...) AC". A
// sinusoidal source becomes a signal input.
func parseVoltageSource(name string, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("insufficient fields for voltage source %s", fields[0])
	}
	rest := strings.ToUpper(strings.Join(fields[3:], " "))
	if strings.HasPrefix(rest, "SIN") {
		return &Element{Type: "VIN", Name: name, Nodes: fields[1:3]}, nil
	}

	value, err := sourceValue(fields[3:])
	if err != nil {
		return nil, fmt.Errorf("voltage source %s: %w", fields[0], err)
	}
	return &Element{Type: "V", Name: name, Nodes: fields[1:3], Value: value}, nil
}

func parseCurrentSource(name string, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("insufficient fields for current source %s", fields[0])
	}
	value, err := sourceValue(fields[3:])
	if err != nil {
		return nil, fmt.Errorf("current source %s: %w", fields[0], err)
	}
	return &Element{Type: "I", Name: name, Nodes: fields[1:3], Value: value}, nil
}

// sourceValue returns the first value among the fields, ignoring DC and AC
// keywords.
func sourceValue(fields []string) (float64, error) {
	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "DC", "AC":
			continue
		}
		return ParseValue(f)
	}
	return 0, fmt.Errorf("missing value")
}

func parseDiode(name string, fields []string) (*Element, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("insufficient fields for diode %s", fields[0])
	}
	params, model := parseParams(fields[3:])
	if model != "" {
		params["model"] = model
	}
	return &Element{Type: "D", Name: name, Nodes: fields[1:3], Params: params}, nil
}

func parsePotentiometer(name string, fields []string) (*Element, error) {
	if len(fields) < 5 {
		return nil, fmt.Errorf("insufficient fields for potentiometer %s", fields[0])
	}
	params, _ := parseParams(fields[4:])
	rv, ok := params["r"]
	if !ok {
		return nil, fmt.Errorf("potentiometer %s: missing R=", fields[0])
	}
	value, err := ParseValue(rv)
	if err != nil {
		return nil, fmt.Errorf("potentiometer %s: %w", fields[0], err)
	}

	// A wiper tied to the anode is how variable resistors are written.
	if fields[3] == fields[1] {
		return &Element{Type: "VR", Name: name, Nodes: fields[1:3], Value: value, Params: params}, nil
	}
	return &Element{Type: "POT", Name: name, Nodes: fields[1:4], Value: value, Params: params}, nil
}

func parseTriode(name string, fields []string) (*Element, error) {
	if len(fields) < 5 {
		return nil, fmt.Errorf("insufficient fields for triode %s", fields[0])
	}
	params, _ := parseParams(fields[5:])
	params["model"] = fields[4]
	return &Element{Type: "TRIODE", Name: name, Nodes: fields[1:4], Params: params}, nil
}

// parseParams splits key=value fields, lower-casing keys. The first bare
// field is returned as the model name.
func parseParams(fields []string) (map[string]string, string) {
	params := make(map[string]string)
	model := ""
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			if model == "" {
				model = f
			}
			continue
		}
		params[strings.ToLower(key)] = value
	}
	return params, model
}

// Build creates the devices of netlistData and wires them into a circuit
// named after the title.
func Build(netlistData *NetlistData, opts ...circuit.Option) (*circuit.Circuit, error) {
	ckt := circuit.New(netlistData.Title, opts...)
	for _, elem := range netlistData.Elements {
		dev, err := CreateDevice(elem)
		if err != nil {
			return nil, err
		}
		if err := ckt.Add(dev, elem.Nodes...); err != nil {
			return nil, err
		}
	}
	return ckt, nil
}

func CreateDevice(elem Element) (device.Device, error) {
	switch elem.Type {
	case "R":
		return device.NewResistor(elem.Name, elem.Value), nil
	case "C":
		return device.NewCapacitor(elem.Name, elem.Value), nil
	case "V":
		return device.NewVoltageSource(elem.Name, elem.Value), nil
	case "VIN":
		return device.NewInput(elem.Name), nil
	case "I":
		return device.NewCurrentSource(elem.Name, elem.Value), nil
	case "SPKR":
		s := device.NewSpeaker(elem.Name)
		s.SetImpedance(elem.Value)
		return s, nil

	case "D":
		d := device.NewDiode(elem.Name)
		if err := applyParam(elem, "is", d.SetIS); err != nil {
			return nil, err
		}
		if err := applyParam(elem, "n", d.SetN); err != nil {
			return nil, err
		}
		return d, nil

	case "POT":
		p := device.NewPotentiometer(elem.Name, elem.Value)
		if err := applyParam(elem, "wiper", p.SetWipe); err != nil {
			return nil, err
		}
		return p, nil

	case "VR":
		v := device.NewVariableResistor(elem.Name, elem.Value)
		if err := applyParam(elem, "wiper", v.SetWipe); err != nil {
			return nil, err
		}
		return v, nil

	case "TRIODE":
		t := device.NewTriode(elem.Name)
		setters := map[string]func(float64){
			"mu":  t.SetMu,
			"ex":  t.SetEx,
			"kg1": t.SetKg1,
			"kp":  t.SetKp,
			"kvb": t.SetKvb,
			"rgi": t.SetRgi,
		}
		for key, set := range setters {
			if err := applyParam(elem, key, set); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported element type %s for %s", elem.Type, elem.Name)
}

func applyParam(elem Element, key string, set func(float64)) error {
	raw, ok := elem.Params[key]
	if !ok {
		return nil
	}
	v, err := ParseValue(raw)
	if err != nil {
		return fmt.Errorf("%s %s=%s: %w", elem.Name, key, raw, err)
	}
	set(v)
	return nil
}
