package device

import "fmt"

// TopologyError reports a wiring mistake: a terminal connected twice, or a
// device analyzed while one of its terminals is still unconnected.
type TopologyError struct {
	Device   string
	Terminal string
	Reason   string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology: %s.%s: %s", e.Device, e.Terminal, e.Reason)
}

// ParameterError reports a parameter value a device cannot be analyzed with.
type ParameterError struct {
	Device string
	Param  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter: %s.%s = %v: %s", e.Device, e.Param, e.Value, e.Reason)
}

// UnsupportedDeviceError is returned by export sinks that have no rule for a
// device kind. It is not fatal; the device is skipped.
type UnsupportedDeviceError struct {
	Device string
	Type   string
	Sink   string
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("%s: unsupported device %s (%s)", e.Sink, e.Device, e.Type)
}
