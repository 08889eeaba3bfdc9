// Package amps holds ready-made tube circuits.
package amps

import (
	"fmt"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/netlist"
)

// builder adds devices until the first error, which Circuit then returns.
type builder struct {
	ckt *circuit.Circuit
	err error
}

func newBuilder(name string, opts ...circuit.Option) *builder {
	return &builder{ckt: circuit.New(name, opts...)}
}

func (b *builder) value(s string) float64 {
	v, err := netlist.ParseValue(s)
	if err != nil && b.err == nil {
		b.err = err
	}
	return v
}

func (b *builder) add(d device.Device, nodes ...string) {
	if b.err != nil {
		return
	}
	if err := b.ckt.Add(d, nodes...); err != nil {
		b.err = fmt.Errorf("%s: %w", b.ckt.Name(), err)
	}
}

func (b *builder) R(name, a, c, v string) { b.add(device.NewResistor(name, b.value(v)), a, c) }
func (b *builder) C(name, a, c, v string) { b.add(device.NewCapacitor(name, b.value(v)), a, c) }
func (b *builder) V(name, a, c, v string) { b.add(device.NewVoltageSource(name, b.value(v)), a, c) }

func (b *builder) triode(name, p, g, k string) { b.add(device.NewTriode(name), p, g, k) }

func (b *builder) pot(name, a, c, w, v string, wipe float64) {
	p := device.NewPotentiometer(name, b.value(v))
	p.SetWipe(wipe)
	b.add(p, a, c, w)
}

func (b *builder) rheostat(name, a, c, v string, wipe float64) {
	r := device.NewVariableResistor(name, b.value(v))
	r.SetWipe(wipe)
	b.add(r, a, c)
}

func (b *builder) build() (*circuit.Circuit, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.ckt, nil
}

// CommonCathode is a single 12AX7 gain stage: 300 V supply, 100k plate
// load, 1.5k bypassed cathode resistor, input V1 coupled through 22n and a
// 1M volume pot on the output.
func CommonCathode(opts ...circuit.Option) (*circuit.Circuit, error) {
	b := newBuilder("common cathode", opts...)
	b.add(device.NewInput("V1"), "in", "0")
	b.C("CIN", "in", "g", "22n")
	b.R("RG", "g", "0", "1M")
	b.V("VB", "vb", "0", "300")
	b.R("RP", "vb", "p", "100k")
	b.triode("U1", "p", "g", "k")
	b.R("RK", "k", "0", "1.5k")
	b.C("CK", "k", "0", "22u")
	b.C("COUT", "p", "out", "22n")
	b.pot("VOL", "out", "0", "w", "1M", 0.5)
	return b.build()
}
