package device

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/edp1096/tube-spice/pkg/expr"
	"github.com/edp1096/tube-spice/pkg/mna"
)

type Device interface {
	Name() string
	SetName(name string)
	Type() string
	// Terminals returns the device's connection points in canonical pinout
	// order. The slice length never changes.
	Terminals() []*Terminal
	// Analyze emits the device's constraints into b. It allocates fresh
	// internal nodes on every call.
	Analyze(b mna.Builder) error
	// Revision advances every time a parameter changes value.
	Revision() uint64
	Watch(w Watcher)
}

// Watcher is called once per effective parameter change.
type Watcher func(d Device, param string)

type Terminal struct {
	owner *BaseDevice
	name  string
	node  mna.Node
	wired bool
}

func (t *Terminal) Name() string { return t.name }

// ConnectTo wires the terminal. A terminal can be wired only once.
func (t *Terminal) ConnectTo(n mna.Node) error {
	if t.wired {
		return &TopologyError{Device: t.owner.name, Terminal: t.name, Reason: "already connected"}
	}
	t.node = n
	t.wired = true
	return nil
}

func (t *Terminal) Wired() bool    { return t.wired }
func (t *Terminal) Node() mna.Node { return t.node }

// V is the voltage of the connected node relative to ground.
func (t *Terminal) V() expr.Expr { return mna.V(t.node) }

type BaseDevice struct {
	self      Device
	name      string
	typ       string
	terminals []*Terminal
	revision  atomic.Uint64

	mu       sync.Mutex
	watchers []Watcher
}

func (d *BaseDevice) init(self Device, name, typ string, pins ...string) {
	d.self = self
	d.name = name
	d.typ = typ
	d.terminals = make([]*Terminal, len(pins))
	for i, p := range pins {
		d.terminals[i] = &Terminal{owner: d, name: p}
	}
}

func (d *BaseDevice) Name() string           { return d.name }
func (d *BaseDevice) SetName(name string)    { d.name = name }
func (d *BaseDevice) Type() string           { return d.typ }
func (d *BaseDevice) Terminals() []*Terminal { return d.terminals }
func (d *BaseDevice) Revision() uint64       { return d.revision.Load() }

func (d *BaseDevice) Watch(w Watcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers = append(d.watchers, w)
}

func (d *BaseDevice) terminal(i int) *Terminal { return d.terminals[i] }

// setParam stores v into *p. Writing the current value (NaN included) is a
// no-op; anything else bumps the revision and notifies each watcher once.
func (d *BaseDevice) setParam(param string, p *float64, v float64) {
	if *p == v || (math.IsNaN(*p) && math.IsNaN(v)) {
		return
	}
	*p = v
	d.revision.Add(1)

	d.mu.Lock()
	watchers := append([]Watcher(nil), d.watchers...)
	d.mu.Unlock()
	for _, w := range watchers {
		w(d.self, param)
	}
}

// checkTerminals fails when any terminal is still unconnected.
func (d *BaseDevice) checkTerminals() error {
	for _, t := range d.terminals {
		if !t.wired {
			return &TopologyError{Device: d.name, Terminal: t.name, Reason: "not connected"}
		}
	}
	return nil
}

func (d *BaseDevice) positive(param string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return &ParameterError{Device: d.name, Param: param, Value: v, Reason: "must be positive and finite"}
	}
	return nil
}

func (d *BaseDevice) finite(param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ParameterError{Device: d.name, Param: param, Value: v, Reason: "must be finite"}
	}
	return nil
}
