package circuit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edp1096/tube-spice/pkg/device"
	"github.com/edp1096/tube-spice/pkg/mna"
	"golang.org/x/sync/errgroup"
)

// Circuit owns the node arena and the device list of one schematic, and
// caches the equation system built from them.
type Circuit struct {
	name    string
	arena   *mna.Arena
	devices []device.Device
	byName  map[string]device.Device
	logger  *slog.Logger

	mu        sync.Mutex
	system    *mna.System
	revisions []uint64
	dirty     bool
}

type Option func(*Circuit)

func WithLogger(l *slog.Logger) Option {
	return func(c *Circuit) { c.logger = l }
}

func New(name string, opts ...Option) *Circuit {
	c := &Circuit{
		name:   name,
		arena:  mna.NewArena(),
		byName: make(map[string]device.Device),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Circuit) Name() string               { return c.name }
func (c *Circuit) SetName(name string)        { c.name = name }
func (c *Circuit) Logger() *slog.Logger       { return c.logger }
func (c *Circuit) Arena() *mna.Arena          { return c.arena }
func (c *Circuit) Node(name string) mna.Node  { return c.arena.Named(name) }
func (c *Circuit) NodeName(n mna.Node) string { return c.arena.Name(n) }

// Add registers d and, when nodes are given, wires its terminals to them in
// pinout order.
func (c *Circuit) Add(d device.Device, nodes ...string) error {
	if _, exists := c.byName[d.Name()]; exists {
		return fmt.Errorf("circuit %s: duplicate device name %q", c.name, d.Name())
	}
	if len(nodes) > 0 {
		if err := c.Connect(d, nodes...); err != nil {
			return err
		}
	}

	c.devices = append(c.devices, d)
	c.byName[d.Name()] = d
	d.Watch(c.onChange)
	c.Invalidate()
	return nil
}

// Connect wires the terminals of d to the named nodes in pinout order. It
// wires nothing unless every terminal is still unwired.
func (c *Circuit) Connect(d device.Device, nodes ...string) error {
	terms := d.Terminals()
	if len(nodes) != len(terms) {
		return fmt.Errorf("device %s: %d terminals, got %d nodes", d.Name(), len(terms), len(nodes))
	}
	for _, t := range terms {
		if t.Wired() {
			return &device.TopologyError{Device: d.Name(), Terminal: t.Name(), Reason: "already connected"}
		}
	}
	for i, t := range terms {
		if err := t.ConnectTo(c.arena.Named(nodes[i])); err != nil {
			return err
		}
	}
	return nil
}

func (c *Circuit) Devices() []device.Device { return c.devices }

func (c *Circuit) Device(name string) (device.Device, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// TerminalNames returns the node names d's terminals are wired to, in
// pinout order.
func (c *Circuit) TerminalNames(d device.Device) []string {
	terms := d.Terminals()
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = c.arena.Name(t.Node())
	}
	return names
}

// Invalidate drops the cached system.
func (c *Circuit) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

func (c *Circuit) onChange(d device.Device, param string) {
	c.logger.Debug("Parameter changed", "circuit", c.name, "device", d.Name(), "param", param, "revision", d.Revision())
	c.Invalidate()
}

func (c *Circuit) cached() *mna.System {
	if c.system == nil || c.dirty || len(c.revisions) != len(c.devices) {
		return nil
	}
	for i, d := range c.devices {
		if d.Revision() != c.revisions[i] {
			return nil
		}
	}
	return c.system
}

func (c *Circuit) snapshot() []uint64 {
	revs := make([]uint64, len(c.devices))
	for i, d := range c.devices {
		revs[i] = d.Revision()
	}
	return revs
}

func (c *Circuit) store(sys *mna.System, revs []uint64) {
	c.system = sys
	c.revisions = revs
	c.dirty = false
}

// Analyze builds the equation system, analyzing devices one after another.
// The result is cached until a device parameter changes or a device is added.
func (c *Circuit) Analyze() (*mna.System, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sys := c.cached(); sys != nil {
		return sys, nil
	}

	revs := c.snapshot()
	sys := mna.NewSystem(c.arena)
	for _, d := range c.devices {
		r := sys.Recorder(d.Name())
		if err := analyzeDevice(d, r); err != nil {
			return nil, err
		}
		sys.Commit(r)
	}

	c.logger.Debug("Equation system built", "circuit", c.name, "devices", len(c.devices), "stamps", len(sys.Stamps()))
	c.store(sys, revs)
	return sys, nil
}

// AnalyzeParallel is Analyze with one goroutine per device. Branch numbering
// follows commit order and is therefore not stable between calls.
func (c *Circuit) AnalyzeParallel(ctx context.Context) (*mna.System, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sys := c.cached(); sys != nil {
		return sys, nil
	}

	revs := c.snapshot()
	sys := mna.NewSystem(c.arena)
	g, gCtx := errgroup.WithContext(ctx)
	for _, d := range c.devices {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			r := sys.Recorder(d.Name())
			if err := analyzeDevice(d, r); err != nil {
				return err
			}
			sys.Commit(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("Equation system built in parallel", "circuit", c.name, "devices", len(c.devices), "stamps", len(sys.Stamps()))
	c.store(sys, revs)
	return sys, nil
}

func analyzeDevice(d device.Device, r *mna.Recorder) error {
	if err := d.Analyze(r); err != nil {
		return fmt.Errorf("analyzing device %s: %w", d.Name(), err)
	}
	if dangling := r.Unreferenced(); len(dangling) > 0 {
		return fmt.Errorf("analyzing device %s: %d internal node(s) not referenced by any stamp", d.Name(), len(dangling))
	}
	return nil
}
