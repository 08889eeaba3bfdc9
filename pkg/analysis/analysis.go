package analysis

import (
	"context"
	"log/slog"

	"github.com/edp1096/tube-spice/pkg/circuit"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute(ctx context.Context) error
	GetResults() map[string][]float64
}

// Options are the Newton-Raphson settings shared by every analysis.
type Options struct {
	MaxIter int
	AbsTol  float64 // current tolerance, A
	VnTol   float64 // voltage tolerance, V
	RelTol  float64
	// Gmin is the conductance from every node to ground that stays in the
	// system. The triode's E1 probe pair has no other path to ground.
	Gmin float64
	// MaxStep caps the largest node-voltage change of one Newton step, V.
	// Zero disables the cap.
	MaxStep float64
	// GminStart is the first shunt conductance of gmin stepping; each step
	// divides it by ten until it reaches Gmin.
	GminStart   float64
	SourceSteps int
	// Inputs binds Input devices by name. Unbound inputs sit at 0 V.
	Inputs map[string]float64
}

func DefaultOptions() Options {
	return Options{
		MaxIter:     100,
		AbsTol:      1e-12,
		VnTol:       1e-6,
		RelTol:      1e-6,
		Gmin:        1e-12,
		MaxStep:     0,
		GminStart:   1e-2,
		SourceSteps: 10,
	}
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	Options Options
	Logger  *slog.Logger
	results map[string][]float64
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{
		Options: DefaultOptions(),
		Logger:  slog.Default(),
		results: make(map[string][]float64),
	}
}

func (a *BaseAnalysis) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// appendResult appends each value of point to its series.
func (a *BaseAnalysis) appendResult(point map[string]float64) {
	for name, value := range point {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
