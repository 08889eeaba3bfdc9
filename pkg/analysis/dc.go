package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"gonum.org/v1/gonum/floats"
)

// DCSweep steps the value of one independent source and records the
// operating point at every value. Each point starts Newton from the
// previous solution.
type DCSweep struct {
	BaseAnalysis
	sourceName string
	sweepVals  []float64
	set        func(float64)
	origVal    float64
}

// NewDCSweep sweeps source over points evenly spaced values from start to
// stop inclusive.
func NewDCSweep(source string, start, stop float64, points int) *DCSweep {
	if points < 2 {
		points = 2
	}
	return &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceName:   source,
		sweepVals:    floats.Span(make([]float64, points), start, stop),
	}
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return errors.New("circuit not set")
	}
	dc.Circuit = ckt

	dev, ok := ckt.Device(dc.sourceName)
	if !ok {
		return fmt.Errorf("source %s not found", dc.sourceName)
	}
	switch src := dev.(type) {
	case *device.VoltageSource:
		dc.origVal = src.Voltage()
		dc.set = src.SetVoltage
	case *device.CurrentSource:
		dc.origVal = src.Current()
		dc.set = src.SetCurrent
	default:
		return fmt.Errorf("device %s (%s) cannot be swept", dc.sourceName, dev.Type())
	}
	return nil
}

func (dc *DCSweep) Values() []float64 { return dc.sweepVals }

func (dc *DCSweep) Execute(ctx context.Context) error {
	if dc.Circuit == nil || dc.set == nil {
		return errors.New("circuit not set")
	}
	defer dc.set(dc.origVal)

	op := NewOP()
	op.Options = dc.Options
	op.Logger = dc.logger()
	if err := op.Setup(dc.Circuit); err != nil {
		return err
	}

	for _, val := range dc.sweepVals {
		if err := ctx.Err(); err != nil {
			return err
		}
		dc.set(val)
		if err := op.Execute(ctx); err != nil {
			return fmt.Errorf("convergence error at %s=%g: %w", dc.sourceName, val, err)
		}
		op.Guess = op.Solution()

		point := Point(dc.Circuit, op.System(), op.Solution(), dc.Options.Inputs)
		point["SWEEP1"] = val
		dc.appendResult(point)
	}
	return nil
}
