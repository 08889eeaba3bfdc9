package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
	"golang.org/x/sync/errgroup"
)

// Curve is the plate current of a triode against plate-cathode voltage at
// one fixed grid-cathode voltage.
type Curve struct {
	Vgk float64
	Vpk []float64
	Ip  []float64
}

// PlateCurves traces the plate characteristic of a triode, one curve per
// grid voltage. Curves are computed concurrently, each on its own circuit.
type PlateCurves struct {
	BaseAnalysis
	vpkStart, vpkStop float64
	points            int
	vgk               []float64
	template          *device.Triode
	curves            []Curve
}

func NewPlateCurves(vpkStart, vpkStop float64, points int, vgk []float64) *PlateCurves {
	return &PlateCurves{
		BaseAnalysis: *NewBaseAnalysis(),
		vpkStart:     vpkStart,
		vpkStop:      vpkStop,
		points:       points,
		vgk:          append([]float64(nil), vgk...),
		template:     device.NewTriode("U1"),
	}
}

// Setup takes the model parameters of the first triode in ckt. A nil circuit
// or one without a triode leaves the 12AX7 defaults.
func (pc *PlateCurves) Setup(ckt *circuit.Circuit) error {
	pc.Circuit = ckt
	if ckt == nil {
		return nil
	}
	for _, d := range ckt.Devices() {
		if t, ok := d.(*device.Triode); ok {
			pc.SetModel(t)
			return nil
		}
	}
	return nil
}

// SetModel copies the parameters of t into the triode the curves are traced
// for.
func (pc *PlateCurves) SetModel(t *device.Triode) { copyModel(pc.template, t) }

func copyModel(dst, src *device.Triode) {
	dst.SetMu(src.Mu())
	dst.SetEx(src.Ex())
	dst.SetKg1(src.Kg1())
	dst.SetKp(src.Kp())
	dst.SetKvb(src.Kvb())
	dst.SetRgi(src.Rgi())
}

func (pc *PlateCurves) Execute(ctx context.Context) error {
	var (
		mu     sync.Mutex
		curves = make([]Curve, 0, len(pc.vgk))
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, vg := range pc.vgk {
		g.Go(func() error {
			curve, err := pc.trace(gCtx, vg)
			if err != nil {
				return fmt.Errorf("curve Vgk=%g: %w", vg, err)
			}
			mu.Lock()
			curves = append(curves, curve)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(curves, func(i, j int) bool { return curves[i].Vgk > curves[j].Vgk })
	pc.curves = curves
	for _, c := range curves {
		key := fmt.Sprintf("Ip(Vgk=%g)", c.Vgk)
		pc.results[key] = c.Ip
		pc.results["VPK"] = c.Vpk
	}
	pc.logger().Debug("Plate curves traced", "curves", len(curves), "points", pc.points)
	return nil
}

func (pc *PlateCurves) Curves() []Curve { return pc.curves }

func (pc *PlateCurves) trace(ctx context.Context, vgk float64) (Curve, error) {
	ckt := circuit.New(fmt.Sprintf("curves Vgk=%g", vgk), circuit.WithLogger(pc.logger()))
	tube := device.NewTriode("U1")
	copyModel(tube, pc.template)

	if err := ckt.Add(device.NewVoltageSource("VPK", pc.vpkStart), "p", "0"); err != nil {
		return Curve{}, err
	}
	if err := ckt.Add(device.NewVoltageSource("VGK", vgk), "g", "0"); err != nil {
		return Curve{}, err
	}
	if err := ckt.Add(tube, "p", "g", "0"); err != nil {
		return Curve{}, err
	}

	sweep := NewDCSweep("VPK", pc.vpkStart, pc.vpkStop, pc.points)
	sweep.Options = pc.Options
	sweep.Logger = pc.logger()
	if err := sweep.Setup(ckt); err != nil {
		return Curve{}, err
	}
	if err := sweep.Execute(ctx); err != nil {
		return Curve{}, err
	}

	res := sweep.GetResults()
	return Curve{
		Vgk: vgk,
		Vpk: res["SWEEP1"],
		Ip:  res["Ip(U1)"],
	}, nil
}
