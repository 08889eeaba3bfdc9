package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/edp1096/tube-spice/pkg/analysis"
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/plot"
	"github.com/spf13/cobra"
)

func newCurvesCmd(a *app) *cobra.Command {
	var (
		vpkStart, vpkStop float64
		points            int
		vgk               []float64
		out               string
	)
	cmd := &cobra.Command{
		Use:   "curves [circuit]",
		Short: "Trace 12AX7 plate curves",
		Long: `Traces plate current against plate-cathode voltage for a set of grid
voltages. With a circuit argument the model parameters of its first triode
are used. Without --out the curves are printed as a table; with --out they
are plotted to a PNG, SVG or PDF file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := a.cfg.Curves
			flags := cmd.Flags()
			if flags.Changed("vpk-start") {
				cc.VpkStart = vpkStart
			}
			if flags.Changed("vpk-stop") {
				cc.VpkStop = vpkStop
			}
			if flags.Changed("points") {
				cc.Points = points
			}
			if flags.Changed("vgk") {
				cc.Vgk = vgk
			}
			if cc.Points < 2 || cc.VpkStop <= cc.VpkStart {
				return fmt.Errorf("need at least 2 points over an increasing Vpk range, got %d over %g..%g", cc.Points, cc.VpkStart, cc.VpkStop)
			}

			var ckt *circuit.Circuit
			if len(args) == 1 {
				var err error
				if ckt, err = a.loadCircuit(args[0]); err != nil {
					return err
				}
			}

			pc := analysis.NewPlateCurves(cc.VpkStart, cc.VpkStop, cc.Points, cc.Vgk)
			pc.Options = a.cfg.Solver.Options()
			pc.Logger = a.logger
			if err := pc.Setup(ckt); err != nil {
				return err
			}
			if err := pc.Execute(cmd.Context()); err != nil {
				return err
			}

			if out != "" {
				if err := plot.Save(out, pc.Curves(), "12AX7 plate curves"); err != nil {
					return err
				}
				a.logger.Info("Plot written", "path", out, "curves", len(pc.Curves()))
				return nil
			}
			printCurves(cmd.OutOrStdout(), pc.Curves())
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&vpkStart, "vpk-start", 0, "first plate-cathode voltage")
	f.Float64Var(&vpkStop, "vpk-stop", 400, "last plate-cathode voltage")
	f.IntVar(&points, "points", 41, "points per curve")
	f.Float64SliceVar(&vgk, "vgk", nil, "grid-cathode voltages, one curve each")
	f.StringVarP(&out, "out", "o", "", "plot file (.png, .svg, .pdf)")
	return cmd
}

// printCurves writes one row per Vpk with Ip in mA for each curve.
func printCurves(w io.Writer, curves []analysis.Curve) {
	if len(curves) == 0 {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%10s", "Vpk (V)")
	for _, c := range curves {
		fmt.Fprintf(&sb, " %12s", fmt.Sprintf("Vgk=%g", c.Vgk))
	}
	fmt.Fprintln(w, sb.String())

	for i, vpk := range curves[0].Vpk {
		sb.Reset()
		fmt.Fprintf(&sb, "%10.2f", vpk)
		for _, c := range curves {
			fmt.Fprintf(&sb, " %12.4f", c.Ip[i]*1e3)
		}
		fmt.Fprintln(w, sb.String())
	}
}
