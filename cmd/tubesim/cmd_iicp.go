package main

import (
	"github.com/edp1096/tube-spice/pkg/amps"
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/spf13/cobra"
)

func newIICPCmd(a *app) *cobra.Command {
	var (
		parallel bool
		solve    bool
	)
	cmd := &cobra.Command{
		Use:   "iicp",
		Short: "Analyze the built-in Mesa Mark IIC+ preamp",
		Long: `Builds the Mark IIC+ lead preamp with the control settings from the config
file (iicp: treble, mid, bass, gain, master, volume) and prints its equation
system. With --op it also solves the operating point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ckt, err := amps.IICPlus(a.cfg.IICPlus, circuit.WithLogger(a.logger))
			if err != nil {
				return err
			}
			sys, err := buildSystem(cmd, ckt, parallel)
			if err != nil {
				return err
			}
			if err := sys.Dump(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !solve {
				return nil
			}

			op, err := a.runOP(cmd, ckt, a.cfg.Solver.Options())
			if err != nil {
				return err
			}
			printOP(cmd.OutOrStdout(), ckt.Name(), op.GetResults())
			return nil
		},
	}
	cmd.Flags().BoolVar(&parallel, "parallel", false, "analyze devices concurrently")
	cmd.Flags().BoolVar(&solve, "op", false, "also solve the DC operating point")
	return cmd
}
