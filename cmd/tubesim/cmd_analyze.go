package main

import (
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/mna"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var parallel bool
	cmd := &cobra.Command{
		Use:   "analyze <in>",
		Short: "Print the stamps and equations of a circuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckt, err := a.loadCircuit(args[0])
			if err != nil {
				return err
			}
			sys, err := buildSystem(cmd, ckt, parallel)
			if err != nil {
				return err
			}
			return sys.Dump(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&parallel, "parallel", false, "analyze devices concurrently")
	return cmd
}

func buildSystem(cmd *cobra.Command, ckt *circuit.Circuit, parallel bool) (*mna.System, error) {
	if parallel {
		return ckt.AnalyzeParallel(cmd.Context())
	}
	return ckt.Analyze()
}
