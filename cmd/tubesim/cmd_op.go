package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/edp1096/tube-spice/pkg/analysis"
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/netlist"
	"github.com/edp1096/tube-spice/pkg/util"
	"github.com/spf13/cobra"
)

func newOPCmd(a *app) *cobra.Command {
	var inputs map[string]string
	cmd := &cobra.Command{
		Use:   "op <in>",
		Short: "Solve the DC operating point of a circuit",
		Long: `Solves the DC operating point with Newton-Raphson and prints node voltages
and device currents. Signal inputs sit at 0 V unless set with --input, e.g.
--input V1=0.5.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckt, err := a.loadCircuit(args[0])
			if err != nil {
				return err
			}
			opts := a.cfg.Solver.Options()
			opts.Inputs, err = parseInputs(inputs)
			if err != nil {
				return err
			}

			op, err := a.runOP(cmd, ckt, opts)
			if err != nil {
				return err
			}
			printOP(cmd.OutOrStdout(), ckt.Name(), op.GetResults())
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "input source values, NAME=VALUE")
	return cmd
}

func (a *app) runOP(cmd *cobra.Command, ckt *circuit.Circuit, opts analysis.Options) (*analysis.OperatingPoint, error) {
	op := analysis.NewOP()
	op.Options = opts
	op.Logger = a.logger
	if err := op.Setup(ckt); err != nil {
		return nil, err
	}
	if err := op.Execute(cmd.Context()); err != nil {
		return nil, err
	}
	return op, nil
}

func parseInputs(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	inputs := make(map[string]float64, len(raw))
	for name, s := range raw {
		v, err := netlist.ParseValue(s)
		if err != nil {
			return nil, fmt.Errorf("--input %s: %w", name, err)
		}
		inputs[name] = v
	}
	return inputs, nil
}

func printOP(w io.Writer, name string, results map[string][]float64) {
	var voltages, currents []string
	for key := range results {
		if strings.HasPrefix(key, "V(") {
			voltages = append(voltages, key)
		} else {
			currents = append(currents, key)
		}
	}
	sort.Strings(voltages)
	sort.Strings(currents)

	fmt.Fprintf(w, "Operating point: %s\n", name)
	fmt.Fprintln(w, "\nNode Voltages:")
	for _, key := range voltages {
		fmt.Fprintf(w, "  %-16s %s\n", key, util.FormatValueFactor(last(results[key]), "V"))
	}
	fmt.Fprintln(w, "\nDevice Currents:")
	for _, key := range currents {
		fmt.Fprintf(w, "  %-16s %s\n", key, util.FormatValueFactor(last(results[key]), "A"))
	}
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}
