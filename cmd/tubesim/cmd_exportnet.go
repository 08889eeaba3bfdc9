package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edp1096/tube-spice/pkg/netlist"
	"github.com/spf13/cobra"
)

func newExportNetCmd(a *app) *cobra.Command {
	var keepName bool
	cmd := &cobra.Command{
		Use:   "exportnet <in> <out>",
		Short: "Write a circuit as a SPICE netlist",
		Long: `Reads a YAML schematic or a netlist and writes it as a SPICE netlist for
simulators with the 12AX7 include file. The circuit is named after the input
file unless --keep-name is set. Devices without a netlist form are skipped
with a warning.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			ckt, err := a.loadCircuit(in)
			if err != nil {
				return err
			}
			if !keepName {
				ckt.SetName(strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)))
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			opts := a.cfg.Export.Options()
			opts.Logger = a.logger
			skipped, err := netlist.Export(f, ckt, opts)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("exporting %s: %w", in, err)
			}

			a.logger.Info("Netlist written", "path", out, "devices", len(ckt.Devices())-len(skipped), "skipped", len(skipped))
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepName, "keep-name", false, "keep the circuit's own name as the title")
	return cmd
}
