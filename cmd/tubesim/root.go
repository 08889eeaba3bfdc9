package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/edp1096/tube-spice/internal/config"
	"github.com/edp1096/tube-spice/internal/logging"
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/netlist"
	"github.com/edp1096/tube-spice/pkg/schematic"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tubesim",
		Short:         "Analyze vacuum-tube circuits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: $TUBESIM_CONFIG, ./tubesim.yaml, ~/.config/tubesim/config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text, json")

	root.AddCommand(
		newExportNetCmd(a),
		newAnalyzeCmd(a),
		newOPCmd(a),
		newCurvesCmd(a),
		newIICPCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.configPath != "" {
		cfg, path, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	if path != "" {
		logger.Debug("Configuration loaded", "path", path)
	}
	return nil
}

// loadCircuit reads a YAML schematic (.yaml, .yml) or a SPICE netlist.
func (a *app) loadCircuit(path string) (*circuit.Circuit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	opt := circuit.WithLogger(a.logger)

	var ckt *circuit.Circuit
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err := schematic.Load(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ckt, err = s.Build(opt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		ckt, err = netlist.Parse(f, opt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if ckt.Name() == "" {
		ckt.SetName(name)
	}
	a.logger.Info("Circuit loaded", "path", path, "devices", len(ckt.Devices()))
	return ckt, nil
}
