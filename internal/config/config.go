// Package config loads tubesim's settings.
//
// Config file locations (priority order):
//  1. $TUBESIM_CONFIG
//  2. ./tubesim.yaml
//  3. ~/.config/tubesim/config.yaml
//
// Without a file every setting has its default. Command-line flags override
// the file.
package config

import (
	"fmt"
	"os"

	"github.com/edp1096/tube-spice/pkg/amps"
	"github.com/edp1096/tube-spice/pkg/analysis"
	"github.com/edp1096/tube-spice/pkg/netlist"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Solver  SolverConfig         `yaml:"solver"`
	Logging LoggingConfig        `yaml:"logging"`
	Export  ExportConfig         `yaml:"export"`
	Curves  CurvesConfig         `yaml:"curves"`
	IICPlus amps.IICPlusControls `yaml:"iicp"`
}

type SolverConfig struct {
	MaxIterations int     `yaml:"max_iterations" validate:"gte=0"`
	AbsTol        float64 `yaml:"abstol" validate:"gte=0"`
	VnTol         float64 `yaml:"vntol" validate:"gte=0"`
	RelTol        float64 `yaml:"reltol" validate:"gte=0"`
	Gmin          float64 `yaml:"gmin" validate:"gte=0"`
	MaxStep       float64 `yaml:"max_step" validate:"gte=0"`
	GminStart     float64 `yaml:"gmin_start" validate:"gte=0"`
	SourceSteps   int     `yaml:"source_steps" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type ExportConfig struct {
	TriodeModel string `yaml:"triode_model"`
	Include     string `yaml:"include"`
}

type CurvesConfig struct {
	VpkStart float64   `yaml:"vpk_start"`
	VpkStop  float64   `yaml:"vpk_stop" validate:"gtfield=VpkStart"`
	Points   int       `yaml:"points" validate:"gte=0"`
	Vgk      []float64 `yaml:"vgk"`
}

// Load finds and loads the config file, or returns defaults if none found.
// The returned path is empty in that case.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. Settings the file omits
// keep their defaults.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, path, nil
}

func DefaultConfig() *Config {
	opts := analysis.DefaultOptions()
	return &Config{
		Solver: SolverConfig{
			MaxIterations: opts.MaxIter,
			AbsTol:        opts.AbsTol,
			VnTol:         opts.VnTol,
			RelTol:        opts.RelTol,
			Gmin:          opts.Gmin,
			MaxStep:       opts.MaxStep,
			GminStart:     opts.GminStart,
			SourceSteps:   opts.SourceSteps,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Export: ExportConfig{
			TriodeModel: netlist.DefaultTriodeModel,
			Include:     netlist.DefaultInclude,
		},
		Curves: CurvesConfig{
			VpkStart: 0,
			VpkStop:  400,
			Points:   41,
			Vgk:      []float64{0, -0.5, -1, -1.5, -2, -2.5, -3, -3.5, -4},
		},
		IICPlus: amps.DefaultIICPlusControls(),
	}
}

// applyDefaults replaces settings that were explicitly zeroed or emptied and
// have no meaningful zero value.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Solver.MaxIterations == 0 {
		c.Solver.MaxIterations = def.Solver.MaxIterations
	}
	if c.Solver.VnTol == 0 {
		c.Solver.VnTol = def.Solver.VnTol
	}
	if c.Solver.RelTol == 0 {
		c.Solver.RelTol = def.Solver.RelTol
	}
	if c.Solver.GminStart == 0 {
		c.Solver.GminStart = def.Solver.GminStart
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Export.TriodeModel == "" {
		c.Export.TriodeModel = def.Export.TriodeModel
	}
	if c.Export.Include == "" {
		c.Export.Include = def.Export.Include
	}
	if c.Curves.Points < 2 {
		c.Curves.Points = def.Curves.Points
	}
	if len(c.Curves.Vgk) == 0 {
		c.Curves.Vgk = def.Curves.Vgk
	}
}

// Options converts the solver settings for the analysis package.
func (s SolverConfig) Options() analysis.Options {
	opts := analysis.DefaultOptions()
	opts.MaxIter = s.MaxIterations
	opts.AbsTol = s.AbsTol
	opts.VnTol = s.VnTol
	opts.RelTol = s.RelTol
	opts.Gmin = s.Gmin
	opts.MaxStep = s.MaxStep
	opts.GminStart = s.GminStart
	opts.SourceSteps = s.SourceSteps
	return opts
}

func (e ExportConfig) Options() netlist.ExportOptions {
	return netlist.ExportOptions{TriodeModel: e.TriodeModel, Include: e.Include}
}
