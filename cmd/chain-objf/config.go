package main

import (
	"os"

	"github.com/unixpickle/anychain"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional options file passed with
// --config.
// All fields are pointers so we can distinguish "not set"
// from zero values.
type Config struct {
	L2Regularize        *float64 `yaml:"l2_regularize"`
	LeakyHMMCoefficient *float64 `yaml:"leaky_hmm_coefficient"`
	XentRegularize      *float64 `yaml:"xent_regularize"`
	Fit                 *string  `yaml:"fit"`
	Degenerate          *string  `yaml:"degenerate"`
	Epsilon             *float64 `yaml:"epsilon"`

	Verbose  *int   `yaml:"verbose"`
	Workers  *int   `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(data, &cfg)
	return cfg, err
}

// buildOptions combines defaults, the config file, and
// explicitly set flags, in increasing priority.
func buildOptions(c *cli.Command, cfg Config) (*anychain.Options, error) {
	opts := anychain.DefaultOptions()

	floats := []struct {
		flag  string
		value *float64
		dest  *float64
	}{
		{"l2-regularize", cfg.L2Regularize, &opts.L2Regularize},
		{"leaky-hmm-coefficient", cfg.LeakyHMMCoefficient, &opts.LeakyHMMCoefficient},
		{"xent-regularize", cfg.XentRegularize, &opts.XentRegularize},
		{"epsilon", cfg.Epsilon, &opts.Epsilon},
	}
	for _, f := range floats {
		if c.IsSet(f.flag) {
			*f.dest = c.Float(f.flag)
		} else if f.value != nil {
			*f.dest = *f.value
		}
	}

	fit := c.String("fit")
	if !c.IsSet("fit") && cfg.Fit != nil {
		fit = *cfg.Fit
	}
	var err error
	if opts.Fit, err = anychain.ParseFitPolicy(fit); err != nil {
		return nil, err
	}

	degenerate := c.String("degenerate")
	if !c.IsSet("degenerate") && cfg.Degenerate != nil {
		degenerate = *cfg.Degenerate
	}
	if opts.Degenerate, err = anychain.ParseDegeneratePolicy(degenerate); err != nil {
		return nil, err
	}

	return opts, opts.Validate()
}

func intSetting(c *cli.Command, flag string, value *int) int {
	if !c.IsSet(flag) && value != nil {
		return *value
	}
	return c.Int(flag)
}
