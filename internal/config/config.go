// Package config holds analysis defaults and their YAML override file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlotBounds frame the phasor plot in coordinate space.
type PlotBounds struct {
	GMin float64 `yaml:"g_min"`
	GMax float64 `yaml:"g_max"`
	SMin float64 `yaml:"s_min"`
	SMax float64 `yaml:"s_max"`
}

// Config carries the tunable analysis defaults.
type Config struct {
	// Plotting
	MaxPlotPoints int        `yaml:"max_plot_points"`
	PlotWidth     int        `yaml:"plot_width"`
	PlotHeight    int        `yaml:"plot_height"`
	Plot          PlotBounds `yaml:"plot_bounds"`

	// Filtering
	PhotonMinDefault    float64 `yaml:"photon_min_default"`
	PhotonMaxDefault    float64 `yaml:"photon_max_default"` // negative = unbounded
	MedianKernelDefault int     `yaml:"median_kernel_default"`
	MedianRepeatDefault int     `yaml:"median_repeat_default"`

	// Calibration
	CenterMethod        string  `yaml:"center_method"` // mean or median
	DefaultFrequencyMHz float64 `yaml:"default_frequency_mhz"`
	DefaultLifetimeNS   float64 `yaml:"default_lifetime_ns"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxPlotPoints: 200_000,
		PlotWidth:     800,
		PlotHeight:    640,
		Plot: PlotBounds{
			GMin: -0.05,
			GMax: 1.05,
			SMin: -0.05,
			SMax: 0.70,
		},
		PhotonMinDefault:    0,
		PhotonMaxDefault:    -1,
		MedianKernelDefault: 3,
		MedianRepeatDefault: 1,
		CenterMethod:        "mean",
		DefaultFrequencyMHz: 80,
		DefaultLifetimeNS:   4,
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxPlotPoints < 1 {
		return fmt.Errorf("max_plot_points must be >= 1, got %d", c.MaxPlotPoints)
	}
	if c.PlotWidth < 128 || c.PlotHeight < 128 {
		return fmt.Errorf("plot size %dx%d too small", c.PlotWidth, c.PlotHeight)
	}
	if c.Plot.GMax <= c.Plot.GMin || c.Plot.SMax <= c.Plot.SMin {
		return fmt.Errorf("plot bounds are empty")
	}
	if c.MedianKernelDefault < 3 || c.MedianKernelDefault%2 == 0 {
		return fmt.Errorf("median_kernel_default must be odd and >= 3, got %d", c.MedianKernelDefault)
	}
	if c.MedianRepeatDefault < 1 {
		return fmt.Errorf("median_repeat_default must be >= 1, got %d", c.MedianRepeatDefault)
	}
	if c.CenterMethod != "mean" && c.CenterMethod != "median" {
		return fmt.Errorf("center_method must be mean or median, got %q", c.CenterMethod)
	}
	return nil
}
