package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phasor-studio/internal/config"
	"phasor-studio/internal/version"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Shared by all commands, set up before any RunE fires.
	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "phasor",
	Short: "Phasor-based FLIM analysis",
	Long: `Phasor-based fluorescence lifetime image analysis.

Imports time-resolved FLIM acquisitions (PicoQuant PTU, multi-page TIFF
stacks), transforms them into phasor coordinates, calibrates against a
reference sample of known lifetime, filters pixels, and renders phasor
plots.

Examples:
  phasor info sample.ptu                               # inspect a file
  phasor calibrate -r fluorescein.ptu --lifetime 4.0   # derive corrections
  phasor plot sample.ptu -r fluorescein.ptu -o out.png # full pipeline
  phasor export sample.ptu -o intensity.tiff           # photon-count map`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "phasor.yaml", "config file path")
}
