package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phasor-studio/internal/app"
	"phasor-studio/internal/plot"
)

var (
	runOutput   string
	runModeName string
)

var runCmd = &cobra.Command{
	Use:   "run <project.phasorproj>",
	Short: "Replay a saved analysis session and render its phasor plot",
	Long: `Load a saved session: re-import its datasets, recompute the
calibration from the recorded reference (or fall back to the saved
correction scalars), re-run the filter pipeline, and render the plot.

Examples:
  phasor run session.phasorproj -o out.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutput, "output", "o", "phasor.png", "output PNG path")
	runCmd.Flags().StringVar(&runModeName, "mode", "density", "plot mode: density or scatter")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(runModeName)
	if err != nil {
		return err
	}

	state := app.NewState(cfg, logger)
	if err := state.LoadProject(args[0]); err != nil {
		return err
	}

	img, err := state.RenderPlot(mode)
	if err != nil {
		return err
	}

	f, err := os.Create(runOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", runOutput, err)
	}
	defer f.Close()
	if err := plot.EncodePNG(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", runOutput, err)
	}

	fmt.Printf("Wrote %s (%d datasets)\n", runOutput, state.Datasets.Len())
	return nil
}
