package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"phasor-studio/internal/flimio"
)

var (
	exportOutput  string
	exportChannel int
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a photon-count intensity map as 16-bit TIFF",
	Long: `Sum a FLIM acquisition over its time axis and write the per-pixel
photon counts as a 16-bit grayscale TIFF, scaled to the full range.

Examples:
  phasor export sample.ptu -o intensity.tiff`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "intensity.tiff", "output TIFF path")
	exportCmd.Flags().IntVarP(&exportChannel, "channel", "c", 0, "detector channel")
}

func runExport(cmd *cobra.Command, args []string) error {
	sig, err := flimio.Load(args[0], exportChannel)
	if err != nil {
		return err
	}

	if err := flimio.WriteIntensityTIFF(exportOutput, sig.PhotonSum()); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%dx%d)\n", exportOutput, sig.Width, sig.Height)
	return nil
}
