// Command ptudump prints the tag header and record statistics of a
// PicoQuant PTU file. It is a diagnostics tool for acquisition files that
// fail to import.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"

	"phasor-studio/internal/flimio"
)

func main() {
	channel := flag.Int("c", 0, "Detector channel to histogram")
	tagsOnly := flag.Bool("tags", false, "Print header tags only, skip record decoding")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: ptudump [-c <channel>] [-tags] <file.ptu>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	hdr, err := flimio.ReadPTUHeader(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read header: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Header (version %s) ===\n", hdr.Version)
	for _, tag := range hdr.Tags {
		switch v := tag.Value.(type) {
		case []byte:
			fmt.Printf("  %-36s <%d bytes>\n", tag.Name(), len(v))
		case []float64:
			fmt.Printf("  %-36s %v\n", tag.Name(), v)
		case nil:
			fmt.Printf("  %-36s <empty>\n", tag.Name())
		default:
			fmt.Printf("  %-36s %v\n", tag.Name(), v)
		}
	}
	if recType, ok := hdr.Int("TTResultFormat_TTTRRecType"); ok {
		fmt.Printf("\nRecord format: %s\n", flimio.RecordTypeName(recType))
	}

	if *tagsOnly {
		return
	}

	// Re-decode from the start so the record parser sees the header too.
	if _, err := f.Seek(0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Seek failed: %v\n", err)
		os.Exit(1)
	}
	sig, stats, err := flimio.DecodePTU(bufio.NewReaderSize(f, 1<<20), *channel)
	if stats != nil {
		fmt.Printf("\n=== Records ===\n")
		fmt.Printf("Records:   %d\n", stats.Records)
		fmt.Printf("Photons:   %d\n", stats.Photons)
		fmt.Printf("Markers:   %d (lines %d, frames %d)\n", stats.Markers, stats.Lines, stats.Frames)
		fmt.Printf("Dropped:   %d off-line, %d out-of-range dtime, %d other channels\n",
			stats.DroppedNoLine, stats.DroppedDtime, stats.DroppedChannel)

		chans := make([]int, 0, len(stats.PhotonsByChan))
		for ch := range stats.PhotonsByChan {
			chans = append(chans, ch)
		}
		sort.Ints(chans)
		for _, ch := range chans {
			fmt.Printf("  channel %d: %d photons\n", ch, stats.PhotonsByChan[ch])
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nDecode failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nImage: %dx%d pixels, %d time bins, %.3f MHz\n",
		sig.Width, sig.Height, sig.Bins, sig.FrequencyMHz)
	fmt.Printf("Histogrammed photons (channel %d): %.0f\n", *channel, sig.TotalCount())
}
