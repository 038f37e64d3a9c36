// Command phasor is the phasor FLIM analysis CLI: it imports
// time-resolved acquisition files, calibrates phasor coordinates against
// a reference of known lifetime, filters pixels, and renders phasor
// plots.
package main

import "phasor-studio/cmd/phasor/cmd"

func main() {
	cmd.Execute()
}
