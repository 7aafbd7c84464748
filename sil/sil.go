// Package sil holds the result of a SIL dumping build and extracts the
// textual SIL block from the captured build log.
//
// The SIL itself is treated as opaque text: it is located by a marker and
// terminated by a run of blank lines, and never parsed.
package sil

import (
	"time"
)

const (
	// DefaultMarker starts the canonical SIL dump in a build log.
	DefaultMarker = "sil_stage canonical"
	// DefaultTerminator ends the SIL dump: two empty lines after content.
	DefaultTerminator = "\n\n\n"
)

// Info holds the results of one build-and-extract run.
// To populate this structure, the 'build' subpackage should be used.
type Info struct {
	Command []string      // Build command line, tool name first.
	Staged  string        // Path of the staged source file, empty if none.
	Elapsed time.Duration // Wall-clock time of the build.

	ExitStatus int    // Exit status of the build process.
	Stdout     string // Captured build log.
	Stderr     string // Captured error stream, not processed further.

	LogPath    string // Where Stdout was written.
	OutputPath string // Where Block was written.
	Block      string // Extracted SIL, including the marker.
}

// Failed reports whether the build process exited with a non-zero status.
func (info *Info) Failed() bool {
	return info.ExitStatus != 0
}
