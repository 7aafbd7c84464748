// Package build is a helper package for building a Swift package with SIL
// dumping enabled and extracting the SIL into a file.
//
// # Usage
//
// A run is configured from the package directory and then built:
//
//	conf := build.FromDir("path/to/package").Default()
//	info, err := conf.Build(ctx)
//
// The build is linear: the manifest is checked, the single source file is
// staged, the build tool runs to completion, its log is written, and the SIL
// block is extracted from the log and written.
//
// All paths are relative to the package directory, so a run never depends on
// the working directory of the calling process.
package build
