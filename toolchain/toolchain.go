// Package toolchain assembles the build command line for the host platform.
//
// The base command is always used as is. The conditional flag is appended
// unconditionally on non-primary platforms, and on the primary platform only
// if its Gate allows it.
package toolchain

import (
	"runtime"
)

const (
	DefaultTool       = "swift"
	DefaultSubcommand = "build"
	// IntegratedDriverFlag is needed to dump SIL with unsafeFlags.
	IntegratedDriverFlag = "--use-integrated-swift-driver"
	// Primary is the platform where the flag depends on the Xcode version.
	Primary = "darwin"
)

// Gate decides whether the conditional flag is used on the primary platform.
type Gate interface {
	Allow() bool
}

// Toolchain describes the build command.
type Toolchain struct {
	Tool       string
	Subcommand string
	Flag       string // Conditional flag, empty for none.
	Platform   string // GOOS value of the host.
	Gate       Gate   // Consulted on the primary platform only.
}

// Default returns the swift build toolchain for the running platform.
func Default(gate Gate) *Toolchain {
	return &Toolchain{
		Tool:       DefaultTool,
		Subcommand: DefaultSubcommand,
		Flag:       IntegratedDriverFlag,
		Platform:   runtime.GOOS,
		Gate:       gate,
	}
}

// Command returns the command line, tool name first.
func (tc *Toolchain) Command() []string {
	cmd := []string{tc.Tool, tc.Subcommand}
	if tc.Flag == "" {
		return cmd
	}
	if tc.Platform != Primary {
		return append(cmd, tc.Flag)
	}
	if tc.Gate != nil && tc.Gate.Allow() {
		cmd = append(cmd, tc.Flag)
	}
	return cmd
}

// CleanCommand returns the command line that removes previous build products.
func (tc *Toolchain) CleanCommand() []string {
	return []string{tc.Tool, "package", "clean"}
}
