package build

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/nickng/swanspm/manifest"
	"github.com/nickng/swanspm/sil"
	"github.com/nickng/swanspm/stage"
	"github.com/nickng/swanspm/toolchain"
	"go.uber.org/zap"
)

const (
	DefaultSources = "Sources"
	DefaultStaging = "swan-dir"
	stagedSrcDir   = "src"
	logFile        = "spm.log"
	outputFile     = "test.sil"
)

type Configurer interface {
	Builder
	Default() Configurer
	WithManifest(path, token string) Configurer
	WithSources(root, ext string) Configurer
	WithStaging(dir string) Configurer
	WithLogPath(path string) Configurer
	WithOutputPath(path string) Configurer
	WithMarker(marker, terminator string) Configurer
	WithToolchain(tc *toolchain.Toolchain) Configurer
	WithTool(tool string) Configurer
	WithTimeout(d time.Duration) Configurer
	WithCleanFirst(clean bool) Configurer
	WithRunner(r Runner) Configurer
	WithLogger(l *zap.SugaredLogger) Configurer
}

// Config represents a build-and-extract configuration.
type Config struct {
	dir string // Package directory, all other paths are relative to it.

	manifest string // Manifest path.
	token    string // Required manifest token.

	sources string // Source root.
	ext     string // Source file suffix.
	staging string // Staging root.
	logPath string // Build log path, derived from staging if empty.
	outPath string // SIL output path, derived from staging if empty.

	marker     string
	terminator string

	tc      *toolchain.Toolchain
	timeout time.Duration // 0 waits for the build forever.
	clean   bool          // Run the clean command first.

	runner Runner
	logger *zap.SugaredLogger
}

// FromDir returns a non-nil Configurer for the Swift package in dir.
func FromDir(dir string) Configurer {
	return newConfig(dir)
}

func newConfig(dir string) *Config {
	return &Config{
		dir:        dir,
		manifest:   manifest.DefaultPath,
		token:      manifest.DefaultToken,
		sources:    DefaultSources,
		ext:        stage.DefaultExt,
		staging:    DefaultStaging,
		marker:     sil.DefaultMarker,
		terminator: sil.DefaultTerminator,
		tc:         plainToolchain(),
		runner:     ExecRunner{},
		logger:     zap.NewNop().Sugar(),
	}
}

func plainToolchain() *toolchain.Toolchain {
	return &toolchain.Toolchain{
		Tool:       toolchain.DefaultTool,
		Subcommand: toolchain.DefaultSubcommand,
	}
}

// WithManifest sets the manifest file and the token it must contain.
func (c *Config) WithManifest(path, token string) Configurer {
	c.manifest = path
	c.token = token
	return c
}

// WithSources sets the source root and source file suffix.
func (c *Config) WithSources(root, ext string) Configurer {
	c.sources = root
	c.ext = ext
	return c
}

// WithStaging sets the staging root. Log and output paths not set
// explicitly are placed under it.
func (c *Config) WithStaging(dir string) Configurer {
	c.staging = dir
	return c
}

func (c *Config) WithLogPath(path string) Configurer {
	c.logPath = path
	return c
}

func (c *Config) WithOutputPath(path string) Configurer {
	c.outPath = path
	return c
}

// WithMarker sets the text starting the SIL block and the text ending it.
func (c *Config) WithMarker(marker, terminator string) Configurer {
	c.marker = marker
	c.terminator = terminator
	return c
}

// WithToolchain sets the build command. A nil toolchain restores the plain
// build command without the conditional flag.
func (c *Config) WithToolchain(tc *toolchain.Toolchain) Configurer {
	if tc == nil {
		tc = plainToolchain()
	}
	c.tc = tc
	return c
}

// WithTool replaces the build tool name, keeping the rest of the toolchain.
func (c *Config) WithTool(tool string) Configurer {
	tc := *c.tc
	tc.Tool = tool
	c.tc = &tc
	return c
}

// WithTimeout bounds the build. A zero duration disables the bound.
func (c *Config) WithTimeout(d time.Duration) Configurer {
	c.timeout = d
	return c
}

func (c *Config) WithCleanFirst(clean bool) Configurer {
	c.clean = clean
	return c
}

func (c *Config) WithRunner(r Runner) Configurer {
	c.runner = r
	return c
}

// WithLogger sets the logger for build progress.
func (c *Config) WithLogger(l *zap.SugaredLogger) Configurer {
	c.logger = l
	if gate, ok := c.tc.Gate.(*toolchain.VersionGate); ok {
		gate.Logger = l
	}
	return c
}

// Default returns a default configuration for SIL dumping, which adds the
// integrated Swift driver flag where the platform needs it.
func (c *Config) Default() Configurer {
	tool := c.tc.Tool
	c.tc = toolchain.Default(toolchain.XcodeGate(c.logger))
	c.tc.Tool = tool
	return c
}

// path resolves p against the package directory.
func (c *Config) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (c *Config) stagedSrc() string {
	return c.path(filepath.Join(c.staging, stagedSrcDir))
}

// stagedSources returns where the source root is mirrored in the staging
// tree. A source root outside the package directory is mirrored under its
// base name, so the copy always stays inside the staged tree.
func (c *Config) stagedSources() string {
	rel := filepath.Clean(c.sources)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(c.dir, rel)
		if err != nil {
			r = ".."
		}
		rel = r
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		abs, err := filepath.Abs(c.path(c.sources))
		if err != nil {
			abs = c.sources
		}
		rel = filepath.Base(abs)
	}
	return filepath.Join(c.stagedSrc(), rel)
}

func (c *Config) logFile() string {
	if c.logPath != "" {
		return c.path(c.logPath)
	}
	return c.path(filepath.Join(c.staging, logFile))
}

func (c *Config) outputFile() string {
	if c.outPath != "" {
		return c.path(c.outPath)
	}
	return c.path(filepath.Join(c.staging, outputFile))
}
