// Command swanspm builds a single-file Swift package with SIL dumping enabled
// and writes the canonical SIL to a file.
//
// Call 'swift package clean' beforehand, or use -clean.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/nickng/swanspm/config"
	"github.com/nickng/swanspm/manifest"
	"github.com/nickng/swanspm/sil"
	"github.com/nickng/swanspm/sil/build"
	"github.com/nickng/swanspm/stage"
	"github.com/pkg/errors"
)

const (
	Usage = `swanspm is a tool for dumping the SIL of a single-file Swift package.

Usage:

  swanspm [options] [package-dir]

Options:

`
)

// Exit statuses.
const (
	exitOK = iota
	exitError
	exitConfiguration
	exitAmbiguousSource
	exitMarkerNotFound
	exitTerminatorNotFound
	exitTimeout
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	staging    string
	outPath    string
	logPath    string
	tool       string
	timeout    time.Duration
	clean      bool
	verbose    bool
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flags := flag.NewFlagSet("swanspm", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, Usage)
		flags.PrintDefaults()
	}
	flags.StringVar(&opts.configPath, "config", "", "Specify configuration file (default: "+config.DefaultFile+" in package-dir if present)")
	flags.StringVar(&opts.staging, "staging", build.DefaultStaging, "Specify staging directory")
	flags.StringVar(&opts.outPath, "out", "", "Specify SIL output file (default: <staging>/test.sil)")
	flags.StringVar(&opts.logPath, "log", "", "Specify build log file (default: <staging>/spm.log)")
	flags.StringVar(&opts.tool, "tool", "", "Specify swift executable")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Kill the build after this long (0: no timeout)")
	flags.BoolVar(&opts.clean, "clean", false, "Run 'swift package clean' before building")
	flags.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitError
	}
	dir := "."
	if flags.NArg() > 0 {
		dir = flags.Arg(0)
	}

	logger, err := newLogger(opts.verbose, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Cannot create logger:", err)
		return exitError
	}
	// Sync error ignored. See https://github.com/uber-go/zap/issues/328
	defer logger.Sync()

	conf := build.FromDir(dir).WithLogger(logger).Default()
	conf, err = applyConfigFile(conf, dir, opts.configPath)
	if err != nil {
		return fail(stderr, err)
	}
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "staging":
			conf = conf.WithStaging(opts.staging)
		case "out":
			conf = conf.WithOutputPath(opts.outPath)
		case "log":
			conf = conf.WithLogPath(opts.logPath)
		case "tool":
			conf = conf.WithTool(opts.tool)
		case "timeout":
			conf = conf.WithTimeout(opts.timeout)
		case "clean":
			conf = conf.WithCleanFirst(opts.clean)
		}
	})

	info, err := conf.Build(context.Background())
	report(stdout, info)
	if err != nil {
		return fail(stderr, err)
	}
	color.New(color.FgGreen).Fprintf(stdout, "SIL written to %s\n", info.OutputPath)
	return exitOK
}

// applyConfigFile applies the configuration file at path, or the default file
// in dir if path is empty and the default file exists.
func applyConfigFile(conf build.Configurer, dir, path string) (build.Configurer, error) {
	if path == "" {
		path = filepath.Join(dir, config.DefaultFile)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return conf, nil
		}
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return f.Apply(conf), nil
}

// report prints what happened to the build, if it ran.
func report(w io.Writer, info *sil.Info) {
	if info == nil || info.LogPath == "" {
		return
	}
	fmt.Fprintf(w, "%s finished in %ds\n", info.Command[0], int(info.Elapsed.Seconds()))
	fmt.Fprintf(w, "%s output written to %s\n", info.Command[0], info.LogPath)
	if info.Failed() {
		color.New(color.FgRed).Fprintf(w, "%s failed. Please see %s\n", info.Command[0], info.LogPath)
	}
	fmt.Fprintln(w)
}

func fail(w io.Writer, err error) int {
	color.New(color.FgRed).Fprintln(w, err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch err := errors.Cause(err).(type) {
	case nil:
		return exitOK
	case *manifest.ConfigurationError:
		return exitConfiguration
	case *stage.AmbiguousSourceError:
		return exitAmbiguousSource
	case *sil.ExtractionError:
		if err.Kind == sil.TerminatorNotFound {
			return exitTerminatorNotFound
		}
		return exitMarkerNotFound
	case *build.TimeoutError:
		return exitTimeout
	}
	return exitError
}
