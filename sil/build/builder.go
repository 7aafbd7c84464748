package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/magefile/mage/sh"
	"github.com/nickng/swanspm/manifest"
	"github.com/nickng/swanspm/sil"
	"github.com/nickng/swanspm/stage"
	"github.com/pkg/errors"
)

// Builder builds the package and extracts its SIL.
type Builder interface {
	Build(ctx context.Context) (*sil.Info, error)
}

// Runner runs a command in dir to completion.
//
// status is the exit status of the command. err is non-nil only if the
// command could not be run or was interrupted by ctx; a command exiting with
// a non-zero status is not an error.
type Runner interface {
	Run(ctx context.Context, dir string, stdout, stderr io.Writer, cmd string, args ...string) (status int, err error)
}

// waitDelay bounds how long output is still copied after a cancelled
// command is killed, as its own children may keep the pipes open.
const waitDelay = 5 * time.Second

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, stdout, stderr io.Writer, cmd string, args ...string) (int, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = dir
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = waitDelay
	err := c.Run()
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return sh.ExitStatus(err), ctxErr
	}
	if _, ok := err.(*exec.ExitError); ok {
		return sh.ExitStatus(err), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// TimeoutError is returned when the build does not finish within the
// configured timeout.
type TimeoutError struct {
	Command []string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s", strings.Join(e.Command, " "), e.Timeout)
}

func (c *Config) Build(ctx context.Context) (*sil.Info, error) {
	log := c.logger

	if err := manifest.Check(c.path(c.manifest), c.token); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.path(c.staging), 0755); err != nil {
		return nil, errors.Wrap(err, "cannot create staging root")
	}
	if err := stage.Reset(c.stagedSrc()); err != nil {
		return nil, err
	}
	staged, err := stage.Stage(c.path(c.sources), c.stagedSources(), c.ext)
	if err != nil {
		return nil, err
	}
	if staged == "" {
		log.Infow("No source file to stage", "sources", c.path(c.sources), "ext", c.ext)
	} else {
		log.Infow("Staged source file", "file", staged)
	}

	if c.clean {
		c.runClean(ctx)
	}

	info := &sil.Info{
		Command: c.tc.Command(),
		Staged:  staged,
	}
	if err := c.run(ctx, info); err != nil {
		return info, err
	}

	info.Block, err = sil.Extract(info.Stdout, c.marker, c.terminator)
	if err != nil {
		return info, errors.Wrapf(err, "see %s", info.LogPath)
	}
	out := c.outputFile()
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return info, errors.Wrap(err, "cannot create output directory")
	}
	if err := info.WriteOutput(out); err != nil {
		return info, err
	}
	log.Infow("SIL written", "output", out, "bytes", len(info.Block))
	return info, nil
}

// run invokes the build command, then writes its log whatever the outcome.
func (c *Config) run(ctx context.Context, info *sil.Info) error {
	log := c.logger
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	log.Infow("Running", "command", strings.Join(info.Command, " "), "dir", c.dir)
	start := time.Now()
	status, runErr := c.runner.Run(ctx, c.dir, &stdout, &stderr, info.Command[0], info.Command[1:]...)
	info.Elapsed = time.Since(start)
	info.ExitStatus = status
	info.Stdout = stdout.String()
	info.Stderr = stderr.String()

	if runErr != nil && ctx.Err() == nil {
		return errors.Wrapf(runErr, "cannot run %s", info.Command[0])
	}

	logPath := c.logFile()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return errors.Wrap(err, "cannot create log directory")
	}
	if err := info.WriteLog(logPath); err != nil {
		return err
	}
	log.Infow("Build finished", "elapsed", info.Elapsed, "status", status, "log", logPath)

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded && c.timeout > 0 {
			return &TimeoutError{Command: info.Command, Timeout: c.timeout}
		}
		return errors.Wrapf(runErr, "%s interrupted", info.Command[0])
	}
	if info.Failed() {
		log.Warnw("Build failed, extracting anyway", "status", status, "log", logPath)
	}
	return nil
}

// runClean removes previous build products. Failure to clean is logged and
// otherwise ignored.
func (c *Config) runClean(ctx context.Context) {
	cmd := c.tc.CleanCommand()
	var out bytes.Buffer
	status, err := c.runner.Run(ctx, c.dir, &out, &out, cmd[0], cmd[1:]...)
	if err != nil || status != 0 {
		c.logger.Warnw("Clean failed", "command", strings.Join(cmd, " "), "status", status, "error", err, "output", out.String())
		return
	}
	c.logger.Debugw("Cleaned", "command", strings.Join(cmd, " "))
}
