//go:build debug
// +build debug

package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger returns a new development logger writing to w. Debug builds
// always log at debug level.
func newLogger(verbose bool, w io.Writer) (*zap.SugaredLogger, error) {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.DebugLevel,
	)
	return zap.New(core, zap.Development(), zap.AddCaller()).Sugar(), nil
}
