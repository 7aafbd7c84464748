// Package manifest checks that a Swift package manifest is configured for
// SIL dumping before any build work is done.
package manifest

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultPath is the manifest file name relative to the package root.
	DefaultPath = "Package.swift"
	// DefaultToken must appear in the manifest for the build to emit SIL.
	DefaultToken = "unsafeFlags"
)

// ConfigurationError is returned when the manifest does not contain the
// required configuration token.
type ConfigurationError struct {
	Path  string
	Token string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured for SIL dumping (missing %q)", e.Path, e.Token)
}

// Check reads the manifest at path and returns a *ConfigurationError if token
// does not appear in its contents.
func Check(path, token string) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read manifest %s", path)
	}
	if !strings.Contains(string(b), token) {
		return &ConfigurationError{Path: path, Token: token}
	}
	return nil
}
