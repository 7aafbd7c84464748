package toolchain

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/magefile/mage/sh"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNoVersion = errors.New("no version found in report")

	// XcodePattern matches the major.minor version in `xcodebuild -version`.
	XcodePattern = regexp.MustCompile(`Xcode ([0-9]+)\.([0-9]+)`)

	// IntegratedDriverMin is the first Xcode release that needs the integrated
	// driver to dump SIL through unsafeFlags.
	IntegratedDriverMin = Version{Major: 12, Minor: 5}
)

// Version is a major.minor tool version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v is numerically at or above min.
func (v Version) AtLeast(min Version) bool {
	if v.Major != min.Major {
		return v.Major > min.Major
	}
	return v.Minor >= min.Minor
}

// ParseVersion extracts the first version matched by pattern in report.
// pattern must have two capture groups: major and minor.
func ParseVersion(pattern *regexp.Regexp, report string) (Version, error) {
	m := pattern.FindStringSubmatch(report)
	if len(m) < 3 {
		return Version{}, ErrNoVersion
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, errors.Wrapf(err, "bad major version %q", m[1])
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, errors.Wrapf(err, "bad minor version %q", m[2])
	}
	return Version{Major: major, Minor: minor}, nil
}

// XcodeQuery returns the version report of the installed Xcode.
func XcodeQuery() (string, error) {
	return sh.Output("/usr/bin/xcodebuild", "-version")
}

// VersionGate allows a flag when a queried tool version is at or above Min.
// A failed query or an unparseable report closes the gate without error.
type VersionGate struct {
	Query   func() (string, error)
	Pattern *regexp.Regexp
	Min     Version

	Logger *zap.SugaredLogger
}

// XcodeGate returns the gate for the integrated Swift driver flag.
func XcodeGate(logger *zap.SugaredLogger) *VersionGate {
	return &VersionGate{
		Query:   XcodeQuery,
		Pattern: XcodePattern,
		Min:     IntegratedDriverMin,
		Logger:  logger,
	}
}

func (g *VersionGate) Allow() bool {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	report, err := g.Query()
	if err != nil {
		logger.Warnw("Version query failed, omitting flag", "error", err)
		return false
	}
	v, err := ParseVersion(g.Pattern, report)
	if err != nil {
		logger.Warnw("Cannot parse version, omitting flag", "report", report, "error", err)
		return false
	}
	logger.Debugw("Tool version", "version", v.String(), "min", g.Min.String())
	return v.AtLeast(g.Min)
}
