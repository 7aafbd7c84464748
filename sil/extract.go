package sil

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind distinguishes why extraction failed.
type ErrorKind int

const (
	MarkerNotFound ErrorKind = iota
	TerminatorNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case MarkerNotFound:
		return "marker not found"
	case TerminatorNotFound:
		return "terminator not found"
	}
	return "unknown"
}

// ExtractionError is returned when the SIL block cannot be found in a log.
type ExtractionError struct {
	Kind   ErrorKind
	Marker string
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case MarkerNotFound:
		return fmt.Sprintf("unexpected SIL output: %q not found", e.Marker)
	case TerminatorNotFound:
		return fmt.Sprintf("unexpected SIL output: no blank lines after %q", e.Marker)
	}
	return "unexpected SIL output"
}

// Extract returns the block of log starting at marker and ending at (and
// including) the first terminator after it.
//
// The marker must follow a newline, so a marker on the first line of log is
// not found. Only the first occurrence is considered.
func Extract(log, marker, terminator string) (string, error) {
	parts := strings.SplitN(log, "\n"+marker, 2)
	if len(parts) < 2 {
		return "", &ExtractionError{Kind: MarkerNotFound, Marker: marker}
	}
	re := regexp.MustCompile(`(?s)^.*?` + regexp.QuoteMeta(terminator))
	block := re.FindString(parts[1])
	if block == "" {
		return "", &ExtractionError{Kind: TerminatorNotFound, Marker: marker}
	}
	return marker + block, nil
}
