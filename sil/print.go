package sil

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
)

// WriteTo writes the extracted SIL block to w.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, info.Block)
	return int64(n), err
}

// WriteLog writes the captured build log to path, replacing any previous log.
func (info *Info) WriteLog(path string) error {
	if err := ioutil.WriteFile(path, []byte(info.Stdout), 0644); err != nil {
		return errors.Wrapf(err, "cannot write build log %s", path)
	}
	info.LogPath = path
	return nil
}

// WriteOutput writes the extracted SIL block to path, replacing any previous
// output.
func (info *Info) WriteOutput(path string) error {
	if err := ioutil.WriteFile(path, []byte(info.Block), 0644); err != nil {
		return errors.Wrapf(err, "cannot write SIL %s", path)
	}
	info.OutputPath = path
	return nil
}
