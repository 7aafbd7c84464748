// Package stage discovers the single Swift source file of a package and
// mirrors it into a scratch directory tree.
package stage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultExt is the recognised source file suffix.
const DefaultExt = ".swift"

// AmbiguousSourceError is returned when more than one source file is found.
// Only one source file per run is supported.
type AmbiguousSourceError struct {
	Root  string
	Files []string // Relative paths of all matching files.
}

func (e *AmbiguousSourceError) Error() string {
	return fmt.Sprintf("only one source file is supported, found %d under %s: %s",
		len(e.Files), e.Root, strings.Join(e.Files, ", "))
}

// Sources walks root and returns the sorted paths (relative to root) of all
// files ending with ext. A root that does not exist has no sources.
func Sources(root, ext string) ([]string, error) {
	if ext == "" {
		panic("stage: extension must not be empty")
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot walk source root %s", root)
	}
	sort.Strings(files)
	return files, nil
}

// Stage mirrors the single source file under srcRoot into dstRoot, keeping its
// path relative to srcRoot, and returns the path of the copy.
//
// If there is no matching file nothing is copied and the returned path is
// empty. More than one matching file is an *AmbiguousSourceError and nothing
// is copied.
func Stage(srcRoot, dstRoot, ext string) (string, error) {
	files, err := Sources(srcRoot, ext)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", nil
	case 1:
	default:
		return "", &AmbiguousSourceError{Root: srcRoot, Files: files}
	}
	dst := filepath.Join(dstRoot, files[0])
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.Wrapf(err, "cannot create staging directory for %s", dst)
	}
	if err := copyFile(filepath.Join(srcRoot, files[0]), dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Reset removes dir and everything under it, then creates it empty.
func Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "cannot remove %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "cannot create %s", dir)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "cannot open source file %s", src)
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "cannot stat source file %s", src)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "cannot create staged file %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "cannot copy %s to %s", src, dst)
	}
	return out.Close()
}
