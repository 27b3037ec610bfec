// Package archive preserves the artifacts of failed runs for later
// inspection: the run directory, the test binary, and the engine's shared
// libraries.
package archive

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/renstrom/shortuuid"

	"github.com/flotillaproject/flotilla/internal/common/util"
)

// Archiver copies failure artifacts into uniquely named directories under a
// fixed root.
type Archiver struct {
	root string
}

// New returns an Archiver rooted at dir, creating the directory if needed.
func New(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Archiver{root: dir}, nil
}

// Save preserves everything in rundir plus the test binary and the shared
// libraries under libDir. It keeps copying past individual failures and
// returns them all at once; the returned directory is valid even on error,
// holding whatever could be saved.
func (a *Archiver) Save(prefix, rundir, binary, libDir string) (string, error) {
	dir := filepath.Join(a.root, prefix+shortuuid.New())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	var result *multierror.Error
	copyInto := func(path string) {
		target := filepath.Join(dir, filepath.Base(path))
		info, err := os.Stat(path)
		if err != nil {
			result = multierror.Append(result, errors.WithStack(err))
			return
		}
		if info.IsDir() {
			err = util.CopyDir(path, target)
		} else {
			err = util.CopyFile(path, target)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	entries, err := os.ReadDir(rundir)
	if err != nil {
		result = multierror.Append(result, errors.WithStack(err))
	}
	for _, entry := range entries {
		copyInto(filepath.Join(rundir, entry.Name()))
	}

	copyInto(binary)

	libs, err := filepath.Glob(filepath.Join(libDir, "*.so"))
	if err != nil {
		result = multierror.Append(result, errors.WithStack(err))
	}
	for _, lib := range libs {
		copyInto(lib)
	}

	return dir, result.ErrorOrNil()
}
