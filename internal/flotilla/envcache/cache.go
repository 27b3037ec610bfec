// Package envcache reuses prepared data environments between runs that
// share an executable and sizes, so most runs skip the expensive create
// phase.
package envcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/renstrom/shortuuid"
	log "github.com/sirupsen/logrus"

	"github.com/flotillaproject/flotilla/internal/common/util"
)

// Key identifies one prepared environment shape.
type Key struct {
	Executable string
	TableSize  int64
	CacheSize  int64
}

func (k Key) dirName() string {
	return fmt.Sprintf("dir.%s-%d-%d", k.Executable, k.TableSize, k.CacheSize)
}

// Cache stores prepared environments under root, one directory per Key.
type Cache struct {
	root string
}

func New(root string) *Cache {
	return &Cache{root: root}
}

// Provide fills envdir with a prepared environment for key. A cached
// environment is copied in when one exists; otherwise create must populate
// envdir, and the result is snapshotted back into the cache for later runs.
func (c *Cache) Provide(envdir string, key Key, create func() error) error {
	cached := filepath.Join(c.root, key.dirName())
	if isDir(cached) {
		log.Debugf("reusing prepared environment %s", cached)
		return util.CopyDir(cached, envdir)
	}
	if err := create(); err != nil {
		return err
	}
	return c.snapshot(envdir, cached)
}

// snapshot publishes a copy of envdir at dst. Two runs of the same shape can
// race to publish first; the loser throws its copy away and the winner's
// snapshot stands.
func (c *Cache) snapshot(envdir, dst string) error {
	tmp := dst + ".tmp-" + shortuuid.New()
	if err := util.CopyDir(envdir, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.RemoveAll(tmp)
		if isDir(dst) {
			return nil
		}
		return errors.WithStack(err)
	}
	log.Debugf("snapshotted prepared environment to %s", dst)
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
