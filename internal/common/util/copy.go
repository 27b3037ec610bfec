package util

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile copies the contents and permission bits of src to dst,
// overwriting dst if it already exists.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.WithStack(err)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer CloseResource(src, in)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(out.Close())
}

// CopyDir recursively copies the tree rooted at src into dst, creating dst
// if needed. Symlinks are followed rather than preserved, matching what the
// test environments expect.
func CopyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.WithStack(err)
	}
	if !info.IsDir() {
		return errors.Errorf("cannot copy %s: not a directory", src)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return errors.WithStack(err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		target, err := os.Stat(srcPath)
		if err != nil {
			return errors.WithStack(err)
		}
		if target.IsDir() {
			err = CopyDir(srcPath, dstPath)
		} else {
			err = CopyFile(srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
