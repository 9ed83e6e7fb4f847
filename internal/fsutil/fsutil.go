// Package fsutil provides shared filesystem utilities.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// IsEmptyRecursive reports whether path is a directory with no files at any
// depth below it. Directories that only contain (recursively) empty
// directories are empty.
func IsEmptyRecursive(path string) (bool, error) {
	return IsEmptyRecursiveExcept(path, nil)
}

// IsEmptyRecursiveExcept is IsEmptyRecursive, except that a descendant
// directory for which protected returns true counts as content.
//
// A missing path or a non-directory (including a symlink to a directory)
// reports false with a nil error. Any entry that is not a directory counts as
// content, so symlinks, sockets and fifos keep their parents alive and are
// never followed. A symlink to a directory is therefore content too, and its
// target is never inspected, even though a plain directory listing would
// report it alongside the subdirectories. Errors reading the subtree are returned as-is; callers must
// not treat them as "not empty".
func IsEmptyRecursiveExcept(path string, protected func(string) bool) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, nil
	}

	empty := true
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil
		}
		if !d.IsDir() {
			empty = false
			return fs.SkipAll
		}
		if protected != nil && protected(p) {
			empty = false
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}

// ListDirs returns the subdirectories of dir in lexical order. Symlinks to
// directories are not included.
func ListDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}
