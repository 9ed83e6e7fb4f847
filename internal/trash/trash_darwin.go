//go:build darwin

package trash

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func homeTrashDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home trash: %w", err)
	}
	return filepath.Join(home, ".Trash"), nil
}

// move renames abs into ~/.Trash. Finder's "Put Back" metadata is private to
// Finder, so items trashed here can only be restored by dragging them out.
func (t *Trash) move(abs string) error {
	if err := os.MkdirAll(t.home, 0o700); err != nil {
		return fmt.Errorf("creating trash directory: %w", err)
	}

	base := filepath.Base(abs)
	for n := 1; n <= maxNameAttempts; n++ {
		dest := filepath.Join(t.home, candidateName(base, n))
		if _, err := os.Lstat(dest); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.Rename(abs, dest)
	}
	return fmt.Errorf("no free name for %q in %s", base, t.home)
}

// Restore is not available on macOS; see move.
func (t *Trash) Restore(name string) (string, error) {
	return "", ErrUnsupported
}
