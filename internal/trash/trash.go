// Package trash moves files and directories to the platform trash instead of
// deleting them, so every removal can be undone from the desktop's trash UI.
//
// On Linux and the BSDs it follows the freedesktop.org Trash specification
// (home trash under $XDG_DATA_HOME/Trash, $topdir/.Trash-$uid for other
// filesystems). On macOS items are renamed into ~/.Trash, and on Windows they
// go to the Recycle Bin through the shell.
package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupported is returned on platforms without a trash implementation.
var ErrUnsupported = errors.New("trash is not supported on this platform")

// maxNameAttempts bounds the search for a free name inside the trash.
const maxNameAttempts = 10000

// Trash moves paths into a trash directory. The zero value is not usable;
// construct one with New or NewAt.
type Trash struct {
	// home is the trash used for items on the same filesystem.
	home string
	// topdirs enables $topdir/.Trash-$uid for items on other filesystems.
	topdirs bool
	now     func() time.Time
}

// New returns the user's home trash.
func New() (*Trash, error) {
	dir, err := homeTrashDir()
	if err != nil {
		return nil, err
	}
	return &Trash{home: dir, topdirs: true, now: time.Now}, nil
}

// NewAt returns a trash rooted at dir. Items on another filesystem than dir
// fail to move rather than falling back to a topdir trash.
func NewAt(dir string) *Trash {
	return &Trash{home: filepath.Clean(dir), now: time.Now}
}

// Dir returns the home trash directory.
func (t *Trash) Dir() string {
	return t.home
}

// Contains reports whether path is a trash directory or lies inside one: the
// home trash, a $topdir/.Trash or .Trash-$uid directory, or a Windows
// $RECYCLE.BIN. Sweeps skip such paths so trashed items are never moved
// again.
func (t *Trash) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if t.home != "" && within(t.home, abs) {
		return true
	}
	for _, part := range strings.Split(abs, string(filepath.Separator)) {
		if part == ".Trash" || strings.HasPrefix(part, ".Trash-") || strings.EqualFold(part, "$RECYCLE.BIN") {
			return true
		}
	}
	return false
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Delete moves path to the trash. It satisfies sweep.Deleter.
func (t *Trash) Delete(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", path, err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return fmt.Errorf("trashing %q: %w", abs, err)
	}
	if err := t.move(abs); err != nil {
		return fmt.Errorf("trashing %q: %w", abs, err)
	}
	return nil
}

// candidateName returns the n-th name tried for base: base, base.2, base.3, ...
func candidateName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "." + strconv.Itoa(n)
}
