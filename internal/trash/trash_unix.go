//go:build unix && !darwin

package trash

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const deletionDateLayout = "2006-01-02T15:04:05"

func homeTrashDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home trash: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "Trash"), nil
}

func (t *Trash) move(abs string) error {
	dir, topdir, err := t.trashFor(abs)
	if err != nil {
		return err
	}
	return t.moveInto(dir, topdir, abs)
}

// trashFor picks the trash directory for abs. topdir is non-empty when the
// trash lives on another filesystem, in which case .trashinfo paths are
// recorded relative to it.
func (t *Trash) trashFor(abs string) (dir, topdir string, err error) {
	if err := os.MkdirAll(t.home, 0o700); err != nil {
		return "", "", fmt.Errorf("creating trash directory: %w", err)
	}
	if !t.topdirs {
		return t.home, "", nil
	}

	parent := filepath.Dir(abs)
	itemDev, err := deviceOf(parent)
	if err != nil {
		return "", "", err
	}
	homeDev, err := deviceOf(t.home)
	if err != nil {
		return "", "", err
	}
	if itemDev == homeDev {
		return t.home, "", nil
	}

	top, err := mountPoint(parent, itemDev)
	if err != nil {
		return "", "", err
	}
	uid := strconv.Itoa(unix.Getuid())

	// An administrator-provided $topdir/.Trash must be a real directory with
	// the sticky bit set before it can be used.
	shared := filepath.Join(top, ".Trash")
	if info, err := os.Lstat(shared); err == nil && info.IsDir() && info.Mode()&os.ModeSticky != 0 {
		dir := filepath.Join(shared, uid)
		if err := os.MkdirAll(dir, 0o700); err == nil {
			return dir, top, nil
		}
	}

	dir = filepath.Join(top, ".Trash-"+uid)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("creating topdir trash: %w", err)
	}
	return dir, top, nil
}

func (t *Trash) moveInto(trashDir, topdir, abs string) error {
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	for _, d := range []string{filesDir, infoDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("creating trash directory: %w", err)
		}
	}

	recorded := abs
	if topdir != "" {
		rel, err := filepath.Rel(topdir, abs)
		if err != nil {
			return err
		}
		recorded = rel
	}

	base := filepath.Base(abs)
	for n := 1; n <= maxNameAttempts; n++ {
		name := candidateName(base, n)
		infoPath := filepath.Join(infoDir, name+".trashinfo")

		// The info file is created exclusively to reserve the name.
		f, err := os.OpenFile(infoPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("creating trash info: %w", err)
		}

		dest := filepath.Join(filesDir, name)
		if _, err := os.Lstat(dest); err == nil {
			f.Close()
			os.Remove(infoPath)
			continue
		}

		_, werr := f.WriteString(trashInfo(recorded, t.now()))
		if err := errors.Join(werr, f.Close()); err != nil {
			os.Remove(infoPath)
			return fmt.Errorf("writing trash info: %w", err)
		}

		if err := os.Rename(abs, dest); err != nil {
			os.Remove(infoPath)
			return err
		}
		return nil
	}
	return fmt.Errorf("no free name for %q in %s", base, trashDir)
}

// Restore moves the home-trash item name back to the path recorded in its
// .trashinfo file, recreating missing parent directories.
func (t *Trash) Restore(name string) (string, error) {
	infoPath := filepath.Join(t.home, "info", name+".trashinfo")
	f, err := os.Open(infoPath)
	if err != nil {
		return "", fmt.Errorf("opening trash info: %w", err)
	}
	original, err := parseTrashInfo(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", infoPath, err)
	}
	if !filepath.IsAbs(original) {
		return "", fmt.Errorf("parsing %s: path %q is not absolute", infoPath, original)
	}

	if _, err := os.Lstat(original); err == nil {
		return "", fmt.Errorf("restoring %q: %w", original, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		return "", fmt.Errorf("recreating parent of %q: %w", original, err)
	}
	if err := os.Rename(filepath.Join(t.home, "files", name), original); err != nil {
		return "", fmt.Errorf("restoring %q: %w", original, err)
	}
	if err := os.Remove(infoPath); err != nil {
		return original, fmt.Errorf("removing trash info: %w", err)
	}
	return original, nil
}

func trashInfo(path string, when time.Time) string {
	var b strings.Builder
	b.WriteString("[Trash Info]\n")
	b.WriteString("Path=" + escapePath(path) + "\n")
	b.WriteString("DeletionDate=" + when.Format(deletionDateLayout) + "\n")
	return b.String()
}

func parseTrashInfo(f *os.File) (string, error) {
	scanner := bufio.NewScanner(f)
	inSection := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "["):
			inSection = line == "[Trash Info]"
		case inSection && strings.HasPrefix(line, "Path="):
			return url.PathUnescape(strings.TrimPrefix(line, "Path="))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("missing Path entry")
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

func deviceOf(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return uint64(st.Dev), nil
}

// mountPoint walks up from dir while the device id stays dev.
func mountPoint(dir string, dev uint64) (string, error) {
	current := dir
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return current, nil
		}
		parentDev, err := deviceOf(parent)
		if err != nil {
			return "", err
		}
		if parentDev != dev {
			return current, nil
		}
		current = parent
	}
}
