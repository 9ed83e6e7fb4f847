package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
	"github.com/kclejeune/dirsweep/internal/lock"
	"github.com/kclejeune/dirsweep/internal/logging"
	"github.com/kclejeune/dirsweep/internal/sweep"
	"github.com/kclejeune/dirsweep/internal/trash"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"dr"},
		Short:   "Diagnose common issues",
		GroupID: "debug",
		Long: `Run a series of checks to diagnose common issues:

  - Config validity
  - Each root exists and is a directory
  - Roots excluded by their own rules, and roots nested in other roots
  - Trash directory writable, and roots that contain the trash
  - Log directory writable and log file name renders
  - Whether a sweep is currently running`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.ErrOrStderr())
		},
	}
}

func runDoctor(w io.Writer) error {
	var issues int
	check := func(ok bool, format string, args ...any) {
		printCheck(w, ok, format, args...)
		if !ok {
			issues++
		}
	}

	// 1. Config.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		check(false, "config: %v", err)
		// Nothing else can be checked without roots.
		return printSummary(w, issues)
	}
	check(true, "config loaded (%d roots)", len(cfg.Roots))

	// 2. Roots.
	rules := sweep.Rules{
		ExactPaths:    cfg.Exclude.ExactPaths,
		PathFragments: cfg.Exclude.PathFragments,
	}
	for _, root := range cfg.Roots {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			check(false, "root %s: %v", root, err)
			continue
		case !info.IsDir():
			check(false, "root %s: not a directory", root)
			continue
		}
		if rule, ok := rules.Match(root); ok {
			check(false, "root %s is itself excluded (%s); nothing below it will be removed", root, rule)
			continue
		}
		check(true, "root %s", root)
	}
	for _, pair := range nestedRoots(cfg.Roots) {
		check(false, "root %s is inside root %s", pair[0], pair[1])
	}

	// 3. Trash. A root containing the trash is reported but not counted: the
	// sweep skips the trash directory.
	if t, err := trash.New(); err != nil {
		check(false, "trash: %v", err)
	} else if t.Dir() == "" {
		check(true, "trash is managed by the system")
	} else {
		if err := checkWritable(t.Dir()); err != nil {
			check(false, "trash %s: %v", t.Dir(), err)
		} else {
			check(true, "trash %s writable", t.Dir())
		}
		for _, root := range trashRoots(cfg.Roots, t.Dir()) {
			printCheck(w, false, "root %s contains the trash %s; it will be skipped", root, t.Dir())
		}
	}

	// 4. Logging.
	if name, err := logging.RenderFileName(cfg.Logging.FileName, time.Now()); err != nil {
		check(false, "log file name: %v", err)
	} else {
		check(true, "log file name renders as %s", name)
	}
	if err := checkWritable(cfg.Logging.Directory); err != nil {
		check(false, "log directory %s: %v", cfg.Logging.Directory, err)
	} else {
		check(true, "log directory %s writable", cfg.Logging.Directory)
	}

	// 5. Lock. A running sweep is not counted as an issue.
	path := lockFilePath()
	if lk, err := lock.Acquire(path); err == nil {
		lk.Release()
		printCheck(w, true, "no sweep running")
	} else if errors.Is(err, lock.ErrLocked) {
		printCheck(w, false, "%v", err)
	} else {
		check(false, "lock %s: %v", path, err)
	}

	return printSummary(w, issues)
}

// nestedRoots returns [inner, outer] pairs of roots where inner lies below
// outer.
func nestedRoots(roots []string) [][2]string {
	var pairs [][2]string
	for _, inner := range roots {
		for _, outer := range roots {
			if inner == outer {
				continue
			}
			rel, err := filepath.Rel(outer, inner)
			if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			pairs = append(pairs, [2]string{inner, outer})
		}
	}
	return pairs
}

// trashRoots returns the roots that contain dir.
func trashRoots(roots []string, dir string) []string {
	var out []string
	for _, root := range roots {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, root)
	}
	return out
}

// checkWritable creates dir if needed and writes and removes a temp file in it.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".dirsweep-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func printCheck(w io.Writer, ok bool, format string, args ...any) {
	prefix := color.New(color.FgGreen).Sprint("ok")
	if !ok {
		prefix = color.New(color.FgRed).Sprint("!!")
	}
	msg := fmt.Sprintf(format, args...)
	// Indent continuation lines.
	msg = strings.ReplaceAll(msg, "\n", "\n      ")
	fmt.Fprintf(w, "  [%s] %s\n", prefix, msg)
}

func printSummary(w io.Writer, issues int) error {
	fmt.Fprintln(w)
	if issues == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}
	return fmt.Errorf("%d issue(s) found", issues)
}
