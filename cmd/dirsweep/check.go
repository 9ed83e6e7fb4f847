package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
	"github.com/kclejeune/dirsweep/internal/fsutil"
	"github.com/kclejeune/dirsweep/internal/sweep"
	"github.com/kclejeune/dirsweep/internal/trash"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check <path>...",
		Short:   "Explain what a sweep would do with the given directories",
		GroupID: "debug",
		Args:    cobra.MinimumNArgs(1),
		Long: `Report for each path whether it matches an exclusion rule and whether it is
empty, using the exclusions from the config file. Nothing is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := checkRules()
			if err != nil {
				return err
			}
			var protected func(string) bool
			if t, err := trash.New(); err == nil {
				protected = t.Contains
			}
			return checkPaths(cmd.OutOrStdout(), rules, protected, args)
		},
	}
}

// checkRules loads the exclusions. Without a config file nothing is
// excluded.
func checkRules() (sweep.Rules, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if cfgFile == "" && errors.Is(err, fs.ErrNotExist) {
			return sweep.Rules{}, nil
		}
		return sweep.Rules{}, withExitCode(codeConfig, fmt.Errorf("loading config: %w", err))
	}
	return sweep.Rules{
		ExactPaths:    cfg.Exclude.ExactPaths,
		PathFragments: cfg.Exclude.PathFragments,
	}, nil
}

// checkPaths reports what a sweep would do with each path. protected may be
// nil; paths it matches are reported as kept, as a sweep would skip them.
func checkPaths(w io.Writer, rules sweep.Rules, protected func(string) bool, paths []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var errs []error
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if rule, ok := rules.Match(abs); ok {
			fmt.Fprintf(w, "%s: %s (%s)\n", abs, yellow("excluded"), rule)
			continue
		}
		if protected != nil && protected(abs) {
			fmt.Fprintf(w, "%s: %s (trash)\n", abs, yellow("protected"))
			continue
		}

		info, err := os.Lstat(abs)
		if err != nil {
			fmt.Fprintf(w, "%s: %s: %v\n", abs, red("error"), err)
			errs = append(errs, err)
			continue
		}
		if !info.IsDir() {
			fmt.Fprintf(w, "%s: %s\n", abs, red("not a directory"))
			continue
		}

		empty, err := fsutil.IsEmptyRecursiveExcept(abs, func(p string) bool {
			return rules.ShouldIgnore(p) || (protected != nil && protected(p))
		})
		switch {
		case err != nil:
			fmt.Fprintf(w, "%s: %s: %v\n", abs, red("cannot verify"), err)
			errs = append(errs, err)
		case empty:
			fmt.Fprintf(w, "%s: %s\n", abs, green("empty, would be moved to trash"))
		default:
			fmt.Fprintf(w, "%s: not empty\n", abs)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d path(s) could not be checked", len(errs))
	}
	return nil
}
