package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
	"github.com/kclejeune/dirsweep/internal/lock"
	"github.com/kclejeune/dirsweep/internal/logging"
	"github.com/kclejeune/dirsweep/internal/sweep"
	"github.com/kclejeune/dirsweep/internal/trash"
)

type runOptions struct {
	roots            []string
	excludePaths     []string
	excludeFragments []string
	dryRun           bool
	noLogFile        bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Move empty directories below the scan roots to the trash",
		GroupID: "sweep",
		Args:    cobra.NoArgs,
		Long: `Scan every root bottom-up and move empty directories to the trash.

A directory is empty when no file exists anywhere below it. Roots themselves
are never removed. Directories matching an exclusion are kept, and so is
every directory that contains one.

Exit codes:
  0    sweep completed (individual directories may have failed)
  1    unexpected error
  2    configuration invalid
  3    another sweep is running
  130  interrupted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.roots, "root", nil, "scan root, repeatable (replaces the configured roots)")
	cmd.Flags().
		StringArrayVar(&opts.excludePaths, "exclude-path", nil, "additional exact path to exclude, repeatable")
	cmd.Flags().
		StringArrayVar(&opts.excludeFragments, "exclude-fragment", nil, "additional path fragment to exclude, repeatable")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "report what would be removed without removing anything")
	cmd.Flags().BoolVar(&opts.noLogFile, "no-log-file", false, "log to the console only")
	return cmd
}

func runSweep(ctx context.Context, stdout, stderr io.Writer, opts runOptions) error {
	cfg, err := runConfig(opts)
	if err != nil {
		return err
	}

	lk, err := lock.Acquire(lockFilePath())
	if errors.Is(err, lock.ErrLocked) {
		return withExitCode(codeLocked, err)
	}
	if err != nil {
		return err
	}
	defer lk.Release()

	session, err := logging.Setup(logOptions(cfg, opts.noLogFile, stderr))
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer session.Close()

	logger := session.Logger.With("run_id", uuid.NewString())
	logger.Info("starting sweep",
		"roots", cfg.Roots,
		"exact_paths", len(cfg.Exclude.ExactPaths),
		"path_fragments", len(cfg.Exclude.PathFragments),
		"dry_run", opts.dryRun,
		"log_file", session.Path,
	)

	sweepOpts := []sweep.Option{
		sweep.WithLogger(logger),
		sweep.WithDryRun(opts.dryRun),
	}
	var deleter sweep.Deleter
	// A dry run does not need a working trash, but still skips its contents.
	t, err := trash.New()
	switch {
	case err == nil:
		logger.Debug("using trash", "dir", t.Dir())
		sweepOpts = append(sweepOpts, sweep.WithProtected(t.Contains))
		if !opts.dryRun {
			deleter = t
		}
	case !opts.dryRun:
		return fmt.Errorf("opening trash: %w", err)
	default:
		logger.Debug("trash unavailable", "error", err)
	}

	rules := sweep.Rules{
		ExactPaths:    cfg.Exclude.ExactPaths,
		PathFragments: cfg.Exclude.PathFragments,
	}
	res, err := sweep.New(rules, deleter, sweepOpts...).Run(ctx, cfg.Roots)

	printRunSummary(stdout, res, session.Path)

	if err != nil {
		if ctx.Err() != nil {
			return withExitCode(codeInterrupted, fmt.Errorf("interrupted: %w", err))
		}
		return err
	}
	return nil
}

// runConfig loads the config and applies the run flags on top of it.
func runConfig(opts runOptions) (*config.Config, error) {
	cfg, err := loadConfig(opts.roots)
	if err != nil {
		return nil, err
	}
	if len(opts.excludePaths) == 0 && len(opts.excludeFragments) == 0 {
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	for _, p := range opts.excludePaths {
		resolved, err := config.ResolvePath(p, cwd)
		if err != nil {
			return nil, withExitCode(codeConfig, fmt.Errorf("--exclude-path %q: %w", p, err))
		}
		cfg.Exclude.ExactPaths = append(cfg.Exclude.ExactPaths, resolved)
	}
	cfg.Exclude.PathFragments = append(cfg.Exclude.PathFragments, opts.excludeFragments...)

	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(codeConfig, err)
	}
	return cfg, nil
}

func logOptions(cfg *config.Config, noFile bool, console io.Writer) logging.Options {
	return logging.Options{
		Dir:           cfg.Logging.Directory,
		FileName:      cfg.Logging.FileName,
		Keep:          cfg.Logging.Keep,
		ConsoleLevel:  consoleLevel(cfg.Logging.ConsoleLevel.Slog()),
		FileLevel:     cfg.Logging.FileLevel.Slog(),
		ConsoleFormat: logging.Format(cfg.Logging.ConsoleFormat),
		Console:       console,
		NoFile:        noFile,
	}
}

func printRunSummary(w io.Writer, res *sweep.Result, logPath string) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(w)
	switch {
	case res.Interrupted:
		yellow.Fprintln(w, "Sweep interrupted")
	case res.DryRun:
		bold.Fprintln(w, "Dry run complete")
	default:
		bold.Fprintln(w, "Sweep complete")
	}

	verb := "moved to trash"
	if res.DryRun {
		verb = "would be moved to trash"
	}
	line := fmt.Sprintf("  %d empty %s %s", res.Count(), pluralize(res.Count(), "directory", "directories"), verb)
	if res.DryRun {
		yellow.Fprintln(w, line)
		for _, p := range res.Deleted {
			fmt.Fprintf(w, "    %s\n", p)
		}
	} else {
		green.Fprintln(w, line)
	}

	fmt.Fprintf(w, "  %d scanned, %d excluded, %d not empty in %s\n",
		res.Scanned, res.Excluded, res.NotEmpty, res.Duration.Round(time.Millisecond))

	if n := len(res.Failures); n > 0 {
		red.Fprintf(w, "  %d %s\n", n, pluralize(n, "failure", "failures"))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "    %s\n", f.Error())
		}
	}

	if logPath != "" {
		fmt.Fprintf(w, "  log: %s\n", logPath)
	}
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
