// Package main is the CLI entry point for dirsweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	verbose bool
	quiet   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := fang.Execute(ctx, rootCmd(), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dirsweep",
		Short: "Move empty directories to the trash",
		Long: `dirsweep walks the configured directory trees bottom-up and moves every
directory that holds no files anywhere below it to the trash. Exact paths and
path fragments can be excluded; excluded directories keep their parents alive.`,
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	}

	root.PersistentFlags().
		StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/dirsweep/config.toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational output")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddGroup(
		&cobra.Group{ID: "sweep", Title: "Sweep:"},
		&cobra.Group{ID: "debug", Title: "Debug:"},
	)

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(cfgCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(logsCmd())

	return root
}

func setupLogging() {
	setupLoggingWithWriter(os.Stderr)
}

func setupLoggingWithWriter(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: consoleLevel(slog.LevelInfo),
	})))
}

// consoleLevel applies -v and -q on top of the configured level.
func consoleLevel(configured slog.Level) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return configured
	}
}

func lockFilePath() string {
	return filepath.Join(config.StateDir(), "run.lock")
}

// loadConfig loads the config file. When roots are given on the command line
// and no --config was passed, a missing default config falls back to
// defaults. Returned errors carry exit code 2.
func loadConfig(roots []string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	switch {
	case err == nil:
	case len(roots) > 0 && cfgFile == "" && errors.Is(err, fs.ErrNotExist):
		cfg = config.DefaultConfig()
	default:
		return nil, withExitCode(codeConfig, fmt.Errorf("loading config: %w", err))
	}

	if len(roots) > 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		cfg.Roots = make([]string, 0, len(roots))
		for _, r := range roots {
			resolved, err := config.ResolvePath(r, cwd)
			if err != nil {
				return nil, withExitCode(codeConfig, fmt.Errorf("--root %q: %w", r, err))
			}
			cfg.Roots = append(cfg.Roots, resolved)
		}
		if err := cfg.Validate(); err != nil {
			return nil, withExitCode(codeConfig, err)
		}
	}

	return cfg, nil
}
