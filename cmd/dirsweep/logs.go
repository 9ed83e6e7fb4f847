package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kclejeune/dirsweep/internal/config"
	"github.com/kclejeune/dirsweep/internal/logging"
)

func logsCmd() *cobra.Command {
	var follow bool
	var list bool
	var lines int

	cmd := &cobra.Command{
		Use:     "log",
		Aliases: []string{"logs"},
		Short:   "Show the most recent sweep log",
		GroupID: "sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := logDir()
			out := cmd.OutOrStdout()

			if list {
				return listLogs(out, dir)
			}

			path, err := logging.Latest(dir)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("no log files found in %s (has a sweep run yet?)", dir)
				}
				return fmt.Errorf("finding latest log: %w", err)
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer f.Close()

			if lines > 0 {
				if err := seekToLastNLines(f, lines); err != nil {
					return err
				}
			}

			if _, err := io.Copy(out, f); err != nil {
				return fmt.Errorf("reading log file: %w", err)
			}

			if !follow {
				return nil
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(200 * time.Millisecond):
				}

				if _, err := io.Copy(out, f); err != nil {
					return fmt.Errorf("reading log file: %w", err)
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list retained log files, oldest first")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "show last N lines (0 = entire file)")
	cmd.MarkFlagsMutuallyExclusive("list", "follow")
	return cmd
}

// logDir is the configured log directory, or the default one when the config
// cannot be loaded.
func logDir() string {
	if cfg, err := config.Load(cfgFile); err == nil {
		return cfg.Logging.Directory
	}
	return config.DefaultConfig().Logging.Directory
}

func listLogs(w io.Writer, dir string) error {
	logs, err := logging.List(dir)
	if err != nil {
		return fmt.Errorf("listing logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Fprintf(w, "no log files in %s\n", dir)
		return nil
	}
	for _, l := range logs {
		fmt.Fprintf(w, "%s  %8d  %s\n", l.ModTime.Format(time.DateTime), l.Size, filepath.Base(l.Path))
	}
	return nil
}

// seekToLastNLines seeks the file to the start of the last n lines.
func seekToLastNLines(f *os.File, n int) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	const chunkSize = 8192
	found := 0
	offset := size

	// A trailing newline terminates the last line rather than starting a new one.
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		found--
	}

	for offset > 0 {
		readSize := min(int64(chunkSize), offset)
		offset -= readSize

		buf := make([]byte, readSize)
		if _, err := f.ReadAt(buf, offset); err != nil {
			return err
		}

		for i := len(buf) - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			found++
			if found == n {
				_, err := f.Seek(offset+int64(i)+1, io.SeekStart)
				return err
			}
		}
	}

	// Fewer than n lines in the file; start from the beginning.
	_, err = f.Seek(0, io.SeekStart)
	return err
}
