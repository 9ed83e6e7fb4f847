// Package logging builds the per-run logger: a console handler plus a log
// file in a retained directory, each with its own level.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const latestName = "latest.log"

type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Options struct {
	// Dir holds the run logs. Created if missing.
	Dir string
	// FileName is a text/template rendered once per run, see RenderFileName.
	FileName string
	// Keep is the number of log files left after the new one is created.
	// Zero keeps everything.
	Keep int

	ConsoleLevel  slog.Level
	FileLevel     slog.Level
	ConsoleFormat Format
	// Console defaults to os.Stderr.
	Console io.Writer

	// NoFile disables the log file; Dir, FileName and Keep are ignored.
	NoFile bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is one configured logger. Close flushes and closes the log file.
type Session struct {
	Logger *slog.Logger
	// Path is the log file of this run, empty with NoFile.
	Path string

	file *os.File
}

func (s *Session) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Setup creates the console handler and, unless opts.NoFile is set, prunes
// the log directory and opens a new log file in it.
func Setup(opts Options) (*Session, error) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	console := consoleHandler(opts.Console, opts.ConsoleFormat, opts.ConsoleLevel)
	if opts.NoFile {
		return &Session{Logger: slog.New(console)}, nil
	}

	name, err := RenderFileName(opts.FileName, opts.Now())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	removed, pruneErr := Prune(opts.Dir, opts.Keep, name)

	path := filepath.Join(opts.Dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: opts.FileLevel})
	s := &Session{
		Logger: slog.New(Fanout(console, fileHandler)),
		Path:   path,
		file:   f,
	}

	for _, old := range removed {
		s.Logger.Debug("removed old log file", "path", old)
	}
	if pruneErr != nil {
		s.Logger.Warn("pruning old log files", "dir", opts.Dir, "error", pruneErr)
	}
	if err := linkLatest(opts.Dir, name); err != nil {
		s.Logger.Warn("updating latest log link", "error", err)
	}

	return s, nil
}

func consoleHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	hopts := &slog.HandlerOptions{Level: level}
	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LogFile is a run log found in the log directory.
type LogFile struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// List returns the *.log files in dir, oldest first. The latest.log link is
// not included. A missing directory yields no files.
func List(dir string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var logs []LogFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), logExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, LogFile{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].ModTime.Equal(logs[j].ModTime) {
			return logs[i].Path < logs[j].Path
		}
		return logs[i].ModTime.Before(logs[j].ModTime)
	})
	return logs, nil
}

// Latest returns the newest run log in dir, or fs.ErrNotExist.
func Latest(dir string) (string, error) {
	if target, err := os.Readlink(filepath.Join(dir, latestName)); err == nil {
		path := filepath.Join(dir, target)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	logs, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(logs) == 0 {
		return "", fmt.Errorf("no log files in %s: %w", dir, fs.ErrNotExist)
	}
	return logs[len(logs)-1].Path, nil
}

// Prune removes the oldest log files so that at most keep remain once a new
// file is added. next is the name about to be opened; if it already exists it
// is reused and never removed. keep <= 0 disables pruning.
func Prune(dir string, keep int, next string) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	logs, err := List(dir)
	if err != nil {
		return nil, fmt.Errorf("listing log files: %w", err)
	}

	var others []LogFile
	for _, l := range logs {
		if filepath.Base(l.Path) != next {
			others = append(others, l)
		}
	}

	excess := len(others) - (keep - 1)
	if excess <= 0 {
		return nil, nil
	}

	var removed []string
	var errs []error
	for _, l := range others[:excess] {
		if err := os.Remove(l.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, l.Path)
	}
	return removed, errors.Join(errs...)
}

func linkLatest(dir, name string) error {
	link := filepath.Join(dir, latestName)
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return err
		}
	}
	return os.Symlink(name, link)
}

type fanout []slog.Handler

// Fanout returns a handler that passes each record to every handler that
// enables its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
