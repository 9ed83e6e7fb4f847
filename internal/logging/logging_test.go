package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func writeLog(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	mtime := fixedNow.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestRenderFileName(t *testing.T) {
	host := hostnameFunc()
	t.Setenv("DIRSWEEP_TEST_SUFFIX", "nightly")

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"default template", `{{ now.Format "2006-01-02_15-04-05" }}_{{ hostname }}.log`, "2024-03-09_14-05-07_" + host + ".log"},
		{"extension appended", "run", "run.log"},
		{"sprout strings registry", `{{ "Sweep" | toLower }}`, "sweep.log"},
		{"envDefault set", `{{ envDefault "DIRSWEEP_TEST_SUFFIX" "x" }}`, "nightly.log"},
		{"envDefault fallback", `{{ envDefault "DIRSWEEP_TEST_UNSET" "fallback" }}`, "fallback.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderFileName(tt.tmpl, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderFileNameErrors(t *testing.T) {
	for _, tmpl := range []string{
		"",
		"{{ now",
		"logs/run.log",
		`{{ "a\\b" }}`,
		"latest.log",
		"{{ undefinedFunc }}",
	} {
		t.Run(tmpl, func(t *testing.T) {
			_, err := RenderFileName(tmpl, fixedNow)
			assert.Error(t, err)
		})
	}
}

func TestParseFileName(t *testing.T) {
	_, err := ParseFileName(`{{ now.Unix }}-{{ pid }}.log`)
	require.NoError(t, err)

	_, err = ParseFileName(`{{ if }}`)
	assert.Error(t, err)
}

func TestSetupCreatesFileAndLatestLink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	s, err := Setup(Options{
		Dir:           dir,
		FileName:      "run-{{ now.Format \"150405\" }}",
		Keep:          5,
		ConsoleLevel:  slog.LevelInfo,
		FileLevel:     slog.LevelDebug,
		ConsoleFormat: FormatText,
		Console:       &console,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "run-140507.log"), s.Path)

	s.Logger.Debug("debug only in file")
	s.Logger.Info("info everywhere", "path", "/data/x")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	data, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug only in file")
	assert.Contains(t, string(data), "info everywhere")

	assert.NotContains(t, console.String(), "debug only in file")
	assert.Contains(t, console.String(), "level=INFO msg=\"info everywhere\" path=/data/x")

	target, err := os.Readlink(filepath.Join(dir, latestName))
	require.NoError(t, err)
	assert.Equal(t, "run-140507.log", target)

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, s.Path, latest)
}

func TestSetupNoFile(t *testing.T) {
	var console bytes.Buffer
	s, err := Setup(Options{
		NoFile:        true,
		Dir:           "/nonexistent/never/created",
		ConsoleLevel:  slog.LevelWarn,
		ConsoleFormat: FormatText,
		Console:       &console,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.Path)
	s.Logger.Info("hidden")
	s.Logger.Warn("shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
	assert.NoDirExists(t, "/nonexistent/never/created")
}

func TestSetupInvalidFileName(t *testing.T) {
	_, err := Setup(Options{Dir: t.TempDir(), FileName: "{{ nope", Console: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestConsoleFormatAutoIsJSONWhenNotATerminal(t *testing.T) {
	var console bytes.Buffer
	s, err := Setup(Options{NoFile: true, ConsoleFormat: FormatAuto, Console: &console})
	require.NoError(t, err)

	s.Logger.Info("hello", "deleted", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(2), rec["deleted"])
}

func TestSetupRetention(t *testing.T) {
	dir := t.TempDir()
	oldest := writeLog(t, dir, "a.log", 4*time.Hour)
	older := writeLog(t, dir, "b.log", 3*time.Hour)
	newer := writeLog(t, dir, "c.log", 2*time.Hour)
	newest := writeLog(t, dir, "d.log", time.Hour)
	other := writeLog(t, dir, "notes.txt", 10*time.Hour)

	var console bytes.Buffer
	s, err := Setup(Options{
		Dir:           dir,
		FileName:      "new",
		Keep:          3,
		ConsoleLevel:  slog.LevelDebug,
		ConsoleFormat: FormatText,
		Console:       &console,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	defer s.Close()

	assert.NoFileExists(t, oldest)
	assert.NoFileExists(t, older)
	assert.FileExists(t, newer)
	assert.FileExists(t, newest)
	assert.FileExists(t, s.Path)
	assert.FileExists(t, other, "non-log files are never pruned")
	assert.Contains(t, console.String(), "removed old log file")

	logs, err := List(dir)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
	assert.Equal(t, s.Path, logs[len(logs)-1].Path)
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name    string
		keep    int
		next    string
		removed []string
	}{
		{"keep zero keeps all", 0, "new.log", nil},
		{"under limit", 5, "new.log", nil},
		{"keep one leaves room for next only", 1, "new.log", []string{"a.log", "b.log", "c.log"}},
		{"keep two", 2, "new.log", []string{"a.log", "b.log"}},
		{"next already exists is kept", 2, "a.log", []string{"b.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLog(t, dir, "a.log", 3*time.Hour)
			writeLog(t, dir, "b.log", 2*time.Hour)
			writeLog(t, dir, "c.log", time.Hour)

			removed, err := Prune(dir, tt.keep, tt.next)
			require.NoError(t, err)

			var names []string
			for _, p := range removed {
				names = append(names, filepath.Base(p))
			}
			assert.Equal(t, tt.removed, names)
		})
	}
}

func TestListIgnoresLatestLinkAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "b.log", time.Hour)
	writeLog(t, dir, "a.log", 2*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.log"), 0o755))
	require.NoError(t, linkLatest(dir, "b.log"))

	logs, err := List(dir)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "a.log", filepath.Base(logs[0].Path))
	assert.Equal(t, "b.log", filepath.Base(logs[1].Path))
}

func TestListMissingDir(t *testing.T) {
	logs, err := List(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLatestWithoutLink(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "old.log", 2*time.Hour)
	recent := writeLog(t, dir, "recent.log", time.Hour)

	got, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, recent, got)

	_, err = Latest(t.TempDir())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFanout(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := Fanout(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug-4))

	logger := slog.New(h).With("run_id", "abc").WithGroup("sweep")
	logger.Debug("scanning", "path", "/x")
	logger.Warn("interrupted")

	assert.Contains(t, debugBuf.String(), "msg=scanning run_id=abc sweep.path=/x")
	assert.Contains(t, debugBuf.String(), "msg=interrupted run_id=abc")
	assert.NotContains(t, warnBuf.String(), "scanning")
	assert.Equal(t, 1, strings.Count(warnBuf.String(), "\n"))
}
