//go:build unix && !darwin

package internal_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kclejeune/dirsweep/internal/config"
	"github.com/kclejeune/dirsweep/internal/sweep"
	"github.com/kclejeune/dirsweep/internal/trash"
)

// TestSweepLifecycleIntegration wires up config → sweep → trash to verify the
// full load → sweep → restore cycle.
func TestSweepLifecycleIntegration(t *testing.T) {
	tmpDir := t.TempDir()

	media := filepath.Join(tmpDir, "media")
	for _, d := range []string{
		"shows/season1/extras",
		"shows/season2",
		"photos/.git/refs",
		"incoming/new",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(media, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(media, "shows", "season1", "ep1.mkv"), nil, 0o644))

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	cfgData := `roots:
  - media
exclude:
  exact_paths:
    - media/INCOMING
  path_fragments:
    - .GIT
logging:
  directory: logs
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgData), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, []string{media}, cfg.Roots)

	bin := trash.NewAt(filepath.Join(tmpDir, "Trash"))
	var logs bytes.Buffer
	rules := sweep.Rules{
		ExactPaths:    cfg.Exclude.ExactPaths,
		PathFragments: cfg.Exclude.PathFragments,
	}
	res, err := sweep.DeleteEmptyDirectories(context.Background(), cfg.Roots, rules, bin,
		sweep.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)

	// Exact exclusions cover the directory itself, not its children.
	want := []string{
		filepath.Join(media, "incoming", "new"),
		filepath.Join(media, "shows", "season1", "extras"),
		filepath.Join(media, "shows", "season2"),
	}
	assert.Equal(t, want, res.Deleted)
	assert.Empty(t, res.Failures)

	// Excluded directories survive and keep their parents.
	for _, kept := range []string{"photos/.git/refs", "photos", "incoming", "shows/season1"} {
		assert.DirExists(t, filepath.Join(media, kept))
	}

	// Every removal can be undone.
	for _, name := range []string{"new", "extras", "season2"} {
		original, err := bin.Restore(name)
		require.NoError(t, err, "Restore(%q)", name)
		assert.DirExists(t, original)
	}
}
