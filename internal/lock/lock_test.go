package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "run.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	pid, err := Owner(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Release())
	assert.FileExists(t, path)

	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	held, err := Acquire(path)
	require.NoError(t, err)
	defer held.Release()

	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), path)
}

func TestOwnerErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Owner(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pid"), 0o600))
	_, err = Owner(garbage)
	assert.Error(t, err)
}
