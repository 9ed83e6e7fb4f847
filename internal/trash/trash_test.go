package trash

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	tmpDir := t.TempDir()
	tr := NewAt(filepath.Join(tmpDir, "share", "Trash"))

	tests := []struct {
		rel  string
		want bool
	}{
		{"share/Trash", true},
		{"share/Trash/files", true},
		{"share/Trash/files/old", true},
		{"share/Trashcan", false},
		{"share", false},
		{"data/.Trash/1000/files", true},
		{"data/.Trash-1000", true},
		{"data/$Recycle.Bin/S-1-5", true},
		{"data/Trash", false},
		{"data/my.Trash", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Contains(filepath.Join(tmpDir, filepath.FromSlash(tt.rel))), "Contains(%s)", tt.rel)
	}
}

func TestContainsWithoutHomeDir(t *testing.T) {
	tr := &Trash{}
	dir := t.TempDir()
	assert.False(t, tr.Contains(dir))
	assert.True(t, tr.Contains(filepath.Join(dir, ".Trash-0")))
}
