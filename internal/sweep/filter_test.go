package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldIgnore(t *testing.T) {
	exact := []string{"/Data/Keep", "/srv/media/incoming"}
	fragments := []string{".git", "RECYCLE", "System"}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"exact match", "/srv/media/incoming", true},
		{"exact match different case", "/data/keep", true},
		{"exact does not match child", "/data/keep/sub", false},
		{"exact does not match prefix", "/data/kee", false},
		{"fragment in final component", "/repo/.git", true},
		{"fragment in parent component", "/repo/.git/objects/pack", true},
		{"fragment inside a name", "/media/.github/workflows", true},
		{"fragment different case", "/mnt/$recycle.bin/S-1-5", true},
		{"fragment in volume name", "/Volumes/SystemDrive/photos", true},
		{"no match", "/data/photos/2020", false},
		{"empty path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldIgnore(tt.path, exact, fragments))
		})
	}
}

func TestShouldIgnoreNoRules(t *testing.T) {
	assert.False(t, ShouldIgnore("/anything", nil, nil))
	assert.False(t, ShouldIgnore("/anything", []string{}, []string{}))
	assert.True(t, Rules{}.Empty())
}

func TestShouldIgnoreBlankEntriesNeverMatch(t *testing.T) {
	assert.False(t, ShouldIgnore("/data", []string{""}, []string{""}))
	assert.False(t, ShouldIgnore("", []string{""}, nil))
}

func TestRulesMatch(t *testing.T) {
	r := Rules{
		ExactPaths:    []string{"/data/x"},
		PathFragments: []string{"tmp"},
	}

	rule, ok := r.Match("/DATA/X")
	assert.True(t, ok)
	assert.Equal(t, "exact:/data/x", rule)

	// Exact paths are checked before fragments.
	r.ExactPaths = append(r.ExactPaths, "/data/tmp")
	rule, ok = r.Match("/data/tmp")
	assert.True(t, ok)
	assert.Equal(t, "exact:/data/tmp", rule)

	rule, ok = r.Match("/data/TMP/files")
	assert.True(t, ok)
	assert.Equal(t, "fragment:tmp", rule)

	rule, ok = r.Match("/data/y")
	assert.False(t, ok)
	assert.Empty(t, rule)

	assert.False(t, r.Empty())
}
