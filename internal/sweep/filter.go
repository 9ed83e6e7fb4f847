package sweep

import "strings"

// Rules is the immutable exclusion configuration for a run.
//
// Fragment matching is a plain case-insensitive substring test over the whole
// path, so a fragment also matches parent directory names and volume names.
type Rules struct {
	ExactPaths    []string
	PathFragments []string
}

// ShouldIgnore reports whether path must be skipped: it equals an entry of
// exactPaths or contains an entry of pathFragments, both compared
// case-insensitively. Blank entries never match.
func ShouldIgnore(path string, exactPaths, pathFragments []string) bool {
	_, ok := Rules{ExactPaths: exactPaths, PathFragments: pathFragments}.Match(path)
	return ok
}

func (r Rules) ShouldIgnore(path string) bool {
	_, ok := r.Match(path)
	return ok
}

// Match returns the rule that excludes path, formatted as "exact:<path>" or
// "fragment:<fragment>".
func (r Rules) Match(path string) (string, bool) {
	for _, p := range r.ExactPaths {
		if p != "" && strings.EqualFold(path, p) {
			return "exact:" + p, true
		}
	}

	lower := strings.ToLower(path)
	for _, f := range r.PathFragments {
		if f != "" && strings.Contains(lower, strings.ToLower(f)) {
			return "fragment:" + f, true
		}
	}
	return "", false
}

// Empty reports whether r excludes nothing.
func (r Rules) Empty() bool {
	return len(r.ExactPaths) == 0 && len(r.PathFragments) == 0
}
