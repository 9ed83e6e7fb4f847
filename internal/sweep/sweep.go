// Package sweep finds and removes empty directories below a set of scan
// roots.
//
// Directories are processed bottom-up: every child is fully resolved,
// including its own removal, before its parent is evaluated, so a chain of
// empty directories collapses in a single run. A directory is empty when no
// file exists anywhere in its subtree. Scan roots themselves are never
// removed, including a root that lies below another root.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kclejeune/dirsweep/internal/fsutil"
)

// ErrNotDirectory is recorded for scan roots that exist but are not
// directories.
var ErrNotDirectory = errors.New("not a directory")

var errNoDeleter = errors.New("no deleter configured")

// Deleter removes a directory recoverably, e.g. by moving it to the trash.
type Deleter interface {
	Delete(path string) error
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(path string) error

func (f DeleterFunc) Delete(path string) error { return f(path) }

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDryRun makes the sweeper report WouldDelete instead of calling the
// deleter.
func WithDryRun(dryRun bool) Option {
	return func(s *Sweeper) { s.dryRun = dryRun }
}

// WithProtected registers a predicate for directories that must never be
// touched, such as the trash itself. A protected directory is recorded as
// Excluded, is not descended into and keeps its ancestors.
func WithProtected(fn func(path string) bool) Option {
	return func(s *Sweeper) { s.protected = fn }
}

// WithObserver registers a callback invoked after each decision has been
// recorded.
func WithObserver(fn func(Decision)) Option {
	return func(s *Sweeper) { s.observe = fn }
}

type Sweeper struct {
	rules   Rules
	deleter Deleter
	logger  *slog.Logger
	dryRun  bool
	observe func(Decision)

	protected func(string) bool
	roots     map[string]bool
}

func New(rules Rules, deleter Deleter, opts ...Option) *Sweeper {
	s := &Sweeper{
		rules:   rules,
		deleter: deleter,
		logger:  slog.Default(),
	}
	if s.deleter == nil {
		s.deleter = DeleterFunc(func(string) error { return errNoDeleter })
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeleteEmptyDirectories runs a Sweeper over roots.
func DeleteEmptyDirectories(ctx context.Context, roots []string, rules Rules, deleter Deleter, opts ...Option) (*Result, error) {
	return New(rules, deleter, opts...).Run(ctx, roots)
}

// Run processes roots sequentially. Problems with a single root or directory
// are recorded in the result and never stop the run. The only error returned
// is ctx's, in which case the partial result is returned with Interrupted set;
// deletions made so far stand.
func (s *Sweeper) Run(ctx context.Context, roots []string) (*Result, error) {
	start := time.Now()
	res := &Result{DryRun: s.dryRun}

	s.roots = make(map[string]bool, len(roots))
	for _, root := range roots {
		s.roots[filepath.Clean(root)] = true
	}

	var err error
	for _, root := range roots {
		if err = s.sweepRoot(ctx, root, res); err != nil {
			break
		}
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Interrupted = true
		s.logger.Warn("sweep interrupted",
			"deleted", res.Count(),
			"failures", len(res.Failures),
			"error", err,
		)
		return res, err
	}

	s.logger.Info("sweep finished",
		"deleted", res.Count(),
		"scanned", res.Scanned,
		"excluded", res.Excluded,
		"not_empty", res.NotEmpty,
		"failures", len(res.Failures),
		"dry_run", res.DryRun,
		"duration", res.Duration,
	)
	return res, nil
}

func (s *Sweeper) sweepRoot(ctx context.Context, root string, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err == nil && !info.IsDir() {
		err = ErrNotDirectory
	}
	if err != nil {
		res.fail(root, OpRoot, err)
		s.logger.Error("skipping scan root", "root", root, "error", err)
		return nil
	}

	s.logger.Info("scanning root", "root", root, "dry_run", s.dryRun)
	before := res.Count()
	if _, err := s.walk(ctx, root, 0, res); err != nil {
		return err
	}
	s.logger.Info("root finished", "root", root, "deleted", res.Count()-before)
	return nil
}

// walk resolves every directory below dir, deepest first, and reports
// whether dir itself could be listed.
func (s *Sweeper) walk(ctx context.Context, dir string, depth int, res *Result) (bool, error) {
	children, err := fsutil.ListDirs(dir)
	if err != nil {
		res.fail(dir, OpList, err)
		s.logger.Error("listing directory failed", "path", dir, "error", err)
		return false, nil
	}

	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		c := Candidate{Path: child, Depth: depth + 1}
		s.logger.Debug("scanning", "path", c.Path, "depth", c.Depth)

		if s.isProtected(c.Path) {
			s.logger.Debug("skipping protected directory", "path", c.Path)
			s.decide(Decision{Candidate: c, Outcome: Excluded, Rule: "protected"}, res)
			continue
		}

		listed, err := s.walk(ctx, c.Path, c.Depth, res)
		if err != nil {
			return true, err
		}
		if !listed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return true, err
		}

		s.decide(s.evaluate(c), res)
	}
	return true, nil
}

func (s *Sweeper) decide(d Decision, res *Result) {
	res.record(d)
	if s.observe != nil {
		s.observe(d)
	}
}

func (s *Sweeper) isProtected(path string) bool {
	return s.protected != nil && s.protected(path)
}

// pinned reports whether path must survive the run. Any such directory
// below a candidate makes the candidate non-empty.
func (s *Sweeper) pinned(path string) bool {
	return s.roots[path] || s.isProtected(path) || s.rules.ShouldIgnore(path)
}

func (s *Sweeper) evaluate(c Candidate) Decision {
	d := Decision{Candidate: c}

	if rule, ok := s.rules.Match(c.Path); ok {
		s.logger.Debug("skipping excluded directory", "path", c.Path, "rule", rule)
		d.Outcome, d.Rule = Excluded, rule
		return d
	}
	if s.roots[c.Path] {
		s.logger.Debug("skipping nested scan root", "path", c.Path)
		d.Outcome, d.Rule = Excluded, "root:"+c.Path
		return d
	}

	// Surviving excluded descendants count as content, so an excluded
	// directory is never trashed along with its parent.
	empty, err := fsutil.IsEmptyRecursiveExcept(c.Path, s.pinned)
	if err != nil {
		s.logger.Error("cannot verify directory is empty, keeping it", "path", c.Path, "error", err)
		d.Outcome, d.Err = Unverified, err
		return d
	}
	if !empty {
		s.logger.Debug("directory not empty", "path", c.Path)
		d.Outcome = NotEmpty
		return d
	}

	if s.dryRun {
		s.logger.Info("would delete", "path", c.Path)
		d.Outcome = WouldDelete
		return d
	}

	if err := s.deleter.Delete(c.Path); err != nil {
		s.logger.Error("delete failed", "path", c.Path, "error", err)
		d.Outcome, d.Err = Failed, err
		return d
	}
	s.logger.Info("deleted", "path", c.Path)
	d.Outcome = Deleted
	return d
}
