package sweep

import (
	"fmt"
	"time"
)

// Outcome is what happened to one candidate directory.
type Outcome int

const (
	Deleted Outcome = iota
	// WouldDelete is reported instead of Deleted on dry runs.
	WouldDelete
	Excluded
	NotEmpty
	// Unverified means the subtree could not be read, so the directory was
	// kept.
	Unverified
	// Failed means the delete primitive returned an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case WouldDelete:
		return "would-delete"
	case Excluded:
		return "excluded"
	case NotEmpty:
		return "not-empty"
	case Unverified:
		return "unverified"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Candidate is a directory found below a scan root. Depth is 1 for direct
// children of the root.
type Candidate struct {
	Path  string
	Depth int
}

// Decision is the per-directory result handed to the accumulator.
type Decision struct {
	Candidate
	Outcome Outcome
	// Rule is the exclusion rule that matched, for Excluded.
	Rule string
	// Err is set for Unverified and Failed.
	Err error
}

// Op names the step that produced a Failure.
type Op string

const (
	OpRoot   Op = "root"
	OpList   Op = "list"
	OpCheck  Op = "check"
	OpDelete Op = "delete"
)

type Failure struct {
	Path string
	Op   Op
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Path, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result accumulates a whole run. Deleted is in deletion order: bottom-up,
// root by root. On dry runs it lists what would have been deleted.
type Result struct {
	Deleted  []string
	Failures []Failure

	Scanned  int
	Excluded int
	NotEmpty int

	DryRun      bool
	Interrupted bool
	Duration    time.Duration
}

func (r *Result) Count() int {
	return len(r.Deleted)
}

// record folds one decision into the result. Paths are only appended after
// the delete primitive has returned successfully.
func (r *Result) record(d Decision) {
	r.Scanned++
	switch d.Outcome {
	case Deleted, WouldDelete:
		r.Deleted = append(r.Deleted, d.Path)
	case Excluded:
		r.Excluded++
	case NotEmpty:
		r.NotEmpty++
	case Unverified:
		r.fail(d.Path, OpCheck, d.Err)
	case Failed:
		r.fail(d.Path, OpDelete, d.Err)
	}
}

func (r *Result) fail(path string, op Op, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Op: op, Err: err})
}

// FailuresByOp returns the failures recorded for op.
func (r *Result) FailuresByOp(op Op) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Op == op {
			out = append(out, f)
		}
	}
	return out
}
