package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReport starts an empty run report with a fresh run ID.
func NewReport(profileName string, dryRun bool) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		ProfileName: profileName,
		DryRun:      dryRun,
		StartedAt:   time.Now().UTC(),
	}
}

// Record appends one pair's outcome to the report.
func (r *Report) Record(result Result) {
	r.Results = append(r.Results, result)
}

// Finish stamps the completion time.
func (r *Report) Finish() {
	r.CompletedAt = time.Now().UTC()
}

func (r *Report) countAction(action Action, success bool) int {
	n := 0
	for _, result := range r.Results {
		if result.Action == action && result.Success == success {
			n++
		}
	}
	return n
}

// Pushed is the number of successful local-to-remote updates.
func (r *Report) Pushed() int { return r.countAction(ActionPush, true) }

// Pulled is the number of successful remote-to-local updates.
func (r *Report) Pulled() int { return r.countAction(ActionPull, true) }

// Skipped is the number of pairs left untouched.
func (r *Report) Skipped() int { return r.countAction(ActionSkip, true) }

// Conflicts is the number of pairs that needed conflict handling.
func (r *Report) Conflicts() int {
	n := 0
	for _, result := range r.Results {
		if result.Action == ActionConflict {
			n++
		}
	}
	return n
}

// Errors lists the per-pair failures.
func (r *Report) Errors() []Result {
	var failed []Result
	for _, result := range r.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// Duration is the wall-clock length of the run.
func (r *Report) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary renders a one-paragraph human-readable wrap-up of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	if r.DryRun {
		fmt.Fprintf(&b, "[dry-run] ")
	}
	fmt.Fprintf(&b, "profile %s: %d pushed, %d pulled, %d conflicts, %d skipped",
		r.ProfileName, r.Pushed(), r.Pulled(), r.Conflicts(), r.Skipped())

	failed := r.Errors()
	fmt.Fprintf(&b, ", %d errors", len(failed))
	for _, result := range failed {
		fmt.Fprintf(&b, "\n  %s: %s", result.LocalPath, result.Error)
	}
	return b.String()
}
