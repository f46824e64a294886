package sync

import "time"

// Action is the operation the engine decided on for one local/remote pair.
type Action string

const (
	// ActionSkip means nothing needs to happen (no-op). Direction-filtered
	// and conflicted-pending pairs are also recorded as skips.
	ActionSkip Action = "skip"

	// ActionPush writes local content to the remote page.
	ActionPush Action = "push"

	// ActionPull writes remote content to the local file.
	ActionPull Action = "pull"

	// ActionConflict means both sides changed since the last sync and the
	// configured resolver decides the outcome.
	ActionConflict Action = "conflict"
)

// ConflictInfo carries everything a resolver needs to decide a conflict.
// It is run-scoped and never persisted.
type ConflictInfo struct {
	LocalPath     string
	WikiPage      string
	Action        Action
	BaseContent   string // last-synced ancestor content
	HasBase       bool   // false when no ancestor could be retrieved
	LocalContent  string
	RemoteContent string
	MergedContent string // result of the merge attempt, if one was made
	HasMarkers    bool
	Diff          string // local vs remote unified diff for display
}

// Result records the outcome of syncing one pair. Warning carries a
// non-fatal condition the write went through despite, such as an
// uncommitted git worktree under warn-mode safety.
type Result struct {
	LocalPath string `json:"local_path"`
	WikiPage  string `json:"wiki_page"`
	Action    Action `json:"action"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Report aggregates the results of one full reconciliation pass.
type Report struct {
	RunID       string    `json:"run_id"`
	ProfileName string    `json:"profile_name"`
	DryRun      bool      `json:"dry_run"`
	Results     []Result  `json:"results"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}
