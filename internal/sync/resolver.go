package sync

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution is a resolver's verdict for a single conflicted pair.
type Resolution string

const (
	// ResolutionMerged converges both sides on the marker-free merge result.
	ResolutionMerged Resolution = "merged"
	// ResolutionLocal converges both sides on the local content.
	ResolutionLocal Resolution = "local"
	// ResolutionRemote converges both sides on the remote content.
	ResolutionRemote Resolution = "remote"
	// ResolutionMarkers writes the conflict-marker text to the local file
	// only, leaving the pair flagged for manual resolution.
	ResolutionMarkers Resolution = "markers"
	// ResolutionSkip leaves both sides untouched.
	ResolutionSkip Resolution = "skip"
)

// Conflict strategy names as they appear in profile configuration.
const (
	StrategyInteractive = "interactive"
	StrategyMarkers     = "markers"
	StrategyLocalWins   = "local-wins"
	StrategyRemoteWins  = "remote-wins"
)

// Resolver decides how a conflicted pair is settled. Resolvers never touch
// files themselves; the engine executes the returned resolution.
type Resolver interface {
	Resolve(conflict *ConflictInfo) Resolution
}

// NewResolver builds the resolver registered for the given strategy name.
func NewResolver(strategy string) (Resolver, error) {
	switch strategy {
	case StrategyInteractive:
		return &InteractiveResolver{}, nil
	case StrategyMarkers:
		return &MarkersResolver{}, nil
	case StrategyLocalWins:
		return localWinsResolver{}, nil
	case StrategyRemoteWins:
		return remoteWinsResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q, valid strategies: %s",
			strategy, strings.Join(ValidStrategies(), ", "))
	}
}

// ValidStrategies returns the recognized strategy names, sorted.
func ValidStrategies() []string {
	names := []string{StrategyInteractive, StrategyMarkers, StrategyLocalWins, StrategyRemoteWins}
	sort.Strings(names)
	return names
}

func isValidStrategy(strategy string) bool {
	for _, name := range ValidStrategies() {
		if strategy == name {
			return true
		}
	}
	return false
}

// ResolvedContent computes the text both sides converge on for a resolution,
// or ok=false when the resolution does not converge the pair (skip, markers).
func ResolvedContent(conflict *ConflictInfo, resolution Resolution) (string, bool) {
	switch resolution {
	case ResolutionMerged:
		return conflict.MergedContent, true
	case ResolutionLocal:
		return conflict.LocalContent, true
	case ResolutionRemote:
		return conflict.RemoteContent, true
	default:
		return "", false
	}
}

// MarkerContent is the text written locally for a markers resolution: the
// merge output when a base exists, otherwise the whole-file marker wrapper.
func MarkerContent(conflict *ConflictInfo) string {
	if conflict.HasBase && conflict.MergedContent != "" {
		return conflict.MergedContent
	}
	return MarkerStart + "\n" + strings.TrimRight(conflict.LocalContent, "\n") + "\n" +
		MarkerMid + "\n" + strings.TrimRight(conflict.RemoteContent, "\n") + "\n" +
		MarkerEnd + "\n"
}

// InteractiveResolver defers every conflict to the user. Within a run it
// only queues the conflicts; the CLI walks the queue after the run and
// replays the user's choices through the engine.
type InteractiveResolver struct {
	PendingConflicts []*ConflictInfo
}

func (r *InteractiveResolver) Resolve(conflict *ConflictInfo) Resolution {
	// clean merges need no prompting even in interactive mode
	if conflict.HasBase && !conflict.HasMarkers {
		return ResolutionMerged
	}
	r.PendingConflicts = append(r.PendingConflicts, conflict)
	return ResolutionSkip
}

// MarkersResolver is the unattended strategy: clean merges converge, real
// conflicts are materialized as marker text in the local file and queued so
// the run can file a tracking ticket afterwards.
type MarkersResolver struct {
	TicketRequests []*ConflictInfo
}

func (r *MarkersResolver) Resolve(conflict *ConflictInfo) Resolution {
	if conflict.HasBase && !conflict.HasMarkers {
		return ResolutionMerged
	}
	r.TicketRequests = append(r.TicketRequests, conflict)
	return ResolutionMarkers
}

type localWinsResolver struct{}

func (localWinsResolver) Resolve(conflict *ConflictInfo) Resolution {
	return ResolutionLocal
}

type remoteWinsResolver struct{}

func (remoteWinsResolver) Resolve(conflict *ConflictInfo) Resolution {
	return ResolutionRemote
}
