package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tracsync/tracsync/internal/sync"
	"github.com/tracsync/tracsync/internal/utils"
)

var ErrSyncAlreadyRunning = errors.New("sync already running for this profile")

// RemoteAPI is the full remote surface the service needs: the engine's
// contract plus ticket filing for unattended conflict runs.
type RemoteAPI interface {
	sync.RemoteClient
	CreateTicket(ctx context.Context, summary, description string, attrs map[string]string) (int, error)
}

// RunResult bundles a run's report with the artifacts the caller has to
// deal with afterwards.
type RunResult struct {
	Report           *sync.Report
	PendingConflicts []*sync.ConflictInfo
	TicketsFiled     []int
}

// ProfileStatus is the read-only view of a profile's sync state.
type ProfileStatus struct {
	Profile      string
	TrackedFiles int
	Conflicts    int
	LastSync     *time.Time
}

// Service coordinates sync runs: it rate-limits the remote client, holds a
// per-profile file lock for the duration of a run, and files tickets for
// conflicts left behind by unattended runs.
type Service struct {
	remote  RemoteAPI
	limited sync.RemoteClient
	log     *slog.Logger
}

func New(remote RemoteAPI, maxParallel int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		remote:  remote,
		limited: newLimitedClient(remote, maxParallel),
		log:     log,
	}
}

// Run executes one reconciliation pass for the profile. A second Run on the
// same profile, from this or any other process, fails fast with
// ErrSyncAlreadyRunning.
func (s *Service) Run(ctx context.Context, profile *sync.Profile, dryRun bool) (*RunResult, error) {
	if err := utils.EnsureDir(profile.StateDir); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(filepath.Join(profile.StateDir, "sync_"+profile.Name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire profile lock: %w", err)
	}
	if !locked {
		return nil, ErrSyncAlreadyRunning
	}
	defer lock.Unlock()

	resolver, err := sync.NewResolver(profile.ConflictStrategy)
	if err != nil {
		return nil, err
	}

	store := sync.NewStateStore(profile.StateDir)
	engine := sync.NewEngine(profile, s.limited, resolver, store, s.log)

	report, err := engine.Run(ctx, dryRun)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Report: report}
	switch r := resolver.(type) {
	case *sync.InteractiveResolver:
		result.PendingConflicts = r.PendingConflicts
	case *sync.MarkersResolver:
		if !dryRun {
			result.TicketsFiled = s.fileTickets(ctx, profile, r.TicketRequests)
		}
	}
	return result, nil
}

// Status reads the persisted state without touching the remote or
// triggering a sync.
func (s *Service) Status(profile *sync.Profile) (*ProfileStatus, error) {
	store := sync.NewStateStore(profile.StateDir)
	doc, err := store.Load(profile.Name)
	if err != nil {
		return nil, err
	}

	status := &ProfileStatus{
		Profile:      profile.Name,
		TrackedFiles: len(doc.Entries),
		LastSync:     doc.LastSync,
	}
	for _, entry := range doc.Entries {
		if entry.Conflicted {
			status.Conflicts++
		}
	}
	return status, nil
}

// fileTickets records each unresolved conflict as a Trac ticket, best
// effort. A filing failure is logged and never fails the run.
func (s *Service) fileTickets(ctx context.Context, profile *sync.Profile, conflicts []*sync.ConflictInfo) []int {
	var filed []int
	for _, conflict := range conflicts {
		summary := fmt.Sprintf("Sync conflict on %s", conflict.WikiPage)
		description := fmt.Sprintf(
			"Unattended sync (profile %s) hit a conflict between %s and %s.\n"+
				"Conflict markers were written to the local file; resolve them and rerun.\n\n"+
				"{{{\n%s\n}}}\n",
			profile.Name, conflict.LocalPath, conflict.WikiPage, conflict.Diff)

		id, err := s.remote.CreateTicket(ctx, summary, description, map[string]string{
			"type":     "task",
			"keywords": "tracsync, conflict",
		})
		if err != nil {
			s.log.Warn("ticket filing failed",
				"wiki_page", conflict.WikiPage, "error", err)
			continue
		}
		s.log.Info("conflict ticket filed", "ticket", id, "wiki_page", conflict.WikiPage)
		filed = append(filed, id)
	}
	return filed
}
