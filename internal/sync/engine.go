package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tracsync/tracsync/internal/convert"
	"github.com/tracsync/tracsync/internal/utils"
)

// RemoteClient is the narrow remote contract the engine consumes. The
// service layer satisfies it with a rate-limited wiki client.
type RemoteClient interface {
	ListPages(ctx context.Context) ([]string, error)
	GetPage(ctx context.Context, name string) (string, error)
	GetPageVersion(ctx context.Context, name string, version int) (string, error)
	PageVersion(ctx context.Context, name string) (int, error)
	PutPage(ctx context.Context, name, content, comment string, version int) error
}

// Engine reconciles one profile's local tree with its wiki namespace.
// Pairs are processed sequentially in sorted order; a failure on one pair
// is recorded and never aborts the batch. State is persisted once at the
// end of a non-dry run.
type Engine struct {
	profile  *Profile
	remote   RemoteClient
	resolver Resolver
	mapper   *PathMapper
	store    *StateStore
	safety   *GitSafety
	log      *slog.Logger
}

func NewEngine(profile *Profile, remote RemoteClient, resolver Resolver, store *StateStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		profile:  profile,
		remote:   remote,
		resolver: resolver,
		mapper:   NewPathMapper(profile),
		store:    store,
		safety:   NewGitSafety(profile.GitSafety, profile.Source),
		log:      log.With("profile", profile.Name),
	}
}

// Run performs one full reconciliation pass. Dry runs classify and resolve
// but never write locally, remotely, or to the state file.
func (e *Engine) Run(ctx context.Context, dryRun bool) (*Report, error) {
	doc, err := e.store.Load(e.profile.Name)
	if err != nil {
		return nil, err
	}

	report := NewReport(e.profile.Name, dryRun)
	defer report.Finish()

	remotePages, err := e.remote.ListPages(ctx)
	if err != nil {
		// a dead remote degrades to a local-only view, pairs still push
		e.log.Warn("listing remote pages failed, continuing with local view", "error", err)
		remotePages = nil
	}
	remoteSet := make(map[string]bool, len(remotePages))
	for _, page := range remotePages {
		remoteSet[page] = true
	}

	pairs, err := e.mapper.BuildPairs(e.profile.Source, remotePages)
	if err != nil {
		return nil, fmt.Errorf("discover local files: %w", err)
	}
	pairs = e.addTrackedPairs(doc, pairs)

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := e.syncPair(ctx, doc, pair, remoteSet, dryRun)
		report.Record(result)
		e.log.Debug("pair handled",
			"local_path", pair.LocalPath, "wiki_page", pair.WikiPage,
			"action", result.Action, "success", result.Success)
	}

	if !dryRun {
		if err := e.store.Save(e.profile.Name, doc, report.StartedAt); err != nil {
			return report, fmt.Errorf("persist sync state: %w", err)
		}
	}
	return report, nil
}

// addTrackedPairs appends state entries that vanished from both the local
// tree and the remote listing so their records get cleaned up.
func (e *Engine) addTrackedPairs(doc *StateDocument, pairs []Pair) []Pair {
	known := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		known[pair.LocalPath] = true
	}
	for localPath, entry := range doc.Entries {
		if !known[localPath] {
			pairs = append(pairs, Pair{LocalPath: localPath, WikiPage: entry.WikiPage})
		}
	}
	return pairs
}

func (e *Engine) syncPair(ctx context.Context, doc *StateDocument, pair Pair, remoteSet map[string]bool, dryRun bool) Result {
	localContent, localMtime, localExists, err := e.readLocal(pair.LocalPath)
	if err != nil {
		return e.failure(pair, ActionSkip, err)
	}
	remoteExists := remoteSet[pair.WikiPage]
	entry := doc.GetEntry(pair.LocalPath)

	if doc.IsConflicted(pair.LocalPath) {
		// once the user strips the markers the pair rejoins normal flow
		if localExists && strings.Contains(localContent, MarkerStart) {
			return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionSkip, Success: true}
		}
		if !dryRun {
			entry.Conflicted = false
		}
	}

	switch {
	case !localExists && !remoteExists:
		if entry != nil && !dryRun {
			doc.RemoveEntry(pair.LocalPath)
		}
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionSkip, Success: true}

	case localExists && !remoteExists:
		if e.profile.Direction == DirectionPull {
			return e.skip(pair)
		}
		return e.push(ctx, doc, pair, localContent, localMtime, 0, dryRun)

	case !localExists && remoteExists:
		if e.profile.Direction == DirectionPush {
			return e.skip(pair)
		}
		return e.pull(ctx, doc, pair, dryRun)
	}

	remoteContent, err := e.remote.GetPage(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionPull, fmt.Errorf("fetch %s: %w", pair.WikiPage, err))
	}
	remoteVersion, err := e.remote.PageVersion(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionPull, fmt.Errorf("page info %s: %w", pair.WikiPage, err))
	}

	localChanged := entry == nil || ContentHash(localContent) != entry.LocalHash
	remoteChanged := entry == nil || remoteVersion != entry.RemoteVersion

	switch {
	case !localChanged && !remoteChanged:
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionSkip, Success: true}

	case localChanged && !remoteChanged:
		if e.profile.Direction == DirectionPull {
			return e.skip(pair)
		}
		return e.push(ctx, doc, pair, localContent, localMtime, remoteVersion, dryRun)

	case remoteChanged && !localChanged:
		if e.profile.Direction == DirectionPush {
			return e.skip(pair)
		}
		return e.pullContent(doc, pair, remoteContent, remoteVersion, dryRun)
	}

	return e.resolveConflict(ctx, doc, pair, entry, localContent, remoteContent, remoteVersion, dryRun)
}

// push converts the local markdown to wiki markup and writes it remotely.
// checkVersion above zero rides along as Trac's optimistic concurrency
// check; a page that moved underneath us fails the put instead of being
// silently overwritten.
func (e *Engine) push(ctx context.Context, doc *StateDocument, pair Pair, content string, mtime float64, checkVersion int, dryRun bool) Result {
	if dryRun {
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionPush, Success: true}
	}
	wikiContent := convert.MarkdownToTracWiki(content)
	comment := fmt.Sprintf("tracsync: update from %s", pair.LocalPath)
	if err := e.remote.PutPage(ctx, pair.WikiPage, wikiContent, comment, checkVersion); err != nil {
		return e.failure(pair, ActionPush, fmt.Errorf("put %s: %w", pair.WikiPage, err))
	}
	version, err := e.remote.PageVersion(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionPush, fmt.Errorf("page info after put %s: %w", pair.WikiPage, err))
	}

	doc.UpdateEntry(pair.LocalPath, &StateEntry{
		LocalPath:     pair.LocalPath,
		WikiPage:      pair.WikiPage,
		LocalHash:     ContentHash(content),
		RemoteHash:    ContentHash(wikiContent),
		RemoteVersion: version,
		LocalMtime:    mtime,
		LastSynced:    time.Now().UTC().Format(time.RFC3339),
	})
	return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionPush, Success: true}
}

func (e *Engine) pull(ctx context.Context, doc *StateDocument, pair Pair, dryRun bool) Result {
	remoteContent, err := e.remote.GetPage(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionPull, fmt.Errorf("fetch %s: %w", pair.WikiPage, err))
	}
	version, err := e.remote.PageVersion(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionPull, fmt.Errorf("page info %s: %w", pair.WikiPage, err))
	}
	return e.pullContent(doc, pair, remoteContent, version, dryRun)
}

// pullContent takes raw wiki markup, converts it to markdown and writes it
// to the local file.
func (e *Engine) pullContent(doc *StateDocument, pair Pair, wikiContent string, version int, dryRun bool) Result {
	if dryRun {
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionPull, Success: true}
	}
	content := convert.TracWikiToMarkdown(wikiContent)
	mtime, err := e.writeLocal(pair.LocalPath, content)
	if err != nil {
		return e.failure(pair, ActionPull, err)
	}

	doc.UpdateEntry(pair.LocalPath, &StateEntry{
		LocalPath:     pair.LocalPath,
		WikiPage:      pair.WikiPage,
		LocalHash:     ContentHash(content),
		RemoteHash:    ContentHash(wikiContent),
		RemoteVersion: version,
		LocalMtime:    mtime,
		LastSynced:    time.Now().UTC().Format(time.RFC3339),
	})
	return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionPull, Success: true, Warning: e.writeWarning()}
}

func (e *Engine) resolveConflict(ctx context.Context, doc *StateDocument, pair Pair, entry *StateEntry, localContent, remoteContent string, remoteVersion int, dryRun bool) Result {
	// the resolver works on the markdown side of the boundary
	remoteMarkdown := convert.TracWikiToMarkdown(remoteContent)
	conflict := &ConflictInfo{
		LocalPath:     pair.LocalPath,
		WikiPage:      pair.WikiPage,
		Action:        ActionConflict,
		LocalContent:  localContent,
		RemoteContent: remoteMarkdown,
		Diff: UnifiedDiff(localContent, remoteMarkdown,
			"local:"+pair.LocalPath, "remote:"+pair.WikiPage),
	}
	if entry != nil && entry.RemoteVersion > 0 {
		base, err := e.remote.GetPageVersion(ctx, pair.WikiPage, entry.RemoteVersion)
		if err != nil {
			e.log.Warn("ancestor fetch failed, merging without base",
				"wiki_page", pair.WikiPage, "version", entry.RemoteVersion, "error", err)
		} else {
			conflict.BaseContent = convert.TracWikiToMarkdown(base)
			conflict.HasBase = true
			conflict.MergedContent, conflict.HasMarkers = Merge(conflict.BaseContent, localContent, remoteMarkdown)
		}
	}

	resolution := e.resolver.Resolve(conflict)

	switch resolution {
	case ResolutionSkip:
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionConflict, Success: true}

	case ResolutionMarkers:
		if dryRun {
			return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionConflict, Success: true}
		}
		mtime, err := e.writeLocal(pair.LocalPath, MarkerContent(conflict))
		if err != nil {
			return e.failure(pair, ActionConflict, err)
		}
		doc.UpdateEntry(pair.LocalPath, &StateEntry{
			LocalPath:     pair.LocalPath,
			WikiPage:      pair.WikiPage,
			LocalHash:     entryLocalHash(entry),
			RemoteHash:    ContentHash(remoteContent),
			RemoteVersion: remoteVersion,
			LocalMtime:    mtime,
			LastSynced:    time.Now().UTC().Format(time.RFC3339),
			Conflicted:    true,
		})
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionConflict, Success: true, Warning: e.writeWarning()}
	}

	content, ok := ResolvedContent(conflict, resolution)
	if !ok {
		return e.failure(pair, ActionConflict, fmt.Errorf("resolver returned unknown resolution %q", resolution))
	}
	if dryRun {
		return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionConflict, Success: true}
	}

	// resolved content converges both sides
	mtime, err := e.writeLocal(pair.LocalPath, content)
	if err != nil {
		return e.failure(pair, ActionConflict, err)
	}
	wikiContent := convert.MarkdownToTracWiki(content)
	comment := fmt.Sprintf("tracsync: resolve conflict (%s) from %s", resolution, pair.LocalPath)
	if err := e.remote.PutPage(ctx, pair.WikiPage, wikiContent, comment, remoteVersion); err != nil {
		return e.failure(pair, ActionConflict, fmt.Errorf("put %s: %w", pair.WikiPage, err))
	}
	version, err := e.remote.PageVersion(ctx, pair.WikiPage)
	if err != nil {
		return e.failure(pair, ActionConflict, fmt.Errorf("page info after put %s: %w", pair.WikiPage, err))
	}

	doc.UpdateEntry(pair.LocalPath, &StateEntry{
		LocalPath:     pair.LocalPath,
		WikiPage:      pair.WikiPage,
		LocalHash:     ContentHash(content),
		RemoteHash:    ContentHash(wikiContent),
		RemoteVersion: version,
		LocalMtime:    mtime,
		LastSynced:    time.Now().UTC().Format(time.RFC3339),
	})
	return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionConflict, Success: true, Warning: e.writeWarning()}
}

func (e *Engine) readLocal(localPath string) (content string, mtime float64, exists bool, err error) {
	full := filepath.Join(e.profile.Source, filepath.FromSlash(localPath))
	info, statErr := os.Stat(full)
	if os.IsNotExist(statErr) {
		return "", 0, false, nil
	}
	if statErr != nil {
		return "", 0, false, fmt.Errorf("stat %s: %w", localPath, statErr)
	}
	data, readErr := os.ReadFile(full)
	if readErr != nil {
		return "", 0, false, fmt.Errorf("read %s: %w", localPath, readErr)
	}
	return string(data), float64(info.ModTime().UnixNano()) / float64(time.Second), true, nil
}

// writeLocal writes through the git-safety gate and returns the new mtime.
func (e *Engine) writeLocal(localPath, content string) (float64, error) {
	ok, err := e.safety.Check()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("uncommitted changes in %s, refusing local write to %s", e.profile.Source, localPath)
	}
	if e.safety.Dirty() {
		e.log.Warn("worktree has uncommitted changes", "local_path", localPath)
	}

	full := filepath.Join(e.profile.Source, filepath.FromSlash(localPath))
	if err := utils.EnsureParent(full); err != nil {
		return 0, fmt.Errorf("create parent for %s: %w", localPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", localPath, err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	return float64(info.ModTime().UnixNano()) / float64(time.Second), nil
}

// writeWarning flags warn-mode writes that went through over a dirty
// worktree. Valid only after a writeLocal on the same run.
func (e *Engine) writeWarning() string {
	if e.profile.GitSafety == GitSafetyWarn && e.safety.Dirty() {
		return fmt.Sprintf("uncommitted changes in %s", e.profile.Source)
	}
	return ""
}

func (e *Engine) skip(pair Pair) Result {
	return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: ActionSkip, Success: true}
}

func (e *Engine) failure(pair Pair, action Action, err error) Result {
	e.log.Error("pair failed", "local_path", pair.LocalPath, "wiki_page", pair.WikiPage, "error", err)
	return Result{LocalPath: pair.LocalPath, WikiPage: pair.WikiPage, Action: action, Success: false, Error: err.Error()}
}

func entryLocalHash(entry *StateEntry) string {
	if entry == nil {
		return ""
	}
	return entry.LocalHash
}
