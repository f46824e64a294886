package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory versioned wiki.
type fakeRemote struct {
	pages    map[string][]string // name -> content per version, versions[0] is v1
	putErr   map[string]error
	raceEdit map[string]string // landed by a concurrent writer just before the next put
	listErr  error
	puts     int
	putCheck map[string]int // version check sent with the last put per page
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pages:    make(map[string][]string),
		putErr:   make(map[string]error),
		raceEdit: make(map[string]string),
		putCheck: make(map[string]int),
	}
}

func (f *fakeRemote) seed(name, content string) {
	f.pages[name] = append(f.pages[name], content)
}

func (f *fakeRemote) ListPages(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name := range f.pages {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRemote) GetPage(ctx context.Context, name string) (string, error) {
	versions, ok := f.pages[name]
	if !ok {
		return "", fmt.Errorf("page %s not found", name)
	}
	return versions[len(versions)-1], nil
}

func (f *fakeRemote) GetPageVersion(ctx context.Context, name string, version int) (string, error) {
	versions, ok := f.pages[name]
	if !ok || version < 1 || version > len(versions) {
		return "", fmt.Errorf("page %s version %d not found", name, version)
	}
	return versions[version-1], nil
}

func (f *fakeRemote) PageVersion(ctx context.Context, name string) (int, error) {
	versions, ok := f.pages[name]
	if !ok {
		return 0, fmt.Errorf("page %s not found", name)
	}
	return len(versions), nil
}

func (f *fakeRemote) PutPage(ctx context.Context, name, content, comment string, version int) error {
	if err := f.putErr[name]; err != nil {
		return err
	}
	if raced, ok := f.raceEdit[name]; ok {
		f.pages[name] = append(f.pages[name], raced)
		delete(f.raceEdit, name)
	}
	f.putCheck[name] = version
	if version > 0 && version != len(f.pages[name]) {
		return fmt.Errorf("page %s has been modified since version %d", name, version)
	}
	f.puts++
	f.pages[name] = append(f.pages[name], content)
	return nil
}

type engineFixture struct {
	profile *Profile
	remote  *fakeRemote
	store   *StateStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	profile := &Profile{
		Name:        "test",
		Source:      t.TempDir(),
		Destination: "Wiki",
		StateDir:    t.TempDir(),
	}
	profile.ApplyDefaults()
	return &engineFixture{
		profile: profile,
		remote:  newFakeRemote(),
		store:   NewStateStore(profile.StateDir),
	}
}

func (f *engineFixture) engine(resolver Resolver) *Engine {
	if resolver == nil {
		resolver = &MarkersResolver{}
	}
	return NewEngine(f.profile, f.remote, resolver, f.store, nil)
}

func (f *engineFixture) run(t *testing.T, dryRun bool) *Report {
	t.Helper()
	report, err := f.engine(nil).Run(context.Background(), dryRun)
	require.NoError(t, err)
	return report
}

func (f *engineFixture) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(f.profile.Source, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (f *engineFixture) readFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.profile.Source, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestEngine_NewLocalFilePushes(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "guide.md", "hello\n")

	report := f.run(t, false)
	assert.Equal(t, 1, report.Pushed())
	assert.Equal(t, "hello\n", f.remote.pages["Wiki/guide"][0])

	doc, err := f.store.Load("test")
	require.NoError(t, err)
	entry := doc.GetEntry("guide.md")
	require.NotNil(t, entry)
	assert.Equal(t, "Wiki/guide", entry.WikiPage)
	assert.Equal(t, ContentHash("hello\n"), entry.LocalHash)
	assert.Equal(t, 1, entry.RemoteVersion)
}

func TestEngine_RemoteOnlyPagePulls(t *testing.T) {
	f := newEngineFixture(t)
	f.remote.seed("Wiki/notes", "remote text\n")

	report := f.run(t, false)
	assert.Equal(t, 1, report.Pulled())
	assert.Equal(t, "remote text\n", f.readFile(t, "notes.md"))
}

func TestEngine_SecondRunIsAllSkips(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "aaa\n")
	f.remote.seed("Wiki/b", "bbb\n")

	first := f.run(t, false)
	assert.Equal(t, 1, first.Pushed())
	assert.Equal(t, 1, first.Pulled())

	second := f.run(t, false)
	assert.Zero(t, second.Pushed())
	assert.Zero(t, second.Pulled())
	assert.Zero(t, second.Conflicts())
	assert.Equal(t, 2, second.Skipped())
	assert.Empty(t, second.Errors())
}

func TestEngine_LocalEditPushes(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "v1\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "v2\n")
	report := f.run(t, false)
	assert.Equal(t, 1, report.Pushed())
	pages := f.remote.pages["Wiki/a"]
	assert.Equal(t, "v2\n", pages[len(pages)-1])
}

func TestEngine_RemoteEditPulls(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "v1\n")
	f.run(t, false)

	f.remote.seed("Wiki/a", "v2 remote\n")
	report := f.run(t, false)
	assert.Equal(t, 1, report.Pulled())
	assert.Equal(t, "v2 remote\n", f.readFile(t, "a.md"))
}

func TestEngine_CosmeticLocalChangeIsSkip(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "line one\nline two\n")
	f.run(t, false)

	// CRLF and trailing whitespace do not count as changes
	f.writeFile(t, "a.md", "line one  \r\nline two\r\n")
	report := f.run(t, false)
	assert.Zero(t, report.Pushed())
	assert.Equal(t, 1, report.Skipped())
}

func TestEngine_BothChangedMergesCleanly(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "aaa\nbbb\nccc\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "aaa\nBBB\nccc\n")
	f.remote.seed("Wiki/a", "aaa\nbbb\nCCC\n")

	report := f.run(t, false)
	assert.Equal(t, 1, report.Conflicts())
	assert.Empty(t, report.Errors())

	merged := "aaa\nBBB\nCCC\n"
	assert.Equal(t, merged, f.readFile(t, "a.md"))
	pages := f.remote.pages["Wiki/a"]
	assert.Equal(t, merged, pages[len(pages)-1])

	// both sides converged, next run is a no-op
	second := f.run(t, false)
	assert.Equal(t, 1, second.Skipped())
	assert.Zero(t, second.Conflicts())
}

func TestEngine_RealConflictWritesMarkersAndFlags(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "base\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "local change\n")
	f.remote.seed("Wiki/a", "remote change\n")

	putsBefore := f.remote.puts
	report := f.run(t, false)
	assert.Equal(t, 1, report.Conflicts())
	assert.Equal(t, putsBefore, f.remote.puts)

	content := f.readFile(t, "a.md")
	assert.Contains(t, content, MarkerStart)
	assert.Contains(t, content, "local change")
	assert.Contains(t, content, "remote change")

	doc, err := f.store.Load("test")
	require.NoError(t, err)
	assert.True(t, doc.IsConflicted("a.md"))

	// while the markers remain the pair is left alone
	third := f.run(t, false)
	assert.Zero(t, third.Conflicts())
	assert.Equal(t, 1, third.Skipped())
}

func TestEngine_ResolvedMarkersRejoinSync(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "base\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "local change\n")
	f.remote.seed("Wiki/a", "remote change\n")
	f.run(t, false)

	// user resolves by hand, markers gone
	f.writeFile(t, "a.md", "settled\n")
	report := f.run(t, false)
	assert.Empty(t, report.Errors())

	doc, err := f.store.Load("test")
	require.NoError(t, err)
	assert.False(t, doc.IsConflicted("a.md"))
	pages := f.remote.pages["Wiki/a"]
	assert.Equal(t, "settled\n", pages[len(pages)-1])
}

func TestEngine_LocalWinsConvergesOnLocal(t *testing.T) {
	f := newEngineFixture(t)
	f.profile.ConflictStrategy = StrategyLocalWins
	f.writeFile(t, "a.md", "base\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "local change\n")
	f.remote.seed("Wiki/a", "remote change\n")

	resolver, err := NewResolver(StrategyLocalWins)
	require.NoError(t, err)
	report, err := f.engine(resolver).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts())

	pages := f.remote.pages["Wiki/a"]
	assert.Equal(t, "local change\n", pages[len(pages)-1])
	assert.Equal(t, "local change\n", f.readFile(t, "a.md"))
}

func TestEngine_DirectionPushNeverWritesLocally(t *testing.T) {
	f := newEngineFixture(t)
	f.profile.Direction = DirectionPush
	f.remote.seed("Wiki/remote-only", "remote\n")

	report := f.run(t, false)
	assert.Zero(t, report.Pulled())
	assert.Equal(t, 1, report.Skipped())
	_, err := os.Stat(filepath.Join(f.profile.Source, "remote-only.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_DirectionPullNeverPushes(t *testing.T) {
	f := newEngineFixture(t)
	f.profile.Direction = DirectionPull
	f.writeFile(t, "local-only.md", "local\n")

	report := f.run(t, false)
	assert.Zero(t, report.Pushed())
	assert.Equal(t, 1, report.Skipped())
	assert.Empty(t, f.remote.pages)
}

func TestEngine_DryRunTouchesNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "local\n")
	f.remote.seed("Wiki/b", "remote\n")

	report := f.run(t, true)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Pushed())
	assert.Equal(t, 1, report.Pulled())

	assert.Empty(t, f.remote.pages["Wiki/a"])
	_, err := os.Stat(filepath.Join(f.profile.Source, "b.md"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.profile.StateDir, "sync_test.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_PairFailureDoesNotAbortRun(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "bad.md", "bad\n")
	f.writeFile(t, "good.md", "good\n")
	f.remote.putErr["Wiki/bad"] = errors.New("permission denied")

	report := f.run(t, false)
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, "bad.md", report.Errors()[0].LocalPath)
	assert.Equal(t, 1, report.Pushed())
	assert.Equal(t, "good\n", f.remote.pages["Wiki/good"][0])
}

func TestEngine_ListFailureDegradesToLocalView(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "aaa\n")
	f.remote.listErr = errors.New("xmlrpc fault")

	report := f.run(t, false)
	assert.Equal(t, 1, report.Pushed())
	assert.Empty(t, report.Errors())
}

func TestEngine_VanishedPairEntryRemoved(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "aaa\n")
	f.run(t, false)

	require.NoError(t, os.Remove(filepath.Join(f.profile.Source, "a.md")))
	delete(f.remote.pages, "Wiki/a")

	f.run(t, false)
	doc, err := f.store.Load("test")
	require.NoError(t, err)
	assert.Nil(t, doc.GetEntry("a.md"))
}

func TestEngine_InteractiveQueuesAndSkips(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "base\n")
	f.run(t, false)

	f.writeFile(t, "a.md", "local change\n")
	f.remote.seed("Wiki/a", "remote change\n")

	resolver := &InteractiveResolver{}
	report, err := f.engine(resolver).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts())

	require.Len(t, resolver.PendingConflicts, 1)
	conflict := resolver.PendingConflicts[0]
	assert.Equal(t, "a.md", conflict.LocalPath)
	assert.True(t, conflict.HasBase)
	assert.NotEmpty(t, conflict.Diff)

	// nothing was written anywhere
	assert.Equal(t, "local change\n", f.readFile(t, "a.md"))
}

func TestEngine_PushSendsVersionCheck(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "v1\n")
	f.run(t, false)
	assert.Zero(t, f.remote.putCheck["Wiki/a"], "new page carries no version check")

	f.writeFile(t, "a.md", "v2\n")
	f.run(t, false)
	assert.Equal(t, 1, f.remote.putCheck["Wiki/a"])
}

func TestEngine_ConcurrentRemoteEditFailsPush(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "v1\n")
	f.run(t, false)

	// another author lands an edit between our version read and the put
	f.writeFile(t, "a.md", "v2\n")
	f.remote.raceEdit["Wiki/a"] = "raced edit\n"

	report := f.run(t, false)
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Error, "has been modified")

	pages := f.remote.pages["Wiki/a"]
	assert.Equal(t, "raced edit\n", pages[len(pages)-1], "losing edit must not overwrite")
}

func TestEngine_FormatConversionAtBoundary(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "guide.md", "## Setup\n\nSome **bold** text.\n")
	f.remote.seed("Wiki/notes", "= Notes =\nSee ''these'' notes.\n")

	f.run(t, false)

	// pushed content is wiki markup, pulled content is markdown
	assert.Equal(t, "== Setup ==\nSome '''bold''' text.\n", f.remote.pages["Wiki/guide"][0])
	assert.Equal(t, "# Notes\nSee *these* notes.\n", f.readFile(t, "notes.md"))

	doc, err := f.store.Load("test")
	require.NoError(t, err)
	guide := doc.GetEntry("guide.md")
	require.NotNil(t, guide)
	assert.Equal(t, ContentHash("## Setup\n\nSome **bold** text.\n"), guide.LocalHash)
	assert.Equal(t, ContentHash("== Setup ==\nSome '''bold''' text.\n"), guide.RemoteHash)

	// a second run sees both sides unchanged
	second := f.run(t, false)
	assert.Equal(t, 2, second.Skipped())
	assert.Empty(t, second.Errors())
}

func TestEngine_WarnModeFlagsDirtyWrite(t *testing.T) {
	f := newEngineFixture(t)
	dir, worktree := initRepo(t)
	commitFile(t, dir, worktree, "doc.md", "hello\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("edited\n"), 0o644))
	f.profile.Source = dir
	f.profile.GitSafety = GitSafetyWarn

	f.remote.seed("Wiki/notes", "remote text\n")
	report := f.run(t, false)

	assert.Equal(t, 1, report.Pulled())
	var pull *Result
	for i := range report.Results {
		if report.Results[i].Action == ActionPull {
			pull = &report.Results[i]
		}
	}
	require.NotNil(t, pull)
	assert.True(t, pull.Success)
	assert.Contains(t, pull.Warning, "uncommitted changes")
}

func TestEngine_PersistedLastSyncIsRunStart(t *testing.T) {
	f := newEngineFixture(t)
	f.writeFile(t, "a.md", "hello\n")
	report := f.run(t, false)

	doc, err := f.store.Load("test")
	require.NoError(t, err)
	require.NotNil(t, doc.LastSync)
	assert.True(t, doc.LastSync.Equal(report.StartedAt),
		"persisted last_sync %s should be the run start %s", doc.LastSync, report.StartedAt)
}
