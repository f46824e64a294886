package sync

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// contentExt is the extension of synced content files.
const contentExt = ".md"

// ignoreFileName is an optional gitignore-style file at the source root that
// filters local discovery in addition to the profile excludes.
const ignoreFileName = ".tracsyncignore"

// Pair is one local path / wiki page couple scheduled for reconciliation.
type Pair struct {
	LocalPath string
	WikiPage  string
}

// PathMapper translates between local file paths (relative to the profile
// source) and wiki page names using the profile's ordered mapping rules.
// Mapping is a pure function of the path for a fixed ruleset.
type PathMapper struct {
	profile *Profile
}

func NewPathMapper(profile *Profile) *PathMapper {
	return &PathMapper{profile: profile}
}

// MapLocalToWiki maps a source-relative path to a wiki page name. Returns
// ok=false when the path matches an exclude glob, which overrides any rule.
func (m *PathMapper) MapLocalToWiki(localPath string) (string, bool) {
	if m.isExcluded(localPath) {
		return "", false
	}

	stem := pathStem(localPath)

	for _, rule := range m.profile.Mappings {
		if !globMatch(rule.Pattern, localPath) {
			continue
		}
		namespace := expandNamespace(rule.Namespace, localPath)
		pageName := resolvePageName(localPath, stem, rule.NameRules)
		return cleanWikiPath(m.profile.Destination + "/" + namespace + "/" + pageName), true
	}

	// flat mode: extension-stripped filename directly under the destination
	return cleanWikiPath(m.profile.Destination + "/" + stem), true
}

// MapWikiToLocal is the best-effort reverse mapping: strip the destination
// prefix and append the content extension. Pages equal to or outside the
// destination map to nothing. Namespace templates are not inverted, so
// round-trips are only guaranteed for flat layouts.
func (m *PathMapper) MapWikiToLocal(wikiPage string) (string, bool) {
	dest := strings.TrimRight(m.profile.Destination, "/")
	if wikiPage == dest || !strings.HasPrefix(wikiPage, dest+"/") {
		return "", false
	}

	remainder := strings.TrimLeft(strings.TrimPrefix(wikiPage, dest), "/")
	if remainder == "" {
		return "", false
	}
	return remainder + contentExt, true
}

// DiscoverLocalFiles enumerates content files under root accepted by the
// profile's rules and excludes, sorted. A missing root yields an empty
// result, never an error.
func (m *PathMapper) DiscoverLocalFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	ignore := loadIgnoreFile(root)

	var found []string
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), contentExt) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(m.profile.Mappings) > 0 && !m.matchesAnyRule(rel) {
			return nil
		}
		if m.isExcluded(rel) {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}

		found = append(found, rel)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Strings(found)
	return found, nil
}

// BuildPairs unions locally-discovered files with remotely-known pages,
// deduplicated by local path and sorted for deterministic runs. Remote-only
// pages get a synthesized local path via the reverse mapping.
func (m *PathMapper) BuildPairs(root string, remotePages []string) ([]Pair, error) {
	seen := make(map[string]string)

	locals, err := m.DiscoverLocalFiles(root)
	if err != nil {
		return nil, err
	}
	for _, localPath := range locals {
		if page, ok := m.MapLocalToWiki(localPath); ok {
			seen[localPath] = page
		}
	}

	for _, page := range remotePages {
		localPath, ok := m.MapWikiToLocal(page)
		if !ok {
			continue
		}
		if _, exists := seen[localPath]; !exists {
			seen[localPath] = page
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for localPath, page := range seen {
		pairs = append(pairs, Pair{LocalPath: localPath, WikiPage: page})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].LocalPath < pairs[j].LocalPath })
	return pairs, nil
}

func (m *PathMapper) matchesAnyRule(localPath string) bool {
	for _, rule := range m.profile.Mappings {
		if globMatch(rule.Pattern, localPath) {
			return true
		}
	}
	return false
}

// isExcluded matches exclude globs against the full relative path and the
// bare filename, so both "drafts/**" and "*.draft.md" behave as expected.
func (m *PathMapper) isExcluded(localPath string) bool {
	base := path.Base(localPath)
	for _, pattern := range m.profile.Exclude {
		if globMatch(pattern, localPath) || globMatch(pattern, base) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// expandNamespace resolves {parent}, {stem} and {path} template variables
// from the local path.
func expandNamespace(template, localPath string) string {
	parent := ""
	if dir := path.Dir(localPath); dir != "." {
		parent = path.Base(dir)
	}

	result := strings.ReplaceAll(template, "{parent}", parent)
	result = strings.ReplaceAll(result, "{stem}", pathStem(localPath))
	result = strings.ReplaceAll(result, "{path}", strings.TrimSuffix(localPath, contentExt))
	return result
}

// resolvePageName applies the rule's ordered name overrides to the filename;
// without a match the page name is the stem.
func resolvePageName(localPath, stem string, rules []NameRule) string {
	filename := path.Base(localPath)
	for _, rule := range rules {
		if rule.Match == filename || globMatch(rule.Match, filename) {
			return rule.Name
		}
	}
	return stem
}

// pathStem is the filename with the content extension stripped.
func pathStem(localPath string) string {
	name := path.Base(localPath)
	return strings.TrimSuffix(name, contentExt)
}

// cleanWikiPath collapses duplicate separators and trims trailing ones.
func cleanWikiPath(raw string) string {
	for strings.Contains(raw, "//") {
		raw = strings.ReplaceAll(raw, "//", "/")
	}
	return strings.TrimRight(raw, "/")
}

func loadIgnoreFile(root string) *gitignore.GitIgnore {
	ignorePath := filepath.Join(root, ignoreFileName)
	if _, err := os.Stat(ignorePath); err != nil {
		return nil
	}
	ignore, err := gitignore.CompileIgnoreFile(ignorePath)
	if err != nil {
		return nil
	}
	return ignore
}
