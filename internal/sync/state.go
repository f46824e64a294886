package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tracsync/tracsync/internal/utils"
)

// StateDocument is the persisted sync state for one profile. Stored hashes
// reflect content at the last successful sync, never current disk state.
type StateDocument struct {
	Version  int                    `json:"version"`
	LastSync *time.Time             `json:"last_sync"`
	Profile  string                 `json:"profile"`
	Entries  map[string]*StateEntry `json:"entries"`
}

// StateEntry tracks one local-path/wiki-page pair.
type StateEntry struct {
	LocalPath     string  `json:"local_path"`
	WikiPage      string  `json:"wiki_page"`
	LocalHash     string  `json:"local_hash,omitempty"`
	RemoteHash    string  `json:"remote_hash,omitempty"`
	RemoteVersion int     `json:"remote_version,omitempty"`
	LocalMtime    float64 `json:"local_mtime,omitempty"`
	LastSynced    string  `json:"last_synced,omitempty"`
	Conflicted    bool    `json:"conflicted,omitempty"`
}

// GetEntry returns the entry for localPath, or nil.
func (d *StateDocument) GetEntry(localPath string) *StateEntry {
	return d.Entries[localPath]
}

// UpdateEntry upserts the entry for localPath.
func (d *StateDocument) UpdateEntry(localPath string, entry *StateEntry) {
	if d.Entries == nil {
		d.Entries = make(map[string]*StateEntry)
	}
	d.Entries[localPath] = entry
}

// RemoveEntry drops the entry for localPath; no-op if absent.
func (d *StateDocument) RemoveEntry(localPath string) {
	delete(d.Entries, localPath)
}

// IsConflicted reports whether localPath is marked as unresolved. Missing
// entries are never conflicted.
func (d *StateDocument) IsConflicted(localPath string) bool {
	entry := d.Entries[localPath]
	return entry != nil && entry.Conflicted
}

// StateStore loads and saves per-profile state documents as JSON files
// under a state directory.
type StateStore struct {
	dir string
}

func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Load reads the state document for a profile. A missing file yields a fresh
// empty document; a present-but-unreadable document is a hard error, since
// silently discarding history would trigger mass re-push/re-pull.
func (s *StateStore) Load(profileName string) (*StateDocument, error) {
	path := s.statePath(profileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StateDocument{
				Version: 1,
				Profile: profileName,
				Entries: make(map[string]*StateEntry),
			}, nil
		}
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	var doc StateDocument
	if err := jsonUnmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]*StateEntry)
	}
	return &doc, nil
}

// Save persists the document atomically (write temp, then rename) and stamps
// last_sync with the given time in UTC. Creates the state dir if needed.
func (s *StateStore) Save(profileName string, doc *StateDocument, lastSync time.Time) error {
	if err := utils.EnsureDir(s.dir); err != nil {
		return fmt.Errorf("create state dir %s: %w", s.dir, err)
	}

	utc := lastSync.UTC()
	doc.LastSync = &utc

	data, err := jsonMarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "sync_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close state: %w", err)
	}

	target := s.statePath(profileName)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state %s: %w", target, err)
	}
	return nil
}

func (s *StateStore) statePath(profileName string) string {
	return filepath.Join(s.dir, fmt.Sprintf("sync_%s.json", profileName))
}

// ContentHash computes a normalization-insensitive SHA-256 hex digest so
// cosmetic edits never register as changes. Normalization: strip a leading
// BOM, fold CRLF and lone CR to LF, right-trim each line, drop trailing
// blank lines.
func ContentHash(content string) string {
	text := strings.TrimPrefix(content, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
