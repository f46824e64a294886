package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracsync/tracsync/internal/sync"
)

const validConfig = `
trac:
  url: https://trac.example.com
  username: alice
  password: secret
sync:
  docs:
    source: ./docs
    destination: Planning
    direction: bidirectional
    conflict_strategy: markers
    git_safety: warn
    mappings:
      - pattern: "phases/*/*.md"
        namespace: "Phases/{parent}"
        name_rules:
          - match: "README.md"
            name: "Overview"
    exclude:
      - "drafts/**"
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://trac.example.com", cfg.Trac.URL)
	assert.Equal(t, "alice", cfg.Trac.Username)
	assert.Equal(t, "debug", cfg.Logging.Level)

	profile, err := cfg.Profile("docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", profile.Name)
	assert.Equal(t, "Planning", profile.Destination)
	assert.Equal(t, sync.StrategyMarkers, profile.ConflictStrategy)
	assert.Equal(t, sync.GitSafetyWarn, profile.GitSafety)
	require.Len(t, profile.Mappings, 1)
	assert.Equal(t, "Phases/{parent}", profile.Mappings[0].Namespace)
	require.Len(t, profile.Mappings[0].NameRules, 1)
	assert.Equal(t, "Overview", profile.Mappings[0].NameRules[0].Name)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trac:
  url: https://trac.example.com
sync:
  wiki:
    source: ./notes
    destination: Wiki
`))
	require.NoError(t, err)

	profile, err := cfg.Profile("wiki")
	require.NoError(t, err)
	assert.Equal(t, sync.DirectionBidirectional, profile.Direction)
	assert.Equal(t, sync.StrategyInteractive, profile.ConflictStrategy)
	assert.Equal(t, sync.GitSafetyNone, profile.GitSafety)
	assert.Equal(t, ".tracsync", profile.StateDir)
}

func TestLoad_SingleProfileByEmptyName(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	profile, err := cfg.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "docs", profile.Name)

	_, err = cfg.Profile("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestLoad_MissingURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
sync:
  wiki:
    source: ./notes
    destination: Wiki
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trac.url")
}

func TestLoad_NoProfiles(t *testing.T) {
	_, err := Load(writeConfig(t, `
trac:
  url: https://trac.example.com
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one sync profile")
}

func TestLoad_InvalidStrategyFailsFast(t *testing.T) {
	_, err := Load(writeConfig(t, `
trac:
  url: https://trac.example.com
sync:
  wiki:
    source: ./notes
    destination: Wiki
    conflict_strategy: coin-flip
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coin-flip")
	assert.Contains(t, err.Error(), sync.StrategyInteractive)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACSYNC_URL", "https://other.example.com")
	t.Setenv("TRACSYNC_PASSWORD", "env-secret")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", cfg.Trac.URL)
	assert.Equal(t, "env-secret", cfg.Trac.Password)
	assert.Equal(t, "alice", cfg.Trac.Username)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "trac: [not: valid"))
	require.Error(t, err)
}
