package sync

import (
	"fmt"
	"strings"
)

// Direction restricts which way content propagates during a run.
type Direction string

const (
	DirectionBidirectional Direction = "bidirectional"
	DirectionPush          Direction = "push"
	DirectionPull          Direction = "pull"
)

// GitSafetyMode controls the uncommitted-changes gate before local writes.
type GitSafetyMode string

const (
	GitSafetyNone  GitSafetyMode = "none"
	GitSafetyWarn  GitSafetyMode = "warn"
	GitSafetyBlock GitSafetyMode = "block"
)

// NameRule overrides the page name for files whose name matches Match
// (exact filename or glob).
type NameRule struct {
	Match string `yaml:"match"`
	Name  string `yaml:"name"`
}

// MappingRule maps local paths matching a glob pattern into a namespace
// template. Rules are evaluated in order; first match wins.
type MappingRule struct {
	Pattern   string     `yaml:"pattern"`
	Namespace string     `yaml:"namespace"`
	NameRules []NameRule `yaml:"name_rules"`
}

// Profile is the immutable per-run sync configuration.
type Profile struct {
	Name             string        `yaml:"-"`
	Source           string        `yaml:"source"`
	Destination      string        `yaml:"destination"`
	Direction        Direction     `yaml:"direction"`
	ConflictStrategy string        `yaml:"conflict_strategy"`
	GitSafety        GitSafetyMode `yaml:"git_safety"`
	StateDir         string        `yaml:"state_dir"`
	Mappings         []MappingRule `yaml:"mappings"`
	Exclude          []string      `yaml:"exclude"`
}

// ApplyDefaults fills unset optional fields.
func (p *Profile) ApplyDefaults() {
	if p.Direction == "" {
		p.Direction = DirectionBidirectional
	}
	if p.ConflictStrategy == "" {
		p.ConflictStrategy = StrategyInteractive
	}
	if p.GitSafety == "" {
		p.GitSafety = GitSafetyNone
	}
	if p.StateDir == "" {
		p.StateDir = ".tracsync"
	}
}

// Validate fails fast on missing required fields or unknown enum values,
// before any I/O happens.
func (p *Profile) Validate() error {
	if p.Source == "" {
		return fmt.Errorf("profile %q: source is required", p.Name)
	}
	if p.Destination == "" {
		return fmt.Errorf("profile %q: destination is required", p.Name)
	}

	switch p.Direction {
	case DirectionBidirectional, DirectionPush, DirectionPull:
	default:
		return fmt.Errorf("profile %q: unknown direction %q (valid: bidirectional, push, pull)", p.Name, p.Direction)
	}

	switch p.GitSafety {
	case GitSafetyNone, GitSafetyWarn, GitSafetyBlock:
	default:
		return fmt.Errorf("profile %q: unknown git_safety %q (valid: none, warn, block)", p.Name, p.GitSafety)
	}

	if !isValidStrategy(p.ConflictStrategy) {
		return fmt.Errorf("profile %q: unknown conflict strategy %q (valid: %s)",
			p.Name, p.ConflictStrategy, strings.Join(ValidStrategies(), ", "))
	}

	for i, rule := range p.Mappings {
		if rule.Pattern == "" {
			return fmt.Errorf("profile %q: mapping %d: pattern is required", p.Name, i)
		}
	}
	return nil
}
