package sync

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// GitSafety gates pull writes on the cleanliness of the git worktree that
// contains the sync source. Directories outside any repository are always
// considered safe.
type GitSafety struct {
	mode GitSafetyMode
	root string

	checked bool
	dirty   bool
	files   []string
}

func NewGitSafety(mode GitSafetyMode, root string) *GitSafety {
	return &GitSafety{mode: mode, root: root}
}

// Check inspects the worktree once per run and caches the verdict.
// It returns true when writes are allowed under the configured mode.
func (g *GitSafety) Check() (bool, error) {
	if g.mode == GitSafetyNone {
		return true, nil
	}
	if !g.checked {
		if err := g.inspect(); err != nil {
			return false, err
		}
		g.checked = true
	}
	if !g.dirty {
		return true, nil
	}
	return g.mode != GitSafetyBlock, nil
}

// Dirty reports whether the last Check found uncommitted tracked changes.
func (g *GitSafety) Dirty() bool { return g.checked && g.dirty }

// DirtyFiles lists the tracked paths with uncommitted changes.
func (g *GitSafety) DirtyFiles() []string { return g.files }

func (g *GitSafety) inspect() error {
	repo, err := git.PlainOpenWithOptions(g.root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open git repository at %s: %w", g.root, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}

	for path, fileStatus := range status {
		// untracked files do not block, only modifications to tracked ones
		if fileStatus.Worktree == git.Untracked {
			continue
		}
		if fileStatus.Worktree != git.Unmodified || fileStatus.Staging != git.Unmodified {
			g.files = append(g.files, path)
		}
	}
	g.dirty = len(g.files) > 0
	return nil
}
