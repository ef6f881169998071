// Package workspace summarizes the directory the session works in so the
// model knows its surroundings without running discovery commands first.
package workspace

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Describe reports the working directory and, when it sits inside a git
// repository, the checked-out branch and whether the worktree is dirty.
// A missing repository is not an error; the description just says so.
func Describe(root string) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Sprintf("Working directory: %s (not a git repository)", root)
	}

	branch := "detached HEAD"
	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			branch = fmt.Sprintf("branch %s", head.Name().Short())
		} else {
			branch = fmt.Sprintf("detached at %s", shortHash(head.Hash()))
		}
	}

	state := "clean"
	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil && !status.IsClean() {
			state = "uncommitted changes"
		}
	}

	return fmt.Sprintf("Working directory: %s (git %s, %s)", root, branch, state)
}

func shortHash(h plumbing.Hash) string {
	s := h.String()
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
