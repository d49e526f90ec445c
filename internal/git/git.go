// Package git reads repository state from a checked-out working copy
// using the git CLI. The staleness engine consumes exactly three values
// from here: commit id, branch name, and the dirty flag.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/archhub/investigator/internal/types"
)

// Git implements repository state lookups using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
}

// NewGit creates a new Git instance.
// It verifies that git is available on the system.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// GetRepositoryState returns the current commit, branch, and dirty flag
// for a working copy.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) GetRepositoryState(ctx context.Context, repoPath string) (*types.RepositoryState, error) {
	commit, err := g.output(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD in %s: %w", repoPath, err)
	}

	branch, err := g.output(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch in %s: %w", repoPath, err)
	}

	dirty, err := g.HasUncommittedChanges(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	state := &types.RepositoryState{
		CommitID:              commit,
		BranchName:            branch,
		HasUncommittedChanges: dirty,
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("unusable repository state in %s: %w", repoPath, err)
	}
	return state, nil
}

// HasUncommittedChanges checks if there are uncommitted changes.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	// Use git status --porcelain for machine-readable output
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed in %s: %w", repoPath, err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

func (g *Git) output(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmdArgs := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, cmdArgs...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
