package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo builds a throwaway repository with one commit.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial")
	return dir
}

func TestGetRepositoryState(t *testing.T) {
	dir := initTestRepo(t)
	ctx := context.Background()

	g, err := NewGit(ctx)
	require.NoError(t, err)

	state, err := g.GetRepositoryState(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, state.CommitID, 40)
	assert.Equal(t, "main", state.BranchName)
	assert.False(t, state.HasUncommittedChanges)
}

func TestHasUncommittedChanges(t *testing.T) {
	dir := initTestRepo(t)
	ctx := context.Background()

	g, err := NewGit(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dirty.txt"), []byte("wip\n"), 0o644))

	state, err := g.GetRepositoryState(ctx, dir)
	require.NoError(t, err)
	assert.True(t, state.HasUncommittedChanges)
}

func TestGetRepositoryStateNotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()

	g, err := NewGit(ctx)
	require.NoError(t, err)

	_, err = g.GetRepositoryState(ctx, t.TempDir())
	require.Error(t, err)
}
