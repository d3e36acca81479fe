package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanworks/preflight/internal/report"
	"github.com/oceanworks/preflight/internal/testutil"
)

// commitWorkspace turns a fixture workspace into a committed repository so
// the guard has a baseline to diff against.
func commitWorkspace(t *testing.T, ws *testutil.Workspace) {
	t.Helper()

	require.NoError(t, os.WriteFile(
		filepath.Join(ws.LibraryRoot, "model.go"), []byte("package statlib\n"), 0o644))

	repo, err := git.PlainInit(ws.Root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit("initial workspace", &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@test", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestIsolationCleanWorkspace(t *testing.T) {
	ws := testutil.NewWorkspace(t, []string{"metocean"}, nil)
	writeMetocean(t, ws)
	commitWorkspace(t, ws)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIsolationCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--paths", ws.PathsFile, "--workspace", ws.Root})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Stage: isolation  [PASS]")
}

func TestIsolationLibraryViolation(t *testing.T) {
	ws := testutil.NewWorkspace(t, []string{"metocean"}, nil)
	writeMetocean(t, ws)
	commitWorkspace(t, ws)
	require.NoError(t, os.WriteFile(
		filepath.Join(ws.LibraryRoot, "model.go"), []byte("package statlib // edited\n"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewIsolationCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--paths", ws.PathsFile, "--workspace", ws.Root})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string             `json:"status"`
		Data   report.StageReport `json:"data"`
		Error  *CLIError          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeIsolation, resp.Error.Code)
	require.Len(t, resp.Data.Checks, 1)
	assert.Contains(t, resp.Data.Checks[0].Message, "source tree modified")
}

func TestIsolationNotARepositorySkips(t *testing.T) {
	ws := testutil.NewWorkspace(t, []string{"metocean"}, nil)
	writeMetocean(t, ws)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIsolationCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--paths", ws.PathsFile, "--workspace", ws.Root})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Stage: isolation  [SKIPPED]")
	assert.Contains(t, buf.String(), "not a repository")
}
