// Package isolation implements the cross-cutting isolation guard: a
// read-only version-control status query over the encompassing repository,
// verifying that nothing outside the designated output directory changed.
//
// A change under the read-only library root is fatal and requires manual
// rollback; the guard never attempts any rollback itself. A workspace that
// is not a repository yields SKIPPED rather than FAIL: with no status
// source the guard has nothing to assert.
package isolation

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/report"
)

// Violation is the fatal condition of a modified read-only source tree.
type Violation struct {
	Path string
}

func (v *Violation) Error() string {
	return "source tree modified: " + v.Path
}

// Guard compares worktree status against the path registry's allow-list.
type Guard struct {
	// WorkspaceRoot is where repository detection starts; the enclosing
	// repository is found by walking up, as git itself does.
	WorkspaceRoot string
	paths         *config.PathConfig
}

// New creates a Guard rooted at workspaceRoot.
func New(workspaceRoot string, paths *config.PathConfig) *Guard {
	return &Guard{WorkspaceRoot: workspaceRoot, paths: paths}
}

// Verify runs the status query and classifies every changed path. The
// result is a single CheckResult: PASS when all changes sit inside the
// output directory, SKIPPED when no repository is available, FAIL
// otherwise, with changes under library_root reported as the fatal
// "source tree modified" condition.
func (g *Guard) Verify() report.CheckResult {
	const check = "isolation"

	repo, err := git.PlainOpenWithOptions(g.WorkspaceRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return report.Skip(check, "not a repository: "+g.WorkspaceRoot)
	}
	if err != nil {
		return report.Failf(check, "status query failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return report.Failf(check, "status query failed: %v", err)
	}
	status, err := wt.Status()
	if err != nil {
		return report.Failf(check, "status query failed: %v", err)
	}

	root := wt.Filesystem.Root()
	var changed []string
	for rel, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		changed = append(changed, filepath.Join(root, filepath.FromSlash(rel)))
	}
	sort.Strings(changed)

	var sourceViolations, strayChanges []string
	for _, path := range changed {
		switch {
		case within(g.paths.LibraryRoot, path):
			sourceViolations = append(sourceViolations, path)
		case within(g.paths.OutputDir, path):
			// Artifacts and the run ledger are expected here.
		default:
			strayChanges = append(strayChanges, path)
		}
	}

	if len(sourceViolations) > 0 {
		v := &Violation{Path: sourceViolations[0]}
		return report.Fail(check, v.Error()).
			WithDetail("source_violations", sourceViolations).
			WithDetail("changed_paths", changed)
	}
	if len(strayChanges) > 0 {
		return report.Failf(check, "unexpected modification outside output directory: %s",
			strings.Join(strayChanges, ", ")).
			WithDetail("changed_paths", changed)
	}
	return report.Pass(check).WithDetail("changed_paths", changed)
}

// Run wraps Verify into a one-check stage report for the CLI.
func (g *Guard) Run() *report.StageReport {
	rep := report.NewStageReport(report.StageIsolation)
	rep.Add(g.Verify())
	rep.Finalize()
	return rep
}

func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
