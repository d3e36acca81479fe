package envcheck

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/report"
)

// DefaultLibraryModule is the module path of the marine statistics library
// this workspace vendors under library_root.
const DefaultLibraryModule = "github.com/oceanworks/seastats"

// DefaultAuxModules are the auxiliary modules the analysis stack requires.
// Overridable per workspace through the paths configuration.
var DefaultAuxModules = []string{
	"gonum.org/v1/gonum",
	"github.com/go-gota/gota",
	"gonum.org/v1/plot",
}

// Module mirrors the fields of runtime/debug.Module the checker cares
// about. Replace is non-nil when a replace directive redirects the module;
// for filesystem replacements Path holds the target directory.
type Module struct {
	Path    string
	Version string
	Replace *Module
}

// BuildList returns the module graph the binary was built from. The second
// return is false when build information is unavailable (e.g. a binary
// built without module support).
type BuildList func() ([]Module, bool)

func runtimeBuildList() ([]Module, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, false
	}
	mods := make([]Module, 0, len(info.Deps))
	for _, d := range info.Deps {
		mods = append(mods, fromDebugModule(d))
	}
	return mods, true
}

func fromDebugModule(d *debug.Module) Module {
	m := Module{Path: d.Path, Version: d.Version}
	if d.Replace != nil {
		r := fromDebugModule(d.Replace)
		m.Replace = &r
	}
	return m
}

// Checker validates the environment against a PathConfig. The zero value is
// not usable; construct with New.
type Checker struct {
	paths *config.PathConfig

	// buildList is injectable for tests; defaults to the running binary's
	// build info.
	buildList BuildList
}

// New creates a Checker reading the running binary's build information.
func New(paths *config.PathConfig) *Checker {
	return &Checker{paths: paths, buildList: runtimeBuildList}
}

// NewWithBuildList creates a Checker with an explicit module graph source.
func NewWithBuildList(paths *config.PathConfig, list BuildList) *Checker {
	return &Checker{paths: paths, buildList: list}
}

func (c *Checker) libraryModule() string {
	if c.paths.LibraryModule != "" {
		return c.paths.LibraryModule
	}
	return DefaultLibraryModule
}

func (c *Checker) auxModules() []string {
	if len(c.paths.AuxModules) > 0 {
		return c.paths.AuxModules
	}
	return DefaultAuxModules
}

// Run executes gate 1. If the library itself is not linked in, the
// remaining checks are reported SKIPPED: dependency and location checks are
// meaningless without the library. Auxiliary modules are otherwise checked
// independently so one absence never hides another.
func (c *Checker) Run() *report.StageReport {
	rep := report.NewStageReport(report.StageEnvironment)
	libPath := c.libraryModule()

	mods, ok := c.buildList()
	if !ok {
		rep.Add(report.Fail("library import", "library not importable: build information unavailable"))
		c.skipRemaining(rep, "build information unavailable")
		rep.Finalize()
		return rep
	}

	lib := findModule(mods, libPath)
	if lib == nil {
		rep.Add(report.Failf("library import",
			"library not importable: module %s is not linked into this binary", libPath))
		c.skipRemaining(rep, "library not importable")
		rep.Finalize()
		return rep
	}
	rep.Add(report.Pass("library import").
		WithDetail("module", libPath).
		WithDetail("version", lib.Version))

	rep.Add(c.checkLocation(lib))
	rep.Add(c.checkManifest())
	for _, aux := range c.auxModules() {
		rep.Add(c.checkAux(mods, aux))
	}

	rep.Finalize()
	return rep
}

func (c *Checker) skipRemaining(rep *report.StageReport, reason string) {
	rep.Add(report.Skip("library source location", reason))
	rep.Add(report.Skip("library manifest", reason))
	for _, aux := range c.auxModules() {
		rep.Add(report.Skip("module "+aux, reason))
	}
}

// checkLocation guards against a module-cache copy shadowing the workspace
// copy: the library must be redirected by a filesystem replace directive
// whose target lies under library_root.
func (c *Checker) checkLocation(lib *Module) report.CheckResult {
	const name = "library source location"

	if lib.Replace == nil {
		return report.Failf(name,
			"wrong library source resolved: %s@%s comes from the module cache, expected a workspace copy under %s",
			lib.Path, lib.Version, c.paths.LibraryRoot)
	}
	dir := lib.Replace.Path
	if !filepath.IsAbs(dir) {
		// Relative replace targets resolve against the build directory,
		// which for a workspace build is the workspace itself.
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	if !isWithin(c.paths.LibraryRoot, dir) {
		return report.Failf(name, "wrong library source resolved: %s", dir).
			WithDetail("resolved", dir).
			WithDetail("library_root", c.paths.LibraryRoot)
	}
	return report.Pass(name).WithDetail("resolved", dir)
}

// checkManifest confirms the on-disk workspace copy really is the expected
// library by parsing its module manifest.
func (c *Checker) checkManifest() report.CheckResult {
	const name = "library manifest"

	manifest := filepath.Join(c.paths.LibraryRoot, "go.mod")
	data, err := os.ReadFile(manifest)
	if err != nil {
		return report.Failf(name, "library manifest unreadable: %v", err)
	}
	f, err := modfile.ParseLax(manifest, data, nil)
	if err != nil {
		return report.Failf(name, "library manifest unparseable: %v", err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return report.Fail(name, "library manifest has no module directive")
	}
	if f.Module.Mod.Path != c.libraryModule() {
		return report.Failf(name, "library manifest declares %q, expected %q",
			f.Module.Mod.Path, c.libraryModule())
	}
	return report.Pass(name).WithDetail("manifest", manifest)
}

func (c *Checker) checkAux(mods []Module, path string) report.CheckResult {
	name := "module " + path
	if findModule(mods, path) == nil {
		return report.Failf(name, "module not importable: %s is not linked into this binary", path)
	}
	return report.Pass(name)
}

func findModule(mods []Module, path string) *Module {
	for i := range mods {
		if mods[i].Path == path {
			return &mods[i]
		}
	}
	return nil
}

// isWithin reports whether path is root or lies inside root, comparing
// cleaned paths component-wise.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
