package darwinbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// initStage is the last state -init reached. Stage names are printed in
// front of the error of the stage that failed.
type initStage int

const (
	stageStart initStage = iota
	stageDirsEnsured
	stageIdentifierResolved
	stageManifestAcquired
	stageRootProvisioned
	stageIndexBootstrapped
	stageDone
)

func (s initStage) String() string {
	switch s {
	case stageStart:
		return "start"
	case stageDirsEnsured:
		return "layout"
	case stageIdentifierResolved:
		return "build identifier"
	case stageManifestAcquired:
		return "manifest"
	case stageRootProvisioned:
		return "build root"
	case stageIndexBootstrapped:
		return "xref"
	case stageDone:
		return "done"
	default:
		return "unknown"
	}
}

// initRun carries the state of one -init through its stages.
type initRun struct {
	env *Env
	log *runLog

	build    string
	locator  string // empty when an existing manifest is reused
	manifest string
}

func (r *initRun) fail(next initStage, err error) error {
	r.log.Printf("%s failed: %v", next, err)
	return &StageError{Stage: next, Err: err}
}

func (r *initRun) advance(next initStage) {
	r.log.Printf("reached %s", next)
	r.env.Console.Debugf("init: %s\n", next)
}

// runInit prepares the environment at e.Root for inv.InitTarget.
func (e *Env) runInit(ctx context.Context, inv *Invocation) error {
	r := &initRun{env: e}

	if err := EnsureLayout(e.Root, LayoutDirs); err != nil {
		return r.fail(stageDirsEnsured, err)
	}
	if l, err := openRunLog(e.Root, e.Now); err != nil {
		e.Console.Warn("%v", err)
	} else {
		r.log = l
		defer l.Close()
	}
	r.log.Printf("darwinbuild %s -init %s (nodmg=%t)", version, inv.InitTarget, inv.NoDMG)
	r.advance(stageDirsEnsured)

	explicit := inv.InitTarget
	if looksLikeLocator(inv.InitTarget) {
		r.locator = inv.InitTarget
		explicit = BuildFromManifestName(ClassifyLocator(inv.InitTarget).BaseName())
	}
	build, err := newBuildResolver(e.Root, e.Host, e.Console).Resolve(explicit)
	if err != nil {
		return r.fail(stageIdentifierResolved, err)
	}
	r.build = build
	e.Console.Step("Build %s", build)
	r.advance(stageIdentifierResolved)

	if err := r.acquireManifest(ctx); err != nil {
		return r.fail(stageManifestAcquired, err)
	}
	r.advance(stageManifestAcquired)

	p := &Provisioner{Tool: e.Tool, VolumesDir: e.Config.VolumesDir(), Now: e.Now, Console: e.Console}
	root, err := p.Provision(ctx, build, !inv.NoDMG, e.Root)
	if err != nil {
		return r.fail(stageRootProvisioned, err)
	}
	r.log.Printf("build root %s (%s)", root.Path, root.Kind)
	e.Console.Step("BuildRoot is a %s", root.Kind)
	r.advance(stageRootProvisioned)

	pluginPath, explicitPlugins := e.Config.PluginPath()
	req := BootstrapRequest{
		Build:              build,
		DBPath:             e.Config.XrefDB(e.Root),
		PluginPath:         pluginPath,
		PluginPathExplicit: explicitPlugins,
		Manifest:           r.manifest,
	}
	idx := e.NewIndex()
	defer idx.Close()
	e.Console.Step("Loading %s into %s", filepath.Base(r.manifest), req.DBPath)
	if err := Bootstrap(ctx, idx, req); err != nil {
		return r.fail(stageIndexBootstrapped, err)
	}
	r.advance(stageIndexBootstrapped)

	r.advance(stageDone)
	e.Console.Step("Initialization Complete")
	return nil
}

func (r *initRun) acquireManifest(ctx context.Context) error {
	e := r.env
	stateDir := filepath.Join(e.Root, StateDirName)

	if r.locator == "" {
		existing := filepath.Join(stateDir, r.build+".plist")
		if info, err := os.Stat(existing); err == nil && info.Mode().IsRegular() {
			e.Console.Step("Using existing manifest %s", existing)
			r.manifest = existing
			return nil
		}
		search := ManifestSearch{WorkDir: e.WorkDir, DataDir: e.Config.DataDir(), Site: e.Config.PlistSite()}
		loc, err := search.Locate(r.build)
		if err != nil {
			return err
		}
		r.locator = loc
	}

	e.Console.Step("Copying %s", r.locator)
	a := &Acquirer{
		Client:    e.HTTPClient,
		Store:     e.ObjectStore,
		NewStore:  e.newObjectStore,
		Overwrite: e.Config.OverwriteManifest(),
		Progress:  stderrIsTerminal(),
		Console:   e.Console,
	}
	path, err := a.Acquire(ctx, r.locator, stateDir)
	if errors.Is(err, ErrDestinationExists) {
		e.Console.Warn("%s already exists, keeping it", path)
		r.manifest = path
		return nil
	}
	if err != nil {
		return err
	}
	r.log.Printf("manifest %s from %s", path, r.locator)
	r.manifest = path
	return nil
}
