package darwinbuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BuildRequest is one project build handed to a Builder.
type BuildRequest struct {
	Root    string
	Build   string
	Project string
	Version string
	Actions Action
	Options Options
}

// Builder runs the actions of a project build.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) error
}

// projectQuery is the read side of the index used for defaults.
type projectQuery interface {
	ProjectVersion(build, name string) (string, error)
	Group(build, name string) ([]string, error)
}

// planBuilder reports what would be built.
type planBuilder struct {
	Console *Console
}

func (b *planBuilder) Build(_ context.Context, req BuildRequest) error {
	name := req.Project
	if req.Version != "" {
		name += "-" + req.Version
	}
	b.Console.Step("%s: %s for build %s", name, req.Actions, req.Build)
	if req.Options.Target != "" {
		b.Console.Info("  target %s", req.Options.Target)
	}
	return nil
}

// runProject hands inv to the Builder once per project.
func (e *Env) runProject(ctx context.Context, inv *Invocation) error {
	state := filepath.Join(e.Root, StateDirName)
	if info, err := os.Stat(state); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a darwinbuild environment, run %s -init <build> first", e.Root, e.ProgName)
	}

	explicit := inv.Options.Build
	if explicit == "" {
		explicit = e.Config.DefaultBuild()
	}
	build, _, err := newBuildResolver(e.Root, e.Host, e.Console).lookup(explicit)
	if err != nil {
		return err
	}

	query, closeQuery, err := e.openQuery()
	if err != nil {
		return err
	}
	defer closeQuery()

	projects := []string{inv.Project}
	if inv.Actions.Has(ActionGroup) {
		if query == nil {
			return fmt.Errorf("group %s: no xref database at %s", inv.Project, e.Config.XrefDB(e.Root))
		}
		members, err := query.Group(build, inv.Project)
		if err != nil {
			return err
		}
		projects = members
	}

	for _, p := range projects {
		req := BuildRequest{
			Root:    e.Root,
			Build:   build,
			Project: p,
			Actions: inv.Actions,
			Options: inv.Options,
		}
		if len(projects) == 1 {
			req.Version = inv.Version
		}
		if req.Version == "" && query != nil {
			if v, err := query.ProjectVersion(build, p); err == nil {
				req.Version = v
			} else {
				e.Console.Debugf("no version for %s in %s: %v\n", p, build, err)
			}
		}
		if err := e.Builder.Build(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// openQuery opens the index read side when the store exists. It returns a
// nil query otherwise.
func (e *Env) openQuery() (projectQuery, func(), error) {
	db := e.Config.XrefDB(e.Root)
	if _, err := os.Stat(db); errors.Is(err, fs.ErrNotExist) {
		return nil, func() {}, nil
	}
	idx := e.NewIndex()
	q, ok := idx.(projectQuery)
	if !ok {
		return nil, func() {}, nil
	}
	if err := idx.InitStore(db); err != nil {
		return nil, func() {}, &IndexError{Op: opInitStore, Err: err}
	}
	return q, func() { idx.Close() }, nil
}
