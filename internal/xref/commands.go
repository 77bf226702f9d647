package xref

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Command is one darwinxref subcommand, builtin or plugin.
type Command struct {
	Name   string
	Usage  string
	Source string // "builtin" or the plugin file
	Run    func(ctx context.Context, s *Store, args []string) error
}

func builtinCommands() []Command {
	return []Command{
		{Name: "loadIndex", Usage: "<plist>", Run: runLoadIndex},
		{Name: "currentBuild", Usage: "", Run: runCurrentBuild},
		{Name: "version", Usage: "<project>", Run: runVersion},
		{Name: "group", Usage: "<name>", Run: runGroup},
	}
}

func runLoadIndex(_ context.Context, s *Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: loadIndex <plist>")
	}
	build, err := s.LoadIndex(args[0])
	if err != nil {
		return err
	}
	if _, err := s.CurrentBuild(); errors.Is(err, ErrNoBuild) {
		return s.SetCurrentBuild(build)
	}
	return nil
}

func runCurrentBuild(_ context.Context, s *Store, args []string) error {
	if len(args) != 0 {
		return errors.New("usage: currentBuild")
	}
	build, err := s.CurrentBuild()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.Out, build)
	return nil
}

func runVersion(_ context.Context, s *Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: version <project>")
	}
	build, err := s.CurrentBuild()
	if err != nil {
		return err
	}
	v, err := s.ProjectVersion(build, args[0])
	if err != nil {
		return err
	}
	if v == "" {
		fmt.Fprintln(s.Out, args[0])
		return nil
	}
	fmt.Fprintf(s.Out, "%s-%s\n", args[0], v)
	return nil
}

func runGroup(_ context.Context, s *Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: group <name>")
	}
	build, err := s.CurrentBuild()
	if err != nil {
		return err
	}
	members, err := s.Group(build, args[0])
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Fprintln(s.Out, m)
	}
	return nil
}

// LoadPlugins registers the builtin commands, then every plugin under dir.
// An empty dir loads builtins only.
func (s *Store) LoadPlugins(dir string) error {
	cmds := map[string]Command{}
	for _, c := range builtinCommands() {
		c.Source = "builtin"
		cmds[c.Name] = c
	}

	plugins, err := loadPluginDir(dir)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		if prev, ok := cmds[p.Name]; ok {
			return fmt.Errorf("plugin: %s redefines command %s from %s", p.Source, p.Name, prev.Source)
		}
		cmds[p.Name] = p
		s.debugf("plugin %s loaded from %s\n", p.Name, p.Source)
	}
	s.commands = cmds
	return nil
}

// Commands lists the registered commands by name.
func (s *Store) Commands() []Command {
	out := make([]Command, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunPluginCommand runs a registered command, builtin or plugin.
func (s *Store) RunPluginCommand(ctx context.Context, name string, args []string) error {
	if s.commands == nil {
		if err := s.LoadPlugins(""); err != nil {
			return err
		}
	}
	c, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCommand, name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Run(ctx, s, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// pluginEnv is what plugins see of the store.
func (s *Store) pluginEnv() map[string]string {
	build, _ := s.CurrentBuild()
	return map[string]string{
		"DARWINXREF_DB_FILE": s.path,
		"DARWINBUILD_BUILD":  build,
	}
}
