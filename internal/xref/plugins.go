package xref

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// A plugin is a package main Go file defining
//
//	func Command() string
//	func Usage() string                                  // optional
//	func Run(env map[string]string, args []string) error
const (
	pluginNameFunc  = "Command"
	pluginUsageFunc = "Usage"
	pluginRunFunc   = "Run"
)

func loadPluginDir(dir string) ([]Command, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var cmds []Command
	seen := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		path := filepath.Join(trimmed, entry.Name())
		c, err := loadPluginFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("plugin: %s and %s both define command %s", prev, path, c.Name)
		}
		seen[c.Name] = path
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds, nil
}

func loadPluginFile(path string) (Command, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Command{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return Command{}, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Command{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return Command{}, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}

	name, err := callString(i, pluginNameFunc)
	if err != nil {
		return Command{}, fmt.Errorf("plugin: %s must define %s() string: %w", path, pluginNameFunc, err)
	}
	if name == "" {
		return Command{}, fmt.Errorf("plugin: %s returned an empty command name", path)
	}
	usage, _ := callString(i, pluginUsageFunc)

	runVal, err := i.Eval(pluginRunFunc)
	if err != nil {
		return Command{}, fmt.Errorf("plugin: %s must define %s(map[string]string, []string) error: %w", path, pluginRunFunc, err)
	}
	run, ok := runVal.Interface().(func(map[string]string, []string) error)
	if !ok {
		return Command{}, fmt.Errorf("plugin: %s: %s has type %s", path, pluginRunFunc, runVal.Type())
	}

	return Command{
		Name:   name,
		Usage:  usage,
		Source: path,
		Run: func(_ context.Context, s *Store, args []string) error {
			return run(s.pluginEnv(), args)
		},
	}, nil
}

func callString(i *interp.Interpreter, fn string) (string, error) {
	v, err := i.Eval(fn)
	if err != nil {
		return "", err
	}
	if !v.IsValid() || v.Kind() != reflect.Func {
		return "", fmt.Errorf("%s is not a function", fn)
	}
	results := v.Call(nil)
	if len(results) != 1 || results[0].Kind() != reflect.String {
		return "", fmt.Errorf("%s must return a string", fn)
	}
	return results[0].String(), nil
}
