// Package xref is the dependency index behind darwinbuild: a badger store
// keyed by build, filled from build manifests and extended by Go plugins.
package xref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Index is what darwinbuild needs from the dependency index.
type Index interface {
	InitStore(path string) error
	SetCurrentBuild(id string) error
	LoadPlugins(path string) error
	RunPluginCommand(ctx context.Context, name string, args []string) error
	Close() error
}

var (
	ErrNotOpen    = errors.New("xref store is not open")
	ErrNotFound   = errors.New("not found")
	ErrNoBuild    = errors.New("no current build set")
	ErrNoCommand  = errors.New("unknown command")
	errInheritCyc = errors.New("inherits cycle")
)

const currentBuildKey = "meta/current-build"

func buildPrefix(build string) string { return "build/" + build + "/" }
func projectKey(build, name string) string { return buildPrefix(build) + "project/" + name }
func groupKey(build, name string) string { return buildPrefix(build) + "group/" + name }
func inheritsKey(build string) string { return buildPrefix(build) + "inherits" }
func digestKey(build string) string { return buildPrefix(build) + "manifest-digest" }

// Project is the stored record of one project in one build.
type Project struct {
	Name         string              `json:"name"`
	Version      string              `json:"version,omitempty"`
	Original     string              `json:"original,omitempty"`
	Target       string              `json:"target,omitempty"`
	Dependencies map[string][]string `json:"dependencies,omitempty"`
}

// Store is the badger-backed Index.
type Store struct {
	Out    io.Writer
	Debugf func(format string, a ...any)

	db       *badger.DB
	path     string
	build    string
	commands map[string]Command
}

func NewStore(out io.Writer) *Store {
	if out == nil {
		out = os.Stdout
	}
	return &Store{Out: out}
}

func (s *Store) debugf(format string, a ...any) {
	if s.Debugf != nil {
		s.Debugf(format, a...)
	}
}

type badgerLogger struct {
	debugf func(format string, a ...any)
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) { l.debugf("badger: error: "+format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.debugf("badger: warning: "+format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{}) { l.debugf("badger: "+format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{}) { l.debugf("badger: "+format, args...) }

// InitStore opens the store at path, creating it when missing. Existing
// contents are kept.
func (s *Store) InitStore(path string) error {
	if s.db != nil {
		return fmt.Errorf("xref store already open at %s", s.path)
	}
	if path == "" {
		return errors.New("xref store path is required")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create xref store directory %s: %w", path, err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1)
	if s.Debugf != nil {
		opts = opts.WithLogger(&badgerLogger{debugf: s.Debugf})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open xref store %s: %w", path, err)
	}
	s.db, s.path = db, path
	s.debugf("xref store open at %s\n", path)
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SetCurrentBuild selects and persists the build later commands act on.
func (s *Store) SetCurrentBuild(id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if id == "" {
		return ErrNoBuild
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(currentBuildKey), []byte(id))
	}); err != nil {
		return fmt.Errorf("set current build: %w", err)
	}
	s.build = id
	return nil
}

// CurrentBuild returns the selected build, falling back to the persisted one.
func (s *Store) CurrentBuild() (string, error) {
	if s.build != "" {
		return s.build, nil
	}
	if s.db == nil {
		return "", ErrNotOpen
	}
	v, err := s.get(currentBuildKey)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNoBuild
	}
	if err != nil {
		return "", err
	}
	s.build = string(v)
	return s.build, nil
}

func (s *Store) get(key string) ([]byte, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (s *Store) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// lookup walks build and its inherits chain until key(b) is present.
func (s *Store) lookup(build string, key func(build string) string, v any) error {
	seen := map[string]bool{}
	for b := build; b != ""; {
		if seen[b] {
			return fmt.Errorf("%w at %s", errInheritCyc, b)
		}
		seen[b] = true

		err := s.getJSON(key(b), v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		parent, err := s.get(inheritsKey(b))
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return err
		}
		b = strings.TrimSpace(string(parent))
	}
	return ErrNotFound
}

// Project returns a project of build, following inherited builds.
func (s *Store) Project(build, name string) (*Project, error) {
	var p Project
	if err := s.lookup(build, func(b string) string { return projectKey(b, name) }, &p); err != nil {
		return nil, fmt.Errorf("project %s in build %s: %w", name, build, err)
	}
	return &p, nil
}

// ProjectVersion is Project(...).Version.
func (s *Store) ProjectVersion(build, name string) (string, error) {
	p, err := s.Project(build, name)
	if err != nil {
		return "", err
	}
	return p.Version, nil
}

// Group returns the members of a named group of build.
func (s *Store) Group(build, name string) ([]string, error) {
	var members []string
	if err := s.lookup(build, func(b string) string { return groupKey(b, name) }, &members); err != nil {
		return nil, fmt.Errorf("group %s in build %s: %w", name, build, err)
	}
	return members, nil
}

// Digest is the blake3 digest of the manifest last loaded for build.
func (s *Store) Digest(build string) (string, error) {
	v, err := s.get(digestKey(build))
	if err != nil {
		return "", err
	}
	return string(v), nil
}
