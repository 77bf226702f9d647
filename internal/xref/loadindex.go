package xref

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"howett.net/plist"
	"lukechampine.com/blake3"
)

// Manifest is a build property list: the projects of one build, its named
// groups, and the build it inherits from.
type Manifest struct {
	Build    string                     `plist:"build"`
	Inherits string                     `plist:"inherits"`
	Projects map[string]ManifestProject `plist:"projects"`
	Groups   map[string][]string        `plist:"groups"`
}

type ManifestProject struct {
	Version      string              `plist:"version"`
	Original     string              `plist:"original"`
	Target       string              `plist:"target"`
	Dependencies map[string][]string `plist:"dependencies"`
}

// ParseManifest accepts XML, binary and OpenStep property lists.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := plist.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse build manifest: %w", err)
	}
	return &m, nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadIndex replaces the stored contents of a build with the manifest at
// path. The build is the manifest's own "build" key, or the current build.
// A manifest whose digest matches the last load is skipped.
func (s *Store) LoadIndex(path string) (string, error) {
	if s.db == nil {
		return "", ErrNotOpen
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	build := m.Build
	if build == "" {
		if build, err = s.CurrentBuild(); err != nil {
			return "", fmt.Errorf("%s names no build: %w", path, err)
		}
	}

	sum := digest(data)
	if prev, err := s.Digest(build); err == nil && prev == sum {
		s.debugf("manifest %s unchanged for build %s\n", path, build)
		return build, nil
	}

	if err := s.db.DropPrefix([]byte(buildPrefix(build))); err != nil {
		return "", fmt.Errorf("clear build %s: %w", build, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	names := make([]string, 0, len(m.Projects))
	for name := range m.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mp := m.Projects[name]
		rec := Project{
			Name:         name,
			Version:      mp.Version,
			Original:     mp.Original,
			Target:       mp.Target,
			Dependencies: mp.Dependencies,
		}
		if err := setJSON(wb, projectKey(build, name), rec); err != nil {
			return "", err
		}
	}
	for name, members := range m.Groups {
		if err := setJSON(wb, groupKey(build, name), members); err != nil {
			return "", err
		}
	}
	if m.Inherits != "" {
		if err := wb.Set([]byte(inheritsKey(build)), []byte(m.Inherits)); err != nil {
			return "", err
		}
	}
	if err := wb.Set([]byte(digestKey(build)), []byte(sum)); err != nil {
		return "", err
	}
	if err := wb.Flush(); err != nil {
		return "", fmt.Errorf("write build %s: %w", build, err)
	}

	s.debugf("loaded %d projects and %d groups into build %s\n", len(m.Projects), len(m.Groups), build)
	return build, nil
}

func setJSON(wb *badger.WriteBatch, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return wb.Set([]byte(key), data)
}
