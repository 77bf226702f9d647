package darwinbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/renameio"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

// HostQuery reports the build version of the running operating system.
// An empty result with a nil error means the host does not know.
type HostQuery interface {
	BuildVersion() (string, error)
}

// BuildResolver picks the build identifier for an environment:
// explicit value, then the persisted state file, then the host.
type BuildResolver struct {
	StateFile string
	Host      HostQuery
	Console   *Console
}

func newBuildResolver(root string, host HostQuery, c *Console) *BuildResolver {
	return &BuildResolver{
		StateFile: config.BuildFilePath(root),
		Host:      host,
		Console:   c,
	}
}

// Resolve returns the winning identifier and writes it back to StateFile.
func (r *BuildResolver) Resolve(explicit string) (string, error) {
	build, source, err := r.lookup(explicit)
	if err != nil {
		return "", err
	}
	r.Console.Debugf("build %s resolved from %s\n", build, source)
	if err := writeBuildFile(r.StateFile, build); err != nil {
		return "", err
	}
	return build, nil
}

func (r *BuildResolver) lookup(explicit string) (build, source string, err error) {
	if b := trimBuild(explicit); b != "" {
		return b, "option", nil
	}

	b, err := readBuildFile(r.StateFile)
	if err != nil {
		return "", "", err
	}
	if b != "" {
		return b, r.StateFile, nil
	}

	if r.Host != nil {
		b, err := r.Host.BuildVersion()
		if err != nil {
			return "", "", fmt.Errorf("failed to query host build version: %w", err)
		}
		if b = trimBuild(b); b != "" {
			return b, "host", nil
		}
	}
	return "", "", ErrNoIdentifier
}

func trimBuild(s string) string {
	s = strings.TrimSuffix(s, "\n")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// readBuildFile returns "" when the file does not exist.
func readBuildFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return trimBuild(string(data)), nil
}

func writeBuildFile(path, build string) error {
	if err := renameio.WriteFile(path, []byte(build+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
