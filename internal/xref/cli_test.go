package xref

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

// runCLI runs darwinxref with settings as its loaded configuration.
func runCLI(t *testing.T, settings map[string]string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg := config.New()
	for k, v := range settings {
		cfg.Values[k] = v
	}
	root := NewRootCommand(&out, &errOut, cfg)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLILoadAndQuery(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xref.db")
	manifest := writeFile(t, "19A583.plist", baseManifest)

	_, err := runCLI(t, nil, "-f", db, "loadIndex", manifest)
	require.NoError(t, err)

	out, err := runCLI(t, nil, "-f", db, "currentBuild")
	require.NoError(t, err)
	assert.Equal(t, "19A583\n", out)

	out, err = runCLI(t, map[string]string{"DARWINXREF_DB_FILE": db}, "version", "xnu")
	require.NoError(t, err)
	assert.Equal(t, "xnu-6153.11.26\n", out)

	out, err = runCLI(t, nil, "-f", db, "-b", "19A583", "group", "kernel")
	require.NoError(t, err)
	assert.Equal(t, "xnu\n", out)
}

func TestCLIBuildFromSettings(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xref.db")

	out, err := runCLI(t, map[string]string{"DARWINBUILD_BUILD": "20A1"}, "-f", db, "currentBuild")
	require.NoError(t, err)
	assert.Equal(t, "20A1\n", out)
}

func TestCLIExitCodes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xref.db")

	_, err := runCLI(t, nil, "-f", db, "-b", "19A583", "frobnicate")
	assert.Equal(t, exitUsage, exitCodeFor(err))

	_, err = runCLI(t, nil)
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
	assert.Equal(t, exitUsage, exitCodeFor(err))

	_, err = runCLI(t, nil, "--frobnicate", "currentBuild")
	assert.ErrorAs(t, err, &usage)
	assert.Equal(t, exitUsage, exitCodeFor(err))

	_, err = runCLI(t, nil, "-f")
	assert.ErrorAs(t, err, &usage)

	_, err = runCLI(t, nil, "-f", db, "-p", filepath.Join(t.TempDir(), "absent"), "-b", "19A583", "currentBuild")
	assert.Equal(t, exitPluginLoad, exitCodeFor(err))

	_, err = runCLI(t, nil, "-f", db, "-b", "19A583", "version", "nothing")
	assert.Equal(t, exitFailure, exitCodeFor(err))

	assert.Equal(t, exitOK, exitCodeFor(nil))
	assert.Equal(t, exitFailure, exitCodeFor(errors.New("boom")))
}

func TestCLIHelpListsPlugins(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "echo.go", echoPlugin)

	out, err := runCLI(t, map[string]string{"DARWINXREF_PLUGIN_PATH": dir}, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "loadIndex <plist>")
	assert.Contains(t, out, "version <project>")
	assert.Contains(t, out, "echoBuild <file>")
	assert.Contains(t, out, "echo.go")
	assert.Contains(t, out, "--dbfile")
}

func TestCLIDefaultsFromConfig(t *testing.T) {
	db := filepath.Join(t.TempDir(), "xref.db")
	settings := map[string]string{"DARWINXREF_DB_FILE": db, "DARWINBUILD_BUILD": "19A583"}

	_, err := runCLI(t, settings, "loadIndex", writeFile(t, "19A583.plist", baseManifest))
	require.NoError(t, err)

	out, err := runCLI(t, map[string]string{"DARWINXREF_DB_FILE": db}, "group", "kernel")
	require.NoError(t, err)
	assert.Equal(t, "xnu\n", out)
}
