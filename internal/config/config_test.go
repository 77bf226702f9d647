package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darwinbuild.conf")
	require.NoError(t, os.WriteFile(path, []byte(`# site settings
DARWINBUILD_PLIST_SITE="http://plists.example.com/"
DARWINBUILD_VOLUMES=/mnt
DARWINBUILD_TIMEOUT=30
not a setting
`), 0o644))
	t.Setenv("DARWINBUILD_VOLUMES", "/Volumes/Alt")
	t.Setenv("DARWINXREF_PLUGIN_PATH", "/opt/plugins")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://plists.example.com", cfg.PlistSite())
	assert.Equal(t, "/Volumes/Alt", cfg.VolumesDir())
	assert.Equal(t, 30*time.Second, cfg.Timeout())

	plugins, explicit := cfg.PluginPath()
	assert.Equal(t, "/opt/plugins", plugins)
	assert.True(t, explicit)
}

func TestConfigDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultDataDir, cfg.DataDir())
	assert.Equal(t, "/Volumes", cfg.VolumesDir())
	assert.Equal(t, "hdiutil", cfg.Hdiutil())
	assert.Equal(t, time.Duration(0), cfg.Timeout())
	assert.False(t, cfg.Debug())
	assert.Equal(t, filepath.Join("/env", ".build", "xref.db"), cfg.XrefDB("/env"))

	plugins, explicit := cfg.PluginPath()
	assert.Equal(t, filepath.Join(DefaultDataDir, "plugins"), plugins)
	assert.False(t, explicit)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestConfigTimeoutIgnoresGarbage(t *testing.T) {
	cfg := New()
	cfg.Values["DARWINBUILD_TIMEOUT"] = "soon"
	assert.Equal(t, time.Duration(0), cfg.Timeout())
}

func TestLoadDefaultHonoursConfigVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alt.conf")
	require.NoError(t, os.WriteFile(path, []byte("DARWINXREF_DB_FILE=/srv/xref.db\nDARWINBUILD_BUILD=19A583\n"), 0o644))
	env := map[string]string{"DARWINBUILD_CONFIG": path}

	cfg, used, err := LoadDefault(func(k string) string { return env[k] }, []string{"DARWINBUILD_BUILD=20A1"})
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "/srv/xref.db", cfg.XrefDB("/env"))
	assert.Equal(t, "20A1", cfg.DefaultBuild())
}

func TestBuildFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/env", ".build", "build"), BuildFilePath("/env"))
}
