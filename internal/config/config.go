// Package config holds the settings darwinbuild and darwinxref share: a
// KEY=VALUE file overridden by DARWINBUILD_* and DARWINXREF_* variables.
package config

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultFile is read unless DARWINBUILD_CONFIG points elsewhere.
const DefaultFile = "/usr/local/etc/darwinbuild.conf"

// Names inside an environment directory that both tools rely on.
const (
	StateDir   = ".build"
	BuildFile  = "build"
	XrefDBFile = "xref.db"
)

const (
	DefaultDataDir       = "/usr/local/share/darwinbuild"
	DefaultVolumesDir    = "/Volumes"
	DefaultSystemVersion = "/System/Library/CoreServices/SystemVersion.plist"
)

// Config struct
type Config struct {
	Values map[string]string
}

// New returns an empty configuration; every accessor falls back to its default.
func New() *Config {
	return &Config{Values: make(map[string]string)}
}

// Load reads a KEY=VALUE file, then applies DARWINBUILD_* and
// DARWINXREF_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

// LoadDefault loads $DARWINBUILD_CONFIG, or DefaultFile when it is unset.
// It returns the path it read.
func LoadDefault(getenv func(string) string, environ []string) (*Config, string, error) {
	path := getenv("DARWINBUILD_CONFIG")
	if path == "" {
		path = DefaultFile
	}
	cfg, err := load(path, environ)
	return cfg, path, err
}

func load(path string, environ []string) (*Config, error) {
	cfg := New()

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	mergeEnvOverrides(cfg, environ)
	return cfg, nil
}

// Merge DARWINBUILD_* / DARWINXREF_* env overrides
func mergeEnvOverrides(cfg *Config, environ []string) {
	for _, env := range environ {
		if strings.HasPrefix(env, "DARWINBUILD_") || strings.HasPrefix(env, "DARWINXREF_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func (c *Config) get(key, def string) string {
	if v := strings.TrimSpace(c.Values[key]); v != "" {
		return v
	}
	return def
}

func (c *Config) flag(key string) bool {
	return c.Values[key] == "1" || strings.EqualFold(c.Values[key], "true")
}

func (c *Config) Debug() bool { return c.flag("DARWINBUILD_DEBUG") }

func (c *Config) DataDir() string { return c.get("DARWINBUILD_DATADIR", DefaultDataDir) }

// PlistSite is the base URL build manifests are downloaded from when a bare
// build number is given to -init.
func (c *Config) PlistSite() string {
	return strings.TrimRight(c.get("DARWINBUILD_PLIST_SITE", ""), "/")
}

// DefaultBuild is used when -build is not given.
func (c *Config) DefaultBuild() string { return c.get("DARWINBUILD_BUILD", "") }

func (c *Config) VolumesDir() string { return c.get("DARWINBUILD_VOLUMES", DefaultVolumesDir) }

func (c *Config) Hdiutil() string { return c.get("DARWINBUILD_HDIUTIL", "hdiutil") }

func (c *Config) OverwriteManifest() bool { return c.flag("DARWINBUILD_OVERWRITE_MANIFEST") }

func (c *Config) SystemVersionPlist() string {
	return c.get("DARWINBUILD_SYSTEM_VERSION_PLIST", DefaultSystemVersion)
}

// Timeout bounds a whole invocation; zero means no deadline.
func (c *Config) Timeout() time.Duration {
	secs, err := strconv.Atoi(c.get("DARWINBUILD_TIMEOUT", "0"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// BuildFilePath is where the current build of the environment at root is kept.
func BuildFilePath(root string) string {
	return filepath.Join(root, StateDir, BuildFile)
}

// XrefDB is the index store location for the environment at root.
func (c *Config) XrefDB(root string) string {
	return c.get("DARWINXREF_DB_FILE", filepath.Join(root, StateDir, XrefDBFile))
}

// PluginPath returns the plugin directory and whether it was set explicitly.
func (c *Config) PluginPath() (string, bool) {
	if v := c.get("DARWINXREF_PLUGIN_PATH", ""); v != "" {
		return v, true
	}
	return filepath.Join(c.DataDir(), "plugins"), false
}

// S3 settings for s3:// manifest locators.
func (c *Config) S3Endpoint() string  { return c.get("DARWINBUILD_S3_ENDPOINT", "") }
func (c *Config) S3Region() string    { return c.get("DARWINBUILD_S3_REGION", "") }
func (c *Config) S3AccessKey() string { return c.get("DARWINBUILD_S3_ACCESS_KEY_ID", "") }
func (c *Config) S3SecretKey() string { return c.get("DARWINBUILD_S3_SECRET_ACCESS_KEY", "") }
