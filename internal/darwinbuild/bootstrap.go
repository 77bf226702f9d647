package darwinbuild

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/PureDarwin/darwinbuild/internal/xref"
)

// IndexError operations.
const (
	opInitStore       = "initStore"
	opSetCurrentBuild = "setCurrentBuild"
	opLoadPlugins     = "loadPlugins"
	opLoadIndex       = "loadIndex"
)

// BootstrapRequest is everything the first index load needs.
type BootstrapRequest struct {
	Build              string
	DBPath             string
	PluginPath         string
	PluginPathExplicit bool
	Manifest           string
}

// Bootstrap opens the index, selects the build, loads plugins and indexes
// the manifest. idx is left open for the caller to close.
func Bootstrap(ctx context.Context, idx xref.Index, req BootstrapRequest) error {
	if err := idx.InitStore(req.DBPath); err != nil {
		return &IndexError{Op: opInitStore, Err: err}
	}
	if err := idx.SetCurrentBuild(req.Build); err != nil {
		return &IndexError{Op: opSetCurrentBuild, Err: err}
	}

	plugins := req.PluginPath
	if !req.PluginPathExplicit {
		if _, err := os.Stat(plugins); errors.Is(err, fs.ErrNotExist) {
			plugins = ""
		}
	}
	if err := idx.LoadPlugins(plugins); err != nil {
		return &IndexError{Op: opLoadPlugins, Err: err}
	}

	if err := idx.RunPluginCommand(ctx, opLoadIndex, []string{req.Manifest}); err != nil {
		return &IndexError{Op: opLoadIndex, Err: err}
	}
	return nil
}
