package darwinbuild

import (
	"github.com/gookit/color"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

var (
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// Fixed names inside an environment directory.
const (
	StateDirName    = config.StateDir
	BuildFileName   = config.BuildFile
	BuildRootName   = "BuildRoot"
	SparseImageName = "buildroot.sparsebundle"
	XrefDBName      = config.XrefDBFile
	LogFileName     = "darwinbuild.log"
)

// LayoutDirs is the top-level directory set of every environment.
var LayoutDirs = []string{"Roots", "Sources", "Symbols", "Headers", "Logs", StateDirName}

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
