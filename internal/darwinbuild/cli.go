package darwinbuild

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gookit/color"

	"github.com/PureDarwin/darwinbuild/internal/config"
	"github.com/PureDarwin/darwinbuild/internal/xref"
)

// Env is one darwinbuild process: where it runs, how it is configured and
// the collaborators it drives.
type Env struct {
	ProgName string
	Root     string // environment directory
	WorkDir  string // where bare manifest names are searched first

	Config  *config.Config
	Console *Console

	HTTPClient  *http.Client
	ObjectStore ObjectStore
	Tool        ImageTool
	Host        HostQuery
	NewIndex    func() xref.Index
	Builder     Builder
	Now         func() time.Time
}

// NewEnv wires the production collaborators for the environment at root.
func NewEnv(progName, root string, cfg *config.Config) *Env {
	c := newConsole(cfg.Debug())
	e := &Env{
		ProgName:   progName,
		Root:       root,
		WorkDir:    root,
		Config:     cfg,
		Console:    c,
		HTTPClient: newHTTPClient(),
		Tool:       &Hdiutil{Binary: cfg.Hdiutil(), Console: c},
		Host:       systemHost{VersionPlist: cfg.SystemVersionPlist()},
		Now:        time.Now,
	}
	e.NewIndex = func() xref.Index {
		s := xref.NewStore(c.Out)
		if c.Debug {
			s.Debugf = c.Debugf
		}
		return s
	}
	e.Builder = &planBuilder{Console: c}
	return e
}

func (e *Env) newObjectStore(ctx context.Context) (ObjectStore, error) {
	return NewS3Store(ctx, e.Config, e.Console.Debug)
}

// Run executes one command line and returns the exit status.
func (e *Env) Run(ctx context.Context, args []string) int {
	inv, err := ParseArgs(args)
	if err != nil {
		return e.report(err)
	}
	if e.Config.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Config.Timeout())
		defer cancel()
	}

	switch inv.Kind {
	case InitCommand:
		err = e.runInit(ctx, inv)
	default:
		err = e.runProject(ctx, inv)
	}
	return e.report(err)
}

// report prints err once and picks the exit status.
func (e *Env) report(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		if usage.Msg != "" || usage.Help == HelpNone {
			e.Console.Error("%v", usage)
		}
		printHelp(e.Console.Err, e.ProgName, usage.Help)
		return ExitUsage
	}

	e.Console.Error("%v", err)
	code := exitCode(err)
	if code == ExitIndexCommand {
		printUsageShort(e.Console.Err, e.ProgName)
	}
	return code
}

// Main is the darwinbuild entry point. The environment is the working
// directory.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling\n", sig)
			cancel()
			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Println("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(5 * time.Second):
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	cfg, cfgPath, err := config.LoadDefault(os.Getenv, os.Environ())
	if err != nil {
		newConsole(false).Error("failed to load %s: %v", cfgPath, err)
		os.Exit(ExitFailure)
	}

	root, err := os.Getwd()
	if err != nil {
		newConsole(cfg.Debug()).Error("%v", err)
		os.Exit(ExitFailure)
	}

	env := NewEnv(filepath.Base(os.Args[0]), root, cfg)
	code := env.Run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
