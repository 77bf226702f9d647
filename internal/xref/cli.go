package xref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

const (
	exitOK         = 0
	exitUsage      = 1
	exitFailure    = 2
	exitPluginLoad = 3
)

type cliOptions struct {
	build   string
	dbFile  string
	plugins string
	debug   bool
}

// usageError is a malformed darwinxref command line.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func readBuildFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// resolve fills unset options from the configuration and the environment
// in the working directory.
func (o *cliOptions) resolve(cfg *config.Config) {
	o.debug = cfg.Debug()
	if o.dbFile == "" {
		o.dbFile = cfg.XrefDB(".")
	}
	if o.build == "" {
		o.build = cfg.DefaultBuild()
	}
	if o.build == "" {
		o.build = readBuildFile(config.BuildFilePath("."))
	}
	if o.plugins == "" {
		dir, explicit := cfg.PluginPath()
		if _, err := os.Stat(dir); explicit || err == nil {
			o.plugins = dir
		}
	}
}

func requireCommand(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return &usageError{errors.New("no command given")}
	}
	return nil
}

// NewRootCommand builds the darwinxref command line.
func NewRootCommand(out, errOut io.Writer, cfg *config.Config) *cobra.Command {
	var opts cliOptions

	root := &cobra.Command{
		Use:   "darwinxref [-b build] [-f dbfile] [-p plugindir] <command> [args...]",
		Short: "Query and maintain the darwinbuild dependency index",
		Long: `darwinxref manages the per-build project index used by darwinbuild.
Plugins in the plugin directory add further commands.`,
		Args:          requireCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve(cfg)
			return runXref(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0], args[1:])
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		opts.resolve(cfg)
		printHelp(cmd, opts)
	})
	root.Flags().SetInterspersed(false)
	root.Flags().StringVarP(&opts.build, "build", "b", "", "build to operate on")
	root.Flags().StringVarP(&opts.dbFile, "dbfile", "f", "", "index store location")
	root.Flags().StringVarP(&opts.plugins, "plugins", "p", "", "plugin directory")
	return root
}

// printHelp lists every command the plugin directory would provide.
func printHelp(cmd *cobra.Command, opts cliOptions) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "usage: %s\n\n%s\n\n", cmd.Use, cmd.Long)

	s := NewStore(w)
	if err := s.LoadPlugins(opts.plugins); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), color.Warn.Sprintf("plugins: %v\n", err))
		_ = s.LoadPlugins("")
	}
	cmds := s.Commands()
	width := 0
	for _, c := range cmds {
		if n := len(commandLine(c)); n > width {
			width = n
		}
	}
	fmt.Fprintln(w, color.Bold.Sprint("Commands:"))
	for _, c := range cmds {
		line := commandLine(c)
		fmt.Fprintf(w, "  %s%s  %s\n", line, strings.Repeat(" ", width-len(line)), colSource(c))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.Bold.Sprint("Options:"))
	fmt.Fprint(w, cmd.Flags().FlagUsages())
}

func commandLine(c Command) string {
	if c.Usage == "" {
		return c.Name
	}
	return c.Name + " " + c.Usage
}

func colSource(c Command) string {
	if c.Source == "builtin" {
		return color.Cyan.Sprint(c.Source)
	}
	return color.Green.Sprint(filepath.Base(c.Source))
}

func runXref(ctx context.Context, out, errOut io.Writer, opts cliOptions, name string, args []string) error {
	s := NewStore(out)
	if opts.debug {
		s.Debugf = func(format string, a ...any) { fmt.Fprintf(errOut, format, a...) }
	}
	if err := s.InitStore(opts.dbFile); err != nil {
		return err
	}
	defer s.Close()

	if opts.build != "" {
		if err := s.SetCurrentBuild(opts.build); err != nil {
			return err
		}
	}
	if err := s.LoadPlugins(opts.plugins); err != nil {
		return &pluginLoadError{err}
	}
	return s.RunPluginCommand(ctx, name, args)
}

type pluginLoadError struct{ err error }

func (e *pluginLoadError) Error() string { return e.err.Error() }
func (e *pluginLoadError) Unwrap() error { return e.err }

// Main is the darwinxref entry point.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := filepath.Base(os.Args[0])
	cfg, cfgPath, err := config.LoadDefault(os.Getenv, os.Environ())
	if err != nil {
		fmt.Fprint(os.Stderr, color.Error.Sprintf("%s: failed to load %s: %v\n", name, cfgPath, err))
		os.Exit(exitFailure)
	}

	root := NewRootCommand(os.Stdout, os.Stderr, cfg)
	root.SetArgs(os.Args[1:])
	err = root.ExecuteContext(ctx)
	code := exitCodeFor(err)
	if err != nil {
		fmt.Fprint(os.Stderr, color.Error.Sprintf("%s: %v\n", name, err))
	}
	stop()
	os.Exit(code)
}

func exitCodeFor(err error) int {
	var (
		pl    *pluginLoadError
		usage *usageError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), errors.Is(err, ErrNoCommand):
		return exitUsage
	case errors.As(err, &pl):
		return exitPluginLoad
	default:
		return exitFailure
	}
}
