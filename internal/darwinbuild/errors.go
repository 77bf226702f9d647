package darwinbuild

import (
	"errors"
	"fmt"
)

// Exit statuses returned by Main.
const (
	ExitOK           = 0
	ExitUsage        = 1 // usage, help and "not supported yet"
	ExitFailure      = 2 // layout, identifier, manifest or build root failure
	ExitPluginLoad   = 3 // the xref plugin set could not be loaded
	ExitIndexCommand = 4 // an xref command failed
)

var (
	ErrNotSupported      = errors.New("not supported yet")
	ErrNoIdentifier      = errors.New("no build identifier available")
	ErrDestinationExists = errors.New("destination already exists")

	// ErrRemoteShellUnsupported matches ErrNotSupported.
	ErrRemoteShellUnsupported = fmt.Errorf("remote shell manifests are %w", ErrNotSupported)
)

// HelpKind selects which help text a usage error prints.
type HelpKind int

const (
	HelpNone HelpKind = iota
	HelpShort
	HelpLong
	HelpInit
)

// UsageError is a malformed command line. It always terminates the program
// with ExitUsage after printing the selected help text.
type UsageError struct {
	Msg  string
	Help HelpKind
	Err  error
}

func (e *UsageError) Error() string {
	if e.Msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error { return e.Err }

// NotADirectoryError reports a layout entry that exists but is not a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("%s exists and is not a directory", e.Path)
}

// NotAFileError reports a manifest source that exists but is not a regular file.
type NotAFileError struct {
	Path string
}

func (e *NotAFileError) Error() string {
	return fmt.Sprintf("%s is not a regular file", e.Path)
}

// ProvisionError is a build root that could not be created or reused.
type ProvisionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("build root %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// IndexError is a failure of the xref collaborator.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("xref %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// StageError names the init stage that failed.
type StageError struct {
	Stage initStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// exitCode maps an error onto the documented exit statuses.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) || errors.Is(err, ErrNotSupported) {
		return ExitUsage
	}
	var idx *IndexError
	if errors.As(err, &idx) {
		switch idx.Op {
		case opLoadPlugins:
			return ExitPluginLoad
		case opLoadIndex:
			return ExitIndexCommand
		}
	}
	return ExitFailure
}
