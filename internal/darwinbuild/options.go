package darwinbuild

import (
	"fmt"
	"strings"
)

// Action is a set of requested build phases.
type Action uint8

const (
	ActionHeaders Action = 1 << iota
	ActionFetch
	ActionSource
	ActionLoad
	ActionLoadOnly
	ActionGroup
)

var actionNames = []struct {
	a    Action
	name string
}{
	{ActionHeaders, "headers"},
	{ActionFetch, "fetch"},
	{ActionSource, "source"},
	{ActionLoad, "load"},
	{ActionLoadOnly, "loadonly"},
	{ActionGroup, "group"},
}

// Has reports whether every action in b is set in a.
func (a Action) Has(b Action) bool { return a&b == b && b != 0 }

func (a Action) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range actionNames {
		if a.Has(n.a) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Options are the per-project modifiers. Empty strings mean unset.
type Options struct {
	NoSource bool
	NoPatch  bool
	NoLoad   bool
	LogDeps  bool
	Build    string
	Target   string
	Codesign string
}

// CommandKind distinguishes the two top-level command forms.
type CommandKind int

const (
	ProjectCommand CommandKind = iota
	InitCommand
)

// Invocation is a fully validated command line.
type Invocation struct {
	Kind    CommandKind
	Actions Action
	Options Options
	Project string
	Version string

	// InitTarget is the build number or manifest locator given to -init.
	InitTarget string
	NoDMG      bool
}

type flagKind int

const (
	flagAction flagKind = iota
	flagBool
	flagString
	flagUnsupported
	flagHelp
	flagInit
	flagNoDMG
)

type flagSpec struct {
	kind   flagKind
	action Action
	set    func(o *Options, v string)
}

var flagTable = map[string]flagSpec{
	"help":          {kind: flagHelp},
	"init":          {kind: flagInit},
	"nodmg":         {kind: flagNoDMG},
	"headers":       {kind: flagAction, action: ActionHeaders},
	"fetch":         {kind: flagAction, action: ActionFetch},
	"source":        {kind: flagAction, action: ActionSource},
	"load":          {kind: flagAction, action: ActionLoad},
	"loadonly":      {kind: flagAction, action: ActionLoadOnly},
	"group":         {kind: flagAction, action: ActionGroup},
	"nosource":      {kind: flagBool, set: func(o *Options, _ string) { o.NoSource = true }},
	"nopatch":       {kind: flagBool, set: func(o *Options, _ string) { o.NoPatch = true }},
	"noload":        {kind: flagBool, set: func(o *Options, _ string) { o.NoLoad = true }},
	"logdeps":       {kind: flagBool, set: func(o *Options, _ string) { o.LogDeps = true }},
	"build":         {kind: flagString, set: func(o *Options, v string) { o.Build = v }},
	"target":        {kind: flagString, set: func(o *Options, v string) { o.Target = v }},
	"codesign":      {kind: flagString, set: func(o *Options, v string) { o.Codesign = v }},
	"depsbuild":     {kind: flagUnsupported},
	"configuration": {kind: flagUnsupported},
}

func isFlag(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}

func flagName(tok string) string {
	if strings.HasPrefix(tok, "--") {
		return tok[2:]
	}
	return tok[1:]
}

// ParseArgs validates args (without the program name).
func ParseArgs(args []string) (*Invocation, error) {
	if len(args) == 0 {
		return nil, &UsageError{Help: HelpShort}
	}
	// -help wins over everything else on the line.
	for _, tok := range args {
		if isFlag(tok) && flagName(tok) == "help" {
			return nil, &UsageError{Help: HelpLong}
		}
	}

	inv := &Invocation{}
	var (
		initSeen    bool
		projectSeen bool // any project-only flag
		positionals []string
	)
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if !isFlag(tok) {
			positionals = append(positionals, tok)
			if len(positionals) > 2 {
				return nil, &UsageError{Msg: fmt.Sprintf("unexpected argument %q", tok), Help: HelpLong}
			}
			continue
		}

		name := flagName(tok)
		spec, ok := flagTable[name]
		if !ok {
			return nil, &UsageError{Msg: fmt.Sprintf("unknown option %s", tok), Help: HelpLong}
		}
		hasNext := i+1 < len(args)
		nextIsValue := hasNext && !isFlag(args[i+1])

		switch spec.kind {
		case flagUnsupported:
			return nil, &UsageError{Msg: fmt.Sprintf("-%s is %v", name, ErrNotSupported), Err: ErrNotSupported}
		case flagInit:
			if !nextIsValue || args[i+1] == "help" {
				return nil, &UsageError{Help: HelpInit}
			}
			i++
			inv.InitTarget = args[i]
			initSeen = true
		case flagNoDMG:
			inv.NoDMG = true
		case flagAction:
			inv.Actions |= spec.action
			projectSeen = true
		case flagBool:
			if nextIsValue {
				return nil, &UsageError{Msg: fmt.Sprintf("option -%s does not take a value (got %q)", name, args[i+1]), Help: HelpLong}
			}
			spec.set(&inv.Options, "")
			projectSeen = true
		case flagString:
			if !nextIsValue {
				return nil, &UsageError{Msg: fmt.Sprintf("option -%s requires a value", name), Help: HelpLong}
			}
			i++
			spec.set(&inv.Options, args[i])
			projectSeen = true
		}
	}

	if initSeen {
		if projectSeen || len(positionals) > 0 {
			return nil, &UsageError{Msg: "-init does not combine with other options or arguments", Help: HelpInit}
		}
		inv.Kind = InitCommand
		return inv, nil
	}
	if inv.NoDMG {
		return nil, &UsageError{Msg: "-nodmg is only valid with -init", Help: HelpInit}
	}

	if len(positionals) == 0 {
		return nil, &UsageError{Msg: "did not specify what project to build", Help: HelpShort}
	}
	inv.Project = positionals[0]
	if len(positionals) > 1 {
		inv.Version = positionals[1]
	}
	if inv.Actions == 0 {
		return nil, &UsageError{Msg: "no action specified", Help: HelpShort}
	}
	// -group expands the project into a group; it takes no other action.
	if inv.Actions.Has(ActionGroup) && inv.Actions != ActionGroup {
		return nil, &UsageError{Msg: fmt.Sprintf("-group cannot be combined with other actions (%s)", inv.Actions), Help: HelpShort}
	}
	inv.Kind = ProjectCommand
	return inv, nil
}
