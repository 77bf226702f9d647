package darwinbuild

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
)

type helpRow struct {
	Flag string
	Args string
	Desc string
}

var actionHelp = []helpRow{
	{"-headers", "", "Do the installhdrs phase, instead of install"},
	{"-fetch", "", "Only download necessary source and patch files"},
	{"-source", "", "Extract, patch, and stage source"},
	{"-load", "", "Populate the BuildRoot with one project"},
	{"-loadonly", "", "Only load dependencies into the build root, but don't build"},
	{"-group", "", "Build all projects in the given darwinxref group"},
}

var optionHelp = []helpRow{
	{"-nosource", "", "Do not fetch or stage source; assumes it is already in the BuildRoot"},
	{"-logdeps", "", "Log the build-time dependencies"},
	{"-nopatch", "", "Don't patch sources before building"},
	{"-noload", "", "Don't load dependencies into the build root"},
	{"-target", "<target>", "The makefile or xcode target to build"},
	{"-configuration", "<config>", "Build configuration to use (not supported yet)"},
	{"-build", "<build>", "Darwin build number to build, e.g. 8B15"},
	{"-depsbuild", "<build>", "Darwin build number to populate the BuildRoot (not supported yet)"},
	{"-codesign", "<identity>", "Sign the built root with the given CODE_SIGN_IDENTITY"},
}

// printFlagTable prints rows padded to the widest flag column.
func printFlagTable(w io.Writer, rows []helpRow) {
	maxLen := 0
	for _, r := range rows {
		length := len(r.Flag) + len(r.Args)
		if r.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, r := range rows {
		usage := r.Flag
		if r.Args != "" {
			usage += " " + r.Args
		}
		fmt.Fprint(w, "  ")
		fmt.Fprint(w, color.Bold.Sprint(r.Flag))
		if r.Args != "" {
			fmt.Fprint(w, " ")
			fmt.Fprint(w, color.Cyan.Sprint(r.Args))
		}
		pad := columnWidth - len(usage)
		if pad < 1 {
			pad = 1
		}
		fmt.Fprint(w, strings.Repeat(" ", pad))
		fmt.Fprintln(w, colInfo.Sprint(r.Desc))
	}
}

func printUsageShort(w io.Writer, prog string) {
	cPrintf(w, colSuccess, "usage: %s -init <build> [-nodmg]\n", prog)
	cPrintf(w, colSuccess, "       %s [action] [options] <project> [<version>]\n", prog)
	fmt.Fprintln(w, "actions: [-help] [-headers] [-fetch] [-source] [-load] [-loadonly] [-group]")
	fmt.Fprintln(w, "options: [-build <build>] [-target <target>] [-codesign <identity>]")
	fmt.Fprintln(w, "         [-logdeps] [-nopatch] [-noload] [-nosource]")
}

func printUsageLong(w io.Writer, prog string) {
	cPrintf(w, colNote, "darwinbuild %s (built %s)\n", version, buildDate)
	fmt.Fprintln(w)
	printUsageShort(w, prog)
	fmt.Fprintln(w)
	cPrintf(w, colInfo, "Initialize Build:\n")
	printFlagTable(w, []helpRow{{"-init", "<build>", fmt.Sprintf("Initialize a build (see '%s -init help')", prog)}})
	fmt.Fprintln(w)
	cPrintf(w, colInfo, "Actions:\n")
	printFlagTable(w, actionHelp)
	fmt.Fprintln(w)
	cPrintf(w, colInfo, "Options:\n")
	printFlagTable(w, optionHelp)
	fmt.Fprintln(w)
	cPrintf(w, colInfo, "Parameters:\n")
	printFlagTable(w, []helpRow{
		{"<project>", "", "The name of the project to build"},
		{"<version>", "", "Version of the project; defaults to the one in the current build"},
	})
}

func printInitHelp(w io.Writer, prog string) {
	cPrintf(w, colSuccess, "usage: %s -init <build> [-nodmg]\n", prog)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  <build>   a build number or a build manifest:")
	fmt.Fprintln(w, "              /dir/file.plist")
	fmt.Fprintln(w, "              http://host/dir/file.plist")
	fmt.Fprintln(w, "              s3://bucket/dir/file.plist")
	fmt.Fprintln(w, "              user@host:/dir/file.plist (not supported yet)")
	fmt.Fprintln(w, "            .gz, .xz and .zst compressed manifests are expanded")
	printFlagTable(w, []helpRow{{"-nodmg", "", "Use a regular directory for the BuildRoot instead of a sparse image"}})
}

func printHelp(w io.Writer, prog string, kind HelpKind) {
	switch kind {
	case HelpShort:
		printUsageShort(w, prog)
	case HelpLong:
		printUsageLong(w, prog)
	case HelpInit:
		printInitHelp(w, prog)
	}
}
