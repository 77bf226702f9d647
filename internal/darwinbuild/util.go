package darwinbuild

import (
	"fmt"
	"io"
	"os"
)

// color-compatible formatter (works with *color.Theme, color.RGBColor and color.Tag)
type colorPrinter interface {
	Sprintf(format string, a ...any) string
}

// Console is where every user-visible line goes. Out carries progress and
// results, Err carries diagnostics.
type Console struct {
	Out   io.Writer
	Err   io.Writer
	Debug bool
}

func newConsole(debug bool) *Console {
	return &Console{Out: os.Stdout, Err: os.Stderr, Debug: debug}
}

// cPrintf prints with a colored style or falls back to plain text when nil
func cPrintf(w io.Writer, p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Fprintf(w, format, a...)
		return
	}
	fmt.Fprint(w, p.Sprintf(format, a...))
}

// Step prints an "-> message" progress line.
func (c *Console) Step(format string, a ...any) {
	cPrintf(c.Out, colArrow, "-> ")
	cPrintf(c.Out, colSuccess, format+"\n", a...)
}

// Info prints a plain informational line.
func (c *Console) Info(format string, a ...any) {
	cPrintf(c.Out, colInfo, format+"\n", a...)
}

// Warn prints a warning line to the diagnostic stream.
func (c *Console) Warn(format string, a ...any) {
	cPrintf(c.Err, colWarn, "Warning: "+format+"\n", a...)
}

// Error prints an error line to the diagnostic stream.
func (c *Console) Error(format string, a ...any) {
	cPrintf(c.Err, colError, "Error: "+format+"\n", a...)
}

// Debugf prints debug messages when Debug is true
func (c *Console) Debugf(format string, a ...any) {
	if c == nil || !c.Debug {
		return
	}
	fmt.Fprintf(c.Err, format, a...)
}
