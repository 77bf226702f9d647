package darwinbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// runLog appends timestamped lines to Logs/darwinbuild.log so a failed
// -init can be inspected after the terminal is gone.
type runLog struct {
	file *os.File
	now  func() time.Time
}

func openRunLog(root string, now func() time.Time) (*runLog, error) {
	path := filepath.Join(root, "Logs", LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	if now == nil {
		now = time.Now
	}
	return &runLog{file: f, now: now}, nil
}

func (l *runLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line.
func (l *runLog) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(l.file, "[%s] %s\n", l.now().Format(time.RFC3339), line)
}
