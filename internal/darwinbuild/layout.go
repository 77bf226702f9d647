package darwinbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// dirPerm is owner rwx, group r-x.
const dirPerm fs.FileMode = 0o750

// EnsureLayout creates every missing directory in dirs under root. Existing
// directories are left exactly as they are.
func EnsureLayout(root string, dirs []string) error {
	for _, name := range dirs {
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		switch {
		case err == nil:
			if !info.IsDir() {
				return &NotADirectoryError{Path: path}
			}
		case errors.Is(err, fs.ErrNotExist):
			if err := newDir(path); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return nil
}

// newDir creates path with dirPerm regardless of the umask.
func newDir(path string) error {
	if err := os.Mkdir(path, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	if err := os.Chmod(path, dirPerm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	return nil
}
