package darwinbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

// Acquirer copies a build manifest into the state directory.
type Acquirer struct {
	Client *http.Client
	// Store is created on first use of an s3:// locator when nil.
	Store    ObjectStore
	NewStore func(ctx context.Context) (ObjectStore, error)

	Overwrite bool
	Progress  bool
	Console   *Console
}

// Acquire fetches raw into destDir and returns the final path. Compressed
// sources are expanded on the fly, so the result is always the plain plist.
func (a *Acquirer) Acquire(ctx context.Context, raw, destDir string) (string, error) {
	loc := ClassifyLocator(raw)
	if loc.Kind == RemoteShellRef {
		return "", fmt.Errorf("%s: %w", raw, ErrRemoteShellUnsupported)
	}

	name := loc.ManifestName()
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive a manifest name from %s", raw)
	}
	dest := filepath.Join(destDir, name)

	if !a.Overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return dest, fmt.Errorf("%s: %w", dest, ErrDestinationExists)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", dest, err)
		}
	}

	src, size, err := a.open(ctx, loc)
	if err != nil {
		return "", err
	}
	defer src.Close()

	a.Console.Debugf("fetching %s (%s) into %s\n", raw, loc.Kind, dest)
	if err := a.store(src, size, loc, dest); err != nil {
		return "", err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", dest, err)
	}
	if !info.Mode().IsRegular() {
		return "", &NotAFileError{Path: dest}
	}
	return dest, nil
}

func (a *Acquirer) open(ctx context.Context, loc ManifestLocator) (io.ReadCloser, int64, error) {
	switch loc.Kind {
	case HTTPURL:
		client := a.Client
		if client == nil {
			client = newHTTPClient()
		}
		return openHTTP(ctx, client, loc.Raw)
	case ObjectStoreRef:
		store, err := a.objectStore(ctx)
		if err != nil {
			return nil, 0, err
		}
		return store.Open(ctx, loc.Bucket, loc.Key)
	default:
		info, err := os.Stat(loc.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("cannot read manifest %s: %w", loc.Path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, 0, &NotAFileError{Path: loc.Path}
		}
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("cannot open manifest %s: %w", loc.Path, err)
		}
		return f, info.Size(), nil
	}
}

func (a *Acquirer) objectStore(ctx context.Context) (ObjectStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	if a.NewStore == nil {
		return nil, fmt.Errorf("no object store configured")
	}
	store, err := a.NewStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store
	return store, nil
}

// store streams src into a pending file beside dest; dest only appears once
// the complete manifest has been written.
func (a *Acquirer) store(src io.Reader, size int64, loc ManifestLocator, dest string) error {
	t, err := renameio.TempFile(filepath.Dir(dest), dest)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dest, err)
	}
	defer t.Cleanup()

	if a.Progress && loc.Kind != LocalPath {
		bar := newProgressBar(os.Stderr, sizeOrUnknown(size), "Downloading "+loc.BaseName())
		defer bar.Finish()
		src = io.TeeReader(src, bar)
	}

	body, err := decodeStream(loc.BaseName(), src)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(t, body); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", loc.Raw, dest, err)
	}
	if err := t.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dest, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to move manifest into place at %s: %w", dest, err)
	}
	return nil
}

func sizeOrUnknown(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}

// ManifestSearch expands a bare build identifier into a manifest locator.
type ManifestSearch struct {
	WorkDir string
	DataDir string
	Site    string
}

// Candidates lists the locators tried for id, in order.
func (s ManifestSearch) Candidates(id string) []string {
	name := id + ".plist"
	out := []string{
		filepath.Join(s.WorkDir, name),
		filepath.Join(s.DataDir, "plists", name),
	}
	if s.Site != "" {
		out = append(out, strings.TrimRight(s.Site, "/")+"/"+name)
	}
	return out
}

// Locate returns the first local candidate that exists, or the remote site
// candidate when none does.
func (s ManifestSearch) Locate(id string) (string, error) {
	var remote string
	for _, c := range s.Candidates(id) {
		if ClassifyLocator(c).Kind != LocalPath {
			remote = c
			continue
		}
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	if remote != "" {
		return remote, nil
	}
	return "", fmt.Errorf("no manifest found for build %s (looked in %s)", id, strings.Join(s.Candidates(id), ", "))
}
