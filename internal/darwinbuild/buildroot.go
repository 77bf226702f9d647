package darwinbuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

// BuildRootKind is how the BuildRoot of an environment is backed.
type BuildRootKind int

const (
	PlainDirectory BuildRootKind = iota
	SparseImage
)

func (k BuildRootKind) String() string {
	if k == SparseImage {
		return "sparse image"
	}
	return "directory"
}

// BuildRoot describes a provisioned build root. Path is always <root>/BuildRoot.
type BuildRoot struct {
	Kind           BuildRootKind
	Path           string
	ImagePath      string
	MountPath      string
	VolumeName     string
	SizeLimitBytes int64
	BandSizeBytes  int64
}

// Provisioner sets up BuildRoot either as a directory or as a mounted
// sparse bundle reached through a symlink.
type Provisioner struct {
	Tool       ImageTool
	VolumesDir string
	Now        func() time.Time
	Console    *Console
}

// VolumeName is unique per build and per hour of creation.
func VolumeName(id string, t time.Time) string {
	return fmt.Sprintf("BuildRoot_%s-%d", id, t.Unix()/3600)
}

// Provision never removes anything but a dangling BuildRoot symlink, or an
// image it created itself during a run that then failed.
func (p *Provisioner) Provision(ctx context.Context, id string, useImage bool, root string) (*BuildRoot, error) {
	br := &BuildRoot{
		Kind:      PlainDirectory,
		Path:      filepath.Join(root, BuildRootName),
		ImagePath: filepath.Join(root, StateDirName, SparseImageName),
	}

	info, err := os.Lstat(br.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !useImage {
			return br, p.makeDir(br)
		}
		if exists(br.ImagePath) {
			p.assignVolume(id, br)
			return br, p.attachAndLink(ctx, br)
		}
		return br, p.createImage(ctx, id, br)
	case err != nil:
		return nil, &ProvisionError{Op: "stat", Path: br.Path, Err: err}
	case info.IsDir():
		p.Console.Debugf("%s already exists\n", br.Path)
		return br, nil
	case info.Mode()&fs.ModeSymlink == 0:
		return nil, &ProvisionError{Op: "check", Path: br.Path, Err: errors.New("exists and is not a directory")}
	}

	target, err := os.Readlink(br.Path)
	if err != nil {
		return nil, &ProvisionError{Op: "readlink", Path: br.Path, Err: err}
	}
	if st, err := os.Stat(br.Path); err == nil {
		if !st.IsDir() {
			return nil, &ProvisionError{Op: "check", Path: br.Path, Err: fmt.Errorf("points at %s, which is not a directory", target)}
		}
		if exists(br.ImagePath) {
			br.Kind = SparseImage
			br.MountPath = target
			br.VolumeName = filepath.Base(target)
		}
		p.Console.Debugf("%s already links to %s\n", br.Path, target)
		return br, nil
	}

	// Dangling link: reattach the existing image or start over.
	if useImage && exists(br.ImagePath) {
		br.Kind = SparseImage
		br.MountPath = target
		br.VolumeName = filepath.Base(target)
		p.Console.Step("Attaching %s at %s", br.ImagePath, target)
		if err := p.Tool.Attach(ctx, br.ImagePath, target); err != nil {
			return nil, err
		}
		return br, nil
	}
	if err := os.Remove(br.Path); err != nil {
		return nil, &ProvisionError{Op: "remove", Path: br.Path, Err: err}
	}
	if !useImage {
		return br, p.makeDir(br)
	}
	return br, p.createImage(ctx, id, br)
}

func (p *Provisioner) makeDir(br *BuildRoot) error {
	if err := newDir(br.Path); err != nil {
		return &ProvisionError{Op: "create", Path: br.Path, Err: err}
	}
	return nil
}

func (p *Provisioner) assignVolume(id string, br *BuildRoot) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	volumes := p.VolumesDir
	if volumes == "" {
		volumes = config.DefaultVolumesDir
	}
	br.Kind = SparseImage
	br.VolumeName = VolumeName(id, now())
	br.MountPath = filepath.Join(volumes, br.VolumeName)
	br.SizeLimitBytes = DefaultImageSize
	br.BandSizeBytes = DefaultBandSize
}

// createImage removes the bundle again if anything fails before it is
// attached, so the next run starts from scratch.
func (p *Provisioner) createImage(ctx context.Context, id string, br *BuildRoot) (err error) {
	p.assignVolume(id, br)

	p.Console.Step("Creating sparse image %s", br.ImagePath)
	attached := false
	defer func() {
		if err != nil && !attached {
			if rmErr := os.RemoveAll(br.ImagePath); rmErr != nil {
				p.Console.Warn("could not remove %s: %v", br.ImagePath, rmErr)
			}
		}
	}()

	spec := ImageSpec{
		Path:       br.ImagePath,
		VolumeName: br.VolumeName,
		SizeBytes:  br.SizeLimitBytes,
		BandBytes:  br.BandSizeBytes,
	}
	if err := p.Tool.Create(ctx, spec); err != nil {
		return err
	}
	if err := writeBundleInfo(br.ImagePath, NewSparseBundleInfo(br.SizeLimitBytes, br.BandSizeBytes)); err != nil {
		return &ProvisionError{Op: "create", Path: br.ImagePath, Err: err}
	}
	if err := p.attach(ctx, br); err != nil {
		return err
	}
	attached = true
	return p.link(br)
}

// attachAndLink mounts an image whose BuildRoot link was never made.
func (p *Provisioner) attachAndLink(ctx context.Context, br *BuildRoot) error {
	if err := p.attach(ctx, br); err != nil {
		return err
	}
	return p.link(br)
}

func (p *Provisioner) attach(ctx context.Context, br *BuildRoot) error {
	p.Console.Step("Attaching %s at %s", br.VolumeName, br.MountPath)
	return p.Tool.Attach(ctx, br.ImagePath, br.MountPath)
}

func (p *Provisioner) link(br *BuildRoot) error {
	if err := os.Symlink(br.MountPath, br.Path); err != nil {
		return &ProvisionError{Op: "link", Path: br.Path, Err: err}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
