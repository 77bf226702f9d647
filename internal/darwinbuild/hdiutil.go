package darwinbuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ImageSpec describes a sparse bundle to create.
type ImageSpec struct {
	Path       string
	VolumeName string
	SizeBytes  int64
	BandBytes  int64
}

// ImageTool creates and attaches disk images.
type ImageTool interface {
	Create(ctx context.Context, spec ImageSpec) error
	Attach(ctx context.Context, image, mountPoint string) error
}

// Hdiutil drives the macOS hdiutil binary.
type Hdiutil struct {
	Binary  string
	Console *Console
}

func createArgs(spec ImageSpec) []string {
	return []string{
		"create",
		"-size", strconv.FormatInt(spec.SizeBytes/1024, 10) + "k",
		"-fs", "HFSX",
		"-type", "SPARSEBUNDLE",
		"-quiet",
		"-uid", strconv.Itoa(os.Getuid()),
		"-gid", strconv.Itoa(os.Getgid()),
		"-volname", spec.VolumeName,
		"-imagekey", "sparse-band-size=" + strconv.FormatInt(spec.BandBytes/512, 10),
		spec.Path,
	}
}

func attachArgs(image, mountPoint string) []string {
	return []string{"attach", "-quiet", "-nobrowse", "-owners", "on", "-mountpoint", mountPoint, image}
}

func (h *Hdiutil) Create(ctx context.Context, spec ImageSpec) error {
	return h.run(ctx, "create", spec.Path, createArgs(spec))
}

func (h *Hdiutil) Attach(ctx context.Context, image, mountPoint string) error {
	return h.run(ctx, "attach", image, attachArgs(image, mountPoint))
}

func (h *Hdiutil) run(ctx context.Context, op, path string, args []string) error {
	bin := h.Binary
	if bin == "" {
		bin = "hdiutil"
	}
	var stderr bytes.Buffer
	cmd := exec.Command(bin, args...)
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := NewExecutor(ctx, h.Console).Run(cmd); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &ProvisionError{Op: op, Path: path, Err: err}
	}
	return nil
}
