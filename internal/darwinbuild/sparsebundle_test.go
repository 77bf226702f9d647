package darwinbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseBundleInfoEncode(t *testing.T) {
	data, err := NewSparseBundleInfo(DefaultImageSize, DefaultBandSize).Encode()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "<key>CFBundleInfoDictionaryVersion</key>")
	assert.Contains(t, text, "<string>6.0</string>")
	assert.Contains(t, text, "<key>band-size</key>")
	assert.Contains(t, text, "<integer>8388608</integer>")
	assert.Contains(t, text, "<key>size</key>")
	assert.Contains(t, text, "<integer>1099511627776</integer>")
	assert.Contains(t, text, "<string>com.apple.diskimage.sparsebundle</string>")

	back, err := DecodeSparseBundleInfo(data)
	require.NoError(t, err)
	assert.Equal(t, NewSparseBundleInfo(DefaultImageSize, DefaultBandSize), back)
}

func TestDecodeSparseBundleInfoRejectsOtherBundles(t *testing.T) {
	_, err := DecodeSparseBundleInfo([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict><key>diskimage-bundle-type</key><string>com.example.other</string></dict></plist>`))
	require.Error(t, err)
}

func TestCreateArgs(t *testing.T) {
	args := createArgs(ImageSpec{
		Path:       "/env/.build/buildroot.sparsebundle",
		VolumeName: "BuildRoot_19A583-1",
		SizeBytes:  DefaultImageSize,
		BandBytes:  DefaultBandSize,
	})

	assert.Equal(t, "create", args[0])
	assert.Equal(t, "/env/.build/buildroot.sparsebundle", args[len(args)-1])
	assert.Subset(t, args, []string{"-size", "1073741824k", "-fs", "HFSX", "-type", "SPARSEBUNDLE", "-quiet", "-uid", "-gid", "-volname", "BuildRoot_19A583-1", "-imagekey", "sparse-band-size=16384"})
}

func TestAttachArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"attach", "-quiet", "-nobrowse", "-owners", "on", "-mountpoint", "/Volumes/BuildRoot_19A583-1", "/env/img"},
		attachArgs("/env/img", "/Volumes/BuildRoot_19A583-1"))
}

func TestHdiutilFailureCarriesStderr(t *testing.T) {
	script := filepath.Join(t.TempDir(), "hdiutil")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'hdiutil: create failed - No space left on device' >&2\nexit 1\n"), 0o755))

	h := &Hdiutil{Binary: script, Console: quietConsole()}
	err := h.Create(context.Background(), ImageSpec{Path: "/tmp/x.sparsebundle", VolumeName: "v", SizeBytes: DefaultImageSize, BandBytes: DefaultBandSize})

	var pe *ProvisionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "create", pe.Op)
	assert.Contains(t, err.Error(), "No space left on device")
}

func TestHdiutilMissingBinary(t *testing.T) {
	h := &Hdiutil{Binary: filepath.Join(t.TempDir(), "no-hdiutil"), Console: quietConsole()}
	err := h.Attach(context.Background(), "/tmp/x.sparsebundle", "/tmp/mnt")

	var pe *ProvisionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "attach", pe.Op)
}
