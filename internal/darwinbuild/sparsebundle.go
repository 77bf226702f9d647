package darwinbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"howett.net/plist"
)

const (
	DefaultImageSize = int64(1) << 40 // 1 TiB, grows on demand
	DefaultBandSize  = int64(8) << 20 // 8 MiB

	sparseBundleType  = "com.apple.diskimage.sparsebundle"
	bundleInfoVersion = "6.0"
)

// SparseBundleInfo is the Info.plist inside a .sparsebundle directory.
type SparseBundleInfo struct {
	InfoDictionaryVersion string `plist:"CFBundleInfoDictionaryVersion"`
	BandSize              int64  `plist:"band-size"`
	BackingStoreVersion   int    `plist:"bundle-backingstore-version"`
	BundleType            string `plist:"diskimage-bundle-type"`
	Size                  int64  `plist:"size"`
}

func NewSparseBundleInfo(size, band int64) SparseBundleInfo {
	return SparseBundleInfo{
		InfoDictionaryVersion: bundleInfoVersion,
		BandSize:              band,
		BackingStoreVersion:   1,
		BundleType:            sparseBundleType,
		Size:                  size,
	}
}

// Encode renders the descriptor as an XML property list.
func (s SparseBundleInfo) Encode() ([]byte, error) {
	return plist.MarshalIndent(s, plist.XMLFormat, "\t")
}

func DecodeSparseBundleInfo(data []byte) (SparseBundleInfo, error) {
	var s SparseBundleInfo
	if _, err := plist.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("invalid sparse bundle Info.plist: %w", err)
	}
	if s.BundleType != sparseBundleType {
		return s, fmt.Errorf("unexpected bundle type %q", s.BundleType)
	}
	return s, nil
}

// writeBundleInfo fills in Info.plist unless the image tool already did.
func writeBundleInfo(bundle string, info SparseBundleInfo) error {
	path := filepath.Join(bundle, "Info.plist")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := info.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(bundle, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", bundle, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
