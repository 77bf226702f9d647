package darwinbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"howett.net/plist"
)

// systemHost asks the kernel first and falls back to the SystemVersion plist.
type systemHost struct {
	VersionPlist string
}

type systemVersion struct {
	ProductBuildVersion string `plist:"ProductBuildVersion"`
	ProductVersion      string `plist:"ProductVersion"`
}

func (h systemHost) BuildVersion() (string, error) {
	if b := sysctlBuildVersion(); b != "" {
		return b, nil
	}
	if h.VersionPlist == "" {
		return "", nil
	}
	data, err := os.ReadFile(h.VersionPlist)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", h.VersionPlist, err)
	}
	var sv systemVersion
	if _, err := plist.Unmarshal(data, &sv); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", h.VersionPlist, err)
	}
	return sv.ProductBuildVersion, nil
}
