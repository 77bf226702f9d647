//go:build darwin

package darwinbuild

import (
	"strings"

	"golang.org/x/sys/unix"
)

func sysctlBuildVersion() string {
	v, err := unix.Sysctl("kern.osversion")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
