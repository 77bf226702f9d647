//go:build !darwin

package darwinbuild

// Only Darwin kernels carry a build version.
func sysctlBuildVersion() string { return "" }
