package release

import (
	"errors"
	"fmt"
	"strings"
)

// OS is a normalized operating system name.
type OS string

// Arch is a normalized CPU architecture name.
type Arch string

// Known operating systems.
const (
	OSMacOS   OS = "macos"
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
	OSFreeBSD OS = "freebsd"
)

// Known architectures. ArchAll marks a universal artifact that runs on
// every architecture of its operating system.
const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
	ArchARM   Arch = "arm"
	Arch386   Arch = "386"
	ArchAll   Arch = "all"
)

var (
	// errUnknownOS is returned for operating system names outside the known set.
	errUnknownOS = errors.New("unknown operating system")
	// errUnknownArch is returned for architecture names outside the known set.
	errUnknownArch = errors.New("unknown architecture")
)

//nolint:gochecknoglobals // Read-only alias tables.
var (
	osAliases = map[string]OS{
		"macos":   OSMacOS,
		"darwin":  OSMacOS,
		"osx":     OSMacOS,
		"linux":   OSLinux,
		"windows": OSWindows,
		"win":     OSWindows,
		"freebsd": OSFreeBSD,
	}

	archAliases = map[string]Arch{
		"amd64":     ArchAMD64,
		"x86_64":    ArchAMD64,
		"x64":       ArchAMD64,
		"intel":     ArchAMD64,
		"arm64":     ArchARM64,
		"aarch64":   ArchARM64,
		"arm":       ArchARM,
		"armv6":     ArchARM,
		"armv7":     ArchARM,
		"armhf":     ArchARM,
		"386":       Arch386,
		"i386":      Arch386,
		"i686":      Arch386,
		"x86":       Arch386,
		"all":       ArchAll,
		"universal": ArchAll,
	}
)

// ParseOS normalizes an operating system name or alias (darwin, osx, ...).
func ParseOS(s string) (OS, error) {
	if value, ok := osAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return value, nil
	}

	return "", fmt.Errorf("%q: %w", s, errUnknownOS)
}

// ParseArch normalizes an architecture name or alias (x86_64, aarch64, ...).
func ParseArch(s string) (Arch, error) {
	if value, ok := archAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return value, nil
	}

	return "", fmt.Errorf("%q: %w", s, errUnknownArch)
}

// Is64Bit reports whether the architecture is a 64-bit one.
func (a Arch) Is64Bit() bool {
	return a == ArchAMD64 || a == ArchARM64
}

// PlatformKey identifies a deployment target.
type PlatformKey struct {
	OS   OS
	Arch Arch
}

// ParsePlatformKey builds a normalized key from raw OS and architecture names.
func ParsePlatformKey(osName, archName string) (PlatformKey, error) {
	hostOS, err := ParseOS(osName)
	if err != nil {
		return PlatformKey{}, err
	}

	arch, err := ParseArch(archName)
	if err != nil {
		return PlatformKey{}, err
	}

	return PlatformKey{OS: hostOS, Arch: arch}, nil
}

// String renders the key as "os/arch".
func (k PlatformKey) String() string {
	return string(k.OS) + "/" + string(k.Arch)
}

// Universal returns the key of the universal artifact for the same OS.
func (k PlatformKey) Universal() PlatformKey {
	return PlatformKey{OS: k.OS, Arch: ArchAll}
}
