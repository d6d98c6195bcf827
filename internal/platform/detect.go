package platform

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/oshokin/binstall/internal/domain/release"
)

// Host describes the machine the installer runs on.
type Host struct {
	// Key is the normalized platform key used for table lookups.
	Key release.PlatformKey
	// GOOS and GOARCH are the raw runtime values.
	GOOS   string
	GOARCH string
	// KernelArch is the machine architecture reported by the kernel (uname -m).
	KernelArch string
	// Platform, Family and Version describe the distribution, when known.
	Platform string
	Family   string
	Version  string
}

// Detector inspects the host platform.
type Detector struct {
	goos   string
	goarch string

	// hostInfo is swapped in tests.
	hostInfo func(ctx context.Context) (kernelArch, platform, family, version string)
}

// Option configures a Detector.
type Option func(*Detector)

// WithRuntime overrides the GOOS/GOARCH pair, used to simulate other hosts.
func WithRuntime(goos, goarch string) Option {
	return func(d *Detector) {
		d.goos = goos
		d.goarch = goarch
	}
}

// NewDetector creates a detector for the running process.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		hostInfo: gopsutilHostInfo,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect returns the host description. It fails with
// release.UnsupportedPlatformError when the runtime OS or architecture has
// no release equivalent.
func (d *Detector) Detect(ctx context.Context) (*Host, error) {
	h := &Host{
		GOOS:   d.goos,
		GOARCH: d.goarch,
	}

	if d.hostInfo != nil {
		h.KernelArch, h.Platform, h.Family, h.Version = d.hostInfo(ctx)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	key, err := release.ParsePlatformKey(d.goos, d.goarch)
	if err != nil {
		return nil, &release.UnsupportedPlatformError{
			OS:     d.goos,
			Arch:   d.goarch,
			Reason: err.Error(),
		}
	}

	h.Key = key

	return h, nil
}

// gopsutilHostInfo collects best-effort diagnostics. Failures leave fields empty.
func gopsutilHostInfo(ctx context.Context) (kernelArch, platform, family, version string) {
	if arch, err := host.KernelArch(); err == nil {
		kernelArch = strings.TrimSpace(arch)
	}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return kernelArch, "", "", ""
	}

	return kernelArch, strings.ToLower(platform), strings.ToLower(family), version
}
