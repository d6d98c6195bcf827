package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/binstall/internal/domain/release"
)

func stubHostInfo(context.Context) (string, string, string, string) {
	return "x86_64", "ubuntu", "debian", "24.04"
}

// TestDetector_Detect maps runtime values onto normalized keys.
func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		goos, goarch string
		want         release.PlatformKey
	}{
		{"linux", "amd64", release.PlatformKey{OS: release.OSLinux, Arch: release.ArchAMD64}},
		{"linux", "arm", release.PlatformKey{OS: release.OSLinux, Arch: release.ArchARM}},
		{"darwin", "arm64", release.PlatformKey{OS: release.OSMacOS, Arch: release.ArchARM64}},
		{"windows", "386", release.PlatformKey{OS: release.OSWindows, Arch: release.Arch386}},
	}

	for _, tc := range cases {
		detector := NewDetector(WithRuntime(tc.goos, tc.goarch))
		detector.hostInfo = stubHostInfo

		h, err := detector.Detect(context.Background())
		require.NoError(t, err)
		require.Equal(t, tc.want, h.Key)
		require.Equal(t, tc.goarch, h.GOARCH)
		require.Equal(t, "ubuntu", h.Platform)
	}
}

// TestDetector_DetectUnsupported rejects runtimes without a release equivalent.
func TestDetector_DetectUnsupported(t *testing.T) {
	t.Parallel()

	detector := NewDetector(WithRuntime("plan9", "amd64"))
	detector.hostInfo = stubHostInfo

	_, err := detector.Detect(context.Background())

	var unsupported *release.UnsupportedPlatformError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "plan9", unsupported.OS)

	detector = NewDetector(WithRuntime("linux", "riscv64"))
	detector.hostInfo = stubHostInfo

	_, err = detector.Detect(context.Background())
	require.ErrorAs(t, err, &unsupported)
}

// TestDetector_DetectRealHost runs the gopsutil path on the test machine.
func TestDetector_DetectRealHost(t *testing.T) {
	t.Parallel()

	h, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Skipf("host %s/%s has no release equivalent: %v", runtime.GOOS, runtime.GOARCH, err)
	}

	require.Equal(t, runtime.GOOS, h.GOOS)
	require.NotEmpty(t, h.Key.OS)
}
