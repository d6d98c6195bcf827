package installer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/platform"
)

// demoScript is a runnable artifact answering --version.
const demoScript = "#!/bin/sh\necho \"demo version 1.0.0\"\n"

type fakeDetector struct {
	goos, goarch string
}

func (d fakeDetector) Detect(context.Context) (*platform.Host, error) {
	key, err := release.ParsePlatformKey(d.goos, d.goarch)
	if err != nil {
		return nil, &release.UnsupportedPlatformError{OS: d.goos, Arch: d.goarch, Reason: err.Error()}
	}

	return &platform.Host{Key: key, GOOS: d.goos, GOARCH: d.goarch}, nil
}

// artifactServer serves body at /artifact and counts requests.
type artifactServer struct {
	*httptest.Server

	hits atomic.Int32
}

func newArtifactServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, hit int32)) *artifactServer {
	t.Helper()

	s := new(artifactServer)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, s.hits.Add(1))
	}))
	t.Cleanup(s.Close)

	return s
}

func serveBytes(body []byte) func(http.ResponseWriter, *http.Request, int32) {
	return func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write(body)
	}
}

func newTable(t *testing.T, digest string, urls map[release.PlatformKey]string) *release.Table {
	t.Helper()

	entries := make([]release.Entry, 0, len(urls))
	for key, url := range urls {
		entries = append(entries, release.Entry{Platform: key, URL: url, SHA256: digest})
	}

	tbl, err := release.NewTable(release.Descriptor{Name: "demo", Version: "1.0.0", License: "MIT"}, entries)
	require.NoError(t, err)

	return tbl
}

func linuxAMD64() release.PlatformKey {
	return release.PlatformKey{OS: release.OSLinux, Arch: release.ArchAMD64}
}

func fastOptions(goos, goarch string) []Option {
	return []Option{
		WithDetector(fakeDetector{goos: goos, goarch: goarch}),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script artifacts need a POSIX host")
	}
}

// TestRun_InstallsAndSelfTests covers the linux/amd64 happy path end to end.
// Tests that execute installed binaries run sequentially.
func TestRun_InstallsAndSelfTests(t *testing.T) {
	skipOnWindows(t)

	body := []byte(demoScript)
	server := newArtifactServer(t, serveBytes(body))
	tbl := newTable(t, release.Digest(body), map[release.PlatformKey]string{
		linuxAMD64(): server.URL + "/demo_linux_amd64",
	})

	binDir := filepath.Join(t.TempDir(), "bin")
	inst := New(tbl, binDir, fastOptions("linux", "amd64")...)

	result, err := inst.Run(context.Background())
	require.NoError(t, err)
	require.False(t, result.UpToDate)
	require.Equal(t, filepath.Join(binDir, "demo"), result.Path)
	require.Equal(t, "demo version 1.0.0", result.VersionOutput)
	require.EqualValues(t, 1, server.hits.Load())

	info, err := os.Stat(result.Path)
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o111, "installed file must be executable")

	// A second run finds the binary current and does not download again.
	result, err = inst.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.UpToDate)
	require.EqualValues(t, 1, server.hits.Load())

	// Force downloads and reinstalls anyway.
	result, err = New(tbl, binDir, append(fastOptions("linux", "amd64"), WithForce(true))...).Run(context.Background())
	require.NoError(t, err)
	require.False(t, result.UpToDate)
	require.EqualValues(t, 2, server.hits.Load())
}

// TestSelfTest_NonZeroExit reports the exit status of a failing binary.
func TestSelfTest_NonZeroExit(t *testing.T) {
	skipOnWindows(t)

	body := []byte("#!/bin/sh\necho broken >&2\nexit 3\n")
	tbl := newTable(t, release.Digest(body), map[release.PlatformKey]string{
		linuxAMD64(): "https://example.com/demo",
	})

	inst := New(tbl, t.TempDir(), fastOptions("linux", "amd64")...)
	entry, err := inst.ResolveArtifact(linuxAMD64())
	require.NoError(t, err)

	_, err = inst.Install(context.Background(), body, entry, "demo")
	require.NoError(t, err)

	_, err = inst.SelfTest(context.Background(), "demo")

	var selfTestErr *release.SelfTestFailedError
	require.ErrorAs(t, err, &selfTestErr)
	require.Equal(t, 3, selfTestErr.ExitCode)
	require.Contains(t, selfTestErr.Output, "broken")
}

// TestSelfTest_MissingBinary fails without an installed executable.
func TestSelfTest_MissingBinary(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, release.Digest(nil), map[release.PlatformKey]string{linuxAMD64(): "https://example.com/demo"})
	inst := New(tbl, t.TempDir())

	_, err := inst.SelfTest(context.Background(), "demo")

	var selfTestErr *release.SelfTestFailedError
	require.ErrorAs(t, err, &selfTestErr)
	require.Equal(t, -1, selfTestErr.ExitCode)
}

// TestRun_NoArtifactForARM32 checks a 32-bit ARM host against a 64-bit-only table.
func TestRun_NoArtifactForARM32(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, serveBytes([]byte(demoScript)))
	tbl := newTable(t, release.Digest([]byte(demoScript)), map[release.PlatformKey]string{
		{OS: release.OSLinux, Arch: release.ArchARM64}: server.URL + "/demo_linux_arm64",
		{OS: release.OSMacOS, Arch: release.ArchARM64}: server.URL + "/demo_darwin_arm64",
	})

	binDir := t.TempDir()
	_, err := New(tbl, binDir, fastOptions("linux", "arm")...).Run(context.Background())

	var missing *release.NoArtifactForPlatformError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, release.PlatformKey{OS: release.OSLinux, Arch: release.ArchARM}, missing.Key)
	require.Contains(t, missing.Error(), "64-bit builds only for linux")
	require.Zero(t, server.hits.Load(), "no download may be attempted")

	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRun_UnsupportedOS rejects hosts whose OS the table does not serve.
func TestRun_UnsupportedOS(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, release.Digest(nil), map[release.PlatformKey]string{linuxAMD64(): "https://example.com/demo"})

	for _, detector := range []fakeDetector{{"windows", "amd64"}, {"plan9", "amd64"}} {
		_, err := New(tbl, t.TempDir(), WithDetector(detector)).Run(context.Background())

		var unsupported *release.UnsupportedPlatformError
		require.ErrorAs(t, err, &unsupported)
		require.Equal(t, detector.goos, unsupported.OS)
	}
}

// TestRun_ChecksumMismatchLeavesTargetUnchanged checks tampered content never lands.
func TestRun_ChecksumMismatchLeavesTargetUnchanged(t *testing.T) {
	t.Parallel()

	expected := []byte(demoScript)
	server := newArtifactServer(t, serveBytes([]byte("#!/bin/sh\necho tampered\n")))
	tbl := newTable(t, release.Digest(expected), map[release.PlatformKey]string{
		linuxAMD64(): server.URL + "/demo_linux_amd64",
	})

	binDir := t.TempDir()
	target := filepath.Join(binDir, executableName("demo"))
	previous := []byte("previous install")
	require.NoError(t, os.WriteFile(target, previous, DefaultFileMode))

	_, err := New(tbl, binDir, fastOptions("linux", "amd64")...).Run(context.Background())

	var mismatch *release.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, release.Digest(expected), mismatch.Expected)
	require.Equal(t, release.Digest([]byte("#!/bin/sh\necho tampered\n")), mismatch.Actual)
	require.EqualValues(t, 1, server.hits.Load(), "checksum failures are not retried")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, previous, got)

	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
}

// TestRun_TimeoutsExhaustRetries surfaces a NetworkError after three timed-out attempts.
func TestRun_TimeoutsExhaustRetries(t *testing.T) {
	t.Parallel()

	server := newArtifactServer(t, func(_ http.ResponseWriter, r *http.Request, _ int32) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	tbl := newTable(t, release.Digest(nil), map[release.PlatformKey]string{
		linuxAMD64(): server.URL + "/demo_linux_amd64",
	})

	binDir := t.TempDir()
	options := append(fastOptions("linux", "amd64"), WithTimeout(50*time.Millisecond), WithAttempts(3))

	_, err := New(tbl, binDir, options...).Run(context.Background())

	var networkErr *release.NetworkError
	require.ErrorAs(t, err, &networkErr)
	require.Equal(t, 3, networkErr.Attempts)
	require.EqualValues(t, 3, server.hits.Load())

	_, statErr := os.Stat(filepath.Join(binDir, executableName("demo")))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
