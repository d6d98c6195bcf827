package release

import (
	"fmt"
	"net/http"
	"strings"
)

// UnsupportedPlatformError reports a host that cannot be served at all:
// either its OS/arch is outside the known set or the table has no artifact
// for its operating system.
type UnsupportedPlatformError struct {
	// OS and Arch are the raw values reported by the host.
	OS   string
	Arch string
	// Reason explains what made the platform unsupported.
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s: %s", e.OS, e.Arch, e.Reason)
}

// NoArtifactForPlatformError reports a table lookup miss.
type NoArtifactForPlatformError struct {
	Key PlatformKey
	// Available lists the keys the table does provide.
	Available []PlatformKey
}

func (e *NoArtifactForPlatformError) Error() string {
	available := make([]string, 0, len(e.Available))
	for _, key := range e.Available {
		available = append(available, key.String())
	}

	message := fmt.Sprintf("no artifact for platform %s (available: %s)", e.Key, strings.Join(available, ", "))
	if e.only64BitFor() {
		message += "; this release ships 64-bit builds only for " + string(e.Key.OS)
	}

	return message
}

// only64BitFor reports a 32-bit host whose OS has only 64-bit artifacts.
func (e *NoArtifactForPlatformError) only64BitFor() bool {
	if e.Key.Arch.Is64Bit() {
		return false
	}

	var sameOS bool

	for _, key := range e.Available {
		if key.OS != e.Key.OS {
			continue
		}

		if !key.Arch.Is64Bit() {
			return false
		}

		sameOS = true
	}

	return sameOS
}

// NetworkError reports a transport failure that persisted through every attempt.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-success HTTP response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected http status %s", e.URL, e.Status)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// ChecksumMismatchError reports downloaded content whose digest differs
// from the one recorded in the table.
type ChecksumMismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected sha256 %s, got %s", e.URL, e.Expected, e.Actual)
}

// SignatureError reports a failed detached-signature check.
type SignatureError struct {
	URL string
	Err error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification for %s failed: %v", e.URL, e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// InstallWriteError reports a failure to place the artifact at its target path.
type InstallWriteError struct {
	Path string
	Err  error
}

func (e *InstallWriteError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Path, e.Err)
}

func (e *InstallWriteError) Unwrap() error {
	return e.Err
}

// SelfTestFailedError reports that the installed binary did not run cleanly
// with --version.
type SelfTestFailedError struct {
	Path     string
	ExitCode int
	Output   string
	Err      error
}

func (e *SelfTestFailedError) Error() string {
	msg := fmt.Sprintf("self test of %s failed (exit code %d): %v", e.Path, e.ExitCode, e.Err)
	if output := strings.TrimSpace(e.Output); output != "" {
		msg += ": " + output
	}

	return msg
}

func (e *SelfTestFailedError) Unwrap() error {
	return e.Err
}

// TableError reports a malformed release table rejected at construction.
type TableError struct {
	// Entry is the offending entry position, or -1 for release-level problems.
	Entry int
	Err   error
}

func (e *TableError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("invalid release table: %v", e.Err)
	}

	return fmt.Sprintf("invalid release table entry #%d: %v", e.Entry, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}
