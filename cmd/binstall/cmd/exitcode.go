package cmd

import (
	"errors"

	"github.com/oshokin/binstall/internal/domain/release"
)

// Process exit codes, one per failure kind.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitUnsupportedPlatform = 2
	ExitNoArtifact          = 3
	ExitNetwork             = 4
	ExitHTTPStatus          = 5
	ExitChecksumMismatch    = 6
	ExitInstallWrite        = 7
	ExitSelfTestFailed      = 8
	ExitSignature           = 9
	ExitInvalidTable        = 10
)

// ExitCode maps err onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		unsupported *release.UnsupportedPlatformError
		noArtifact  *release.NoArtifactForPlatformError
		network     *release.NetworkError
		status      *release.HTTPStatusError
		mismatch    *release.ChecksumMismatchError
		writeErr    *release.InstallWriteError
		selfTest    *release.SelfTestFailedError
		signature   *release.SignatureError
		tableErr    *release.TableError
	)

	switch {
	case errors.As(err, &unsupported):
		return ExitUnsupportedPlatform
	case errors.As(err, &noArtifact):
		return ExitNoArtifact
	case errors.As(err, &mismatch):
		return ExitChecksumMismatch
	case errors.As(err, &signature):
		return ExitSignature
	case errors.As(err, &status):
		return ExitHTTPStatus
	case errors.As(err, &network):
		return ExitNetwork
	case errors.As(err, &writeErr):
		return ExitInstallWrite
	case errors.As(err, &selfTest):
		return ExitSelfTestFailed
	case errors.As(err, &tableErr):
		return ExitInvalidTable
	default:
		return ExitFailure
	}
}
