package installer

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
)

// DefaultChecksumFunction is the hash go-update checks replacements with.
const DefaultChecksumFunction = crypto.SHA256

// Install verifies data and writes it as an executable named name inside the
// bin directory, replacing any previous installation. The target path only
// ever holds a complete, verified binary.
func (i *Installer) Install(ctx context.Context, data []byte, entry release.Entry, name string) (string, error) {
	if err := Verify(data, entry); err != nil {
		return "", err
	}

	target := i.TargetPath(name)

	if err := os.MkdirAll(i.binDir, defaultDirMode); err != nil {
		return "", &release.InstallWriteError{Path: target, Err: err}
	}

	var err error

	switch _, statErr := os.Stat(target); {
	case statErr == nil:
		logger.DebugKV(ctx, "Replacing existing binary", "path", target)

		err = replace(target, data, entry.SHA256)
	case errors.Is(statErr, os.ErrNotExist):
		logger.DebugKV(ctx, "Writing new binary", "path", target)

		err = writeAtomic(target, data)
	default:
		err = statErr
	}

	if err != nil {
		return "", &release.InstallWriteError{Path: target, Err: err}
	}

	logger.InfoKV(ctx, "Installed executable", "path", target)

	return target, nil
}

// TargetPath returns where the executable named name is installed.
func (i *Installer) TargetPath(name string) string {
	return filepath.Join(i.binDir, executableName(name))
}

// replace swaps an existing binary through go-update, which stages the new
// content next to the target and renames it into place with rollback.
func replace(target string, data []byte, digest string) error {
	checksum, err := hex.DecodeString(digest)
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	return goupdate.Apply(bytes.NewReader(data), options)
}

// writeAtomic writes a fresh binary to a temporary file in the target
// directory and renames it into place.
func writeAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}

	if err = tmp.Sync(); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmpPath, DefaultFileMode); err != nil {
		return err
	}

	return os.Rename(tmpPath, target)
}

// isCurrent reports whether target exists and already hashes to digest.
// Read failures count as "not current" so the install proceeds.
func isCurrent(ctx context.Context, target, digest string) bool {
	contents, err := os.ReadFile(filepath.Clean(target))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to read installed binary", "path", target, "error", err)
		}

		return false
	}

	return release.DigestEqual(release.Digest(contents), digest)
}

// executableName appends ".exe" on Windows.
func executableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}

	return name
}
