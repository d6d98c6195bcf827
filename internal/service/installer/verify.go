package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Maintained fork of x/crypto/openpgp.

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
)

var errEmptyKeyRing = errors.New("signing key contains no public keys")

// Verify checks that data hashes to the digest recorded for entry.
// Any difference is a ChecksumMismatchError; there is no soft mode.
func Verify(data []byte, entry release.Entry) error {
	actual := release.Digest(data)
	if !release.DigestEqual(actual, entry.SHA256) {
		return &release.ChecksumMismatchError{
			URL:      entry.URL,
			Expected: strings.ToLower(entry.SHA256),
			Actual:   actual,
		}
	}

	return nil
}

// VerifySignature checks the detached OpenPGP signature of data when the
// release carries a signing key and the entry a signature URL.
func (i *Installer) VerifySignature(ctx context.Context, data []byte, entry release.Entry) error {
	signingKey := i.table.Release().SigningKey

	if entry.SignatureURL == "" {
		if signingKey != "" {
			logger.WarnKV(ctx, "No signature published for this platform, relying on the checksum only")
		}

		return nil
	}

	keyRing, err := openpgp.ReadArmoredKeyRing(strings.NewReader(signingKey))
	if err != nil {
		return &release.SignatureError{URL: entry.SignatureURL, Err: fmt.Errorf("read signing key: %w", err)}
	}

	if len(keyRing) == 0 {
		return &release.SignatureError{URL: entry.SignatureURL, Err: errEmptyKeyRing}
	}

	logger.InfoKV(ctx, "Verifying signature", "url", entry.SignatureURL)

	signature, err := i.fetch(ctx, entry.SignatureURL)
	if err != nil {
		return fmt.Errorf("download signature: %w", err)
	}

	// Signatures are published either armored (.asc) or binary (.sig).
	_, err = openpgp.CheckArmoredDetachedSignature(keyRing, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(keyRing, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}

	if err != nil {
		return &release.SignatureError{URL: entry.SignatureURL, Err: err}
	}

	return nil
}
