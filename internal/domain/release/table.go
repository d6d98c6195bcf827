package release

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/blang/semver"
)

// DigestLength is the length of a hex-encoded SHA-256 digest.
const DigestLength = sha256.Size * 2

var (
	errNameRequired        = errors.New("release name is required")
	errInvalidVersion      = errors.New("release version is not a semantic version")
	errNoArtifacts         = errors.New("release has no artifacts")
	errDuplicatePlatform   = errors.New("duplicate platform")
	errInvalidURL          = errors.New("artifact url must be an absolute http(s) url")
	errInvalidDigestLength = errors.New("sha256 digest must be 64 hex characters")
	errInvalidDigestChars  = errors.New("sha256 digest contains non-hex characters")
	errSignatureWithoutKey = errors.New("signature url given but the release has no signing key")
	errInvalidBinaryName   = errors.New("binary name must be a plain file name")
)

// Descriptor describes a published release.
type Descriptor struct {
	// Name is the project name.
	Name string
	// Version is the semantic version of the release.
	Version string
	// License is the SPDX license identifier.
	License string
	// Binary is the executable name to install, defaults to Name.
	Binary string
	// SigningKey is an optional armored OpenPGP public key used to check
	// detached artifact signatures.
	SigningKey string
}

// Entry is the artifact published for one platform.
type Entry struct {
	Platform PlatformKey
	// URL is the immutable, versioned download location.
	URL string
	// SHA256 is the lower-case hex digest of the content at URL.
	SHA256 string
	// SignatureURL optionally points to a detached OpenPGP signature.
	SignatureURL string
}

// Table maps platforms to artifacts. It is immutable once built.
type Table struct {
	release Descriptor
	entries map[PlatformKey]Entry
}

// NewTable validates the release and its entries and freezes them into a Table.
func NewTable(release Descriptor, entries []Entry) (*Table, error) {
	release.Name = strings.TrimSpace(release.Name)
	if release.Name == "" {
		return nil, &TableError{Entry: -1, Err: errNameRequired}
	}

	if _, err := semver.ParseTolerant(release.Version); err != nil {
		return nil, &TableError{Entry: -1, Err: fmt.Errorf("%w: %q: %w", errInvalidVersion, release.Version, err)}
	}

	if strings.TrimSpace(release.Binary) == "" {
		release.Binary = release.Name
	}

	if err := validateBinaryName(release.Binary); err != nil {
		return nil, &TableError{Entry: -1, Err: err}
	}

	if len(entries) == 0 {
		return nil, &TableError{Entry: -1, Err: errNoArtifacts}
	}

	table := &Table{
		release: release,
		entries: make(map[PlatformKey]Entry, len(entries)),
	}

	for i, entry := range entries {
		normalized, err := normalizeEntry(entry, release.SigningKey != "")
		if err != nil {
			return nil, &TableError{Entry: i, Err: err}
		}

		if _, exists := table.entries[normalized.Platform]; exists {
			return nil, &TableError{Entry: i, Err: fmt.Errorf("%w: %s", errDuplicatePlatform, normalized.Platform)}
		}

		table.entries[normalized.Platform] = normalized
	}

	return table, nil
}

// normalizeEntry checks a single entry and lower-cases its digest.
func normalizeEntry(entry Entry, hasSigningKey bool) (Entry, error) {
	platform, err := ParsePlatformKey(string(entry.Platform.OS), string(entry.Platform.Arch))
	if err != nil {
		return Entry{}, err
	}

	entry.Platform = platform

	if err = validateURL(entry.URL); err != nil {
		return Entry{}, err
	}

	digest, err := ParseDigest(entry.SHA256)
	if err != nil {
		return Entry{}, err
	}

	entry.SHA256 = digest

	if entry.SignatureURL != "" {
		if !hasSigningKey {
			return Entry{}, errSignatureWithoutKey
		}

		if err = validateURL(entry.SignatureURL); err != nil {
			return Entry{}, err
		}
	}

	return entry, nil
}

// validateBinaryName keeps the installed executable inside the bin directory.
func validateBinaryName(name string) error {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || name == "." {
		return fmt.Errorf("%w: %q", errInvalidBinaryName, name)
	}

	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidURL, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidURL, raw)
	}

	return nil
}

// ParseDigest validates a hex SHA-256 digest and returns it in lower case.
func ParseDigest(digest string) (string, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if len(digest) != DigestLength {
		return "", fmt.Errorf("%w: got %d", errInvalidDigestLength, len(digest))
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return "", errInvalidDigestChars
	}

	return digest, nil
}

// Digest returns the lower-case hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two hex digests case-insensitively in constant time.
func DigestEqual(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Release returns the release descriptor.
func (t *Table) Release() Descriptor {
	return t.release
}

// Len returns the number of artifacts.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the entry registered for exactly this key.
func (t *Table) Lookup(key PlatformKey) (Entry, bool) {
	entry, ok := t.entries[key]

	return entry, ok
}

// Resolve returns the artifact for key, falling back to the universal
// artifact of the same OS.
func (t *Table) Resolve(key PlatformKey) (Entry, error) {
	if entry, ok := t.entries[key]; ok {
		return entry, nil
	}

	if entry, ok := t.entries[key.Universal()]; ok {
		return entry, nil
	}

	return Entry{}, &NoArtifactForPlatformError{Key: key, Available: t.Keys()}
}

// SupportsOS reports whether at least one artifact targets the operating system.
func (t *Table) SupportsOS(target OS) bool {
	for key := range t.entries {
		if key.OS == target {
			return true
		}
	}

	return false
}

// Keys returns all platform keys in a stable order.
func (t *Table) Keys() []PlatformKey {
	keys := make([]PlatformKey, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	return keys
}
