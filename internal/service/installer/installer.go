package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
	"github.com/oshokin/binstall/internal/platform"
	"github.com/oshokin/binstall/internal/version"
)

const (
	// DefaultFileMode is the mode of installed executables.
	DefaultFileMode os.FileMode = 0o755

	// defaultDirMode is used when the bin directory has to be created.
	defaultDirMode os.FileMode = 0o755

	// defaultAttempts is the number of download attempts.
	defaultAttempts = 3

	// defaultTimeout bounds one download attempt.
	defaultTimeout = 2 * time.Minute

	// defaultInitialInterval and defaultMaxInterval shape the retry backoff: 1s, 2s, 4s...
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second

	// defaultMaxArtifactSize caps downloads at 512 MiB.
	defaultMaxArtifactSize = 512 << 20

	// defaultSelfTestTimeout bounds the `--version` smoke test.
	defaultSelfTestTimeout = 10 * time.Second
)

// PlatformDetector reports the host platform.
type PlatformDetector interface {
	Detect(ctx context.Context) (*platform.Host, error)
}

// Installer installs one release on the current host.
type Installer struct {
	// table is the frozen release table.
	table *release.Table
	// detector reports the host platform.
	detector PlatformDetector
	// client performs artifact downloads.
	client *http.Client
	// binDir receives the installed executable.
	binDir string

	attempts        uint
	initialInterval time.Duration
	maxInterval     time.Duration
	maxArtifactSize int64
	selfTestTimeout time.Duration
	skipSelfTest    bool
	force           bool
	userAgent       string
}

// Option configures an Installer.
type Option func(*Installer)

// WithDetector replaces the host platform detector.
func WithDetector(detector PlatformDetector) Option {
	return func(i *Installer) {
		if detector != nil {
			i.detector = detector
		}
	}
}

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		if client != nil {
			i.client = client
		}
	}
}

// WithTimeout bounds each download attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Installer) {
		if timeout > 0 {
			i.client.Timeout = timeout
		}
	}
}

// WithAttempts sets the maximum number of download attempts.
func WithAttempts(attempts uint) Option {
	return func(i *Installer) {
		if attempts > 0 {
			i.attempts = attempts
		}
	}
}

// WithBackoff shapes the exponential delay between download attempts.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(i *Installer) {
		if initial > 0 {
			i.initialInterval = initial
		}

		if maxInterval > 0 {
			i.maxInterval = maxInterval
		}
	}
}

// WithMaxArtifactSize caps the number of bytes accepted from a download.
func WithMaxArtifactSize(size int64) Option {
	return func(i *Installer) {
		if size > 0 {
			i.maxArtifactSize = size
		}
	}
}

// WithSelfTestTimeout bounds the smoke test.
func WithSelfTestTimeout(timeout time.Duration) Option {
	return func(i *Installer) {
		if timeout > 0 {
			i.selfTestTimeout = timeout
		}
	}
}

// WithSkipSelfTest disables the smoke test.
func WithSkipSelfTest(skip bool) Option {
	return func(i *Installer) {
		i.skipSelfTest = skip
	}
}

// WithForce reinstalls even when the installed binary already matches.
func WithForce(force bool) Option {
	return func(i *Installer) {
		i.force = force
	}
}

// New creates an installer for table that installs into binDir.
func New(table *release.Table, binDir string, opts ...Option) *Installer {
	i := &Installer{
		table:           table,
		detector:        platform.NewDetector(),
		client:          &http.Client{Timeout: defaultTimeout},
		binDir:          binDir,
		attempts:        defaultAttempts,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		maxArtifactSize: defaultMaxArtifactSize,
		selfTestTimeout: defaultSelfTestTimeout,
		userAgent:       "binstall/" + version.Short(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Result summarizes a completed installation.
type Result struct {
	// Release is the installed release.
	Release release.Descriptor
	// Host is the detected platform.
	Host *platform.Host
	// Artifact is the table entry that was installed.
	Artifact release.Entry
	// Path is the installed executable.
	Path string
	// UpToDate is set when the existing binary already matched and nothing was written.
	UpToDate bool
	// VersionOutput is what the binary printed for --version, empty when skipped.
	VersionOutput string
	// Duration is the wall time of the whole pipeline.
	Duration time.Duration
}

// Run executes detect → resolve → download → verify → install → self test.
func (i *Installer) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	rel := i.table.Release()

	ctx = logger.WithKV(ctx, "release", rel.Name, "version", rel.Version)

	logger.Info(ctx, "Detecting platform")

	host, err := i.DetectPlatform(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	entry, err := i.ResolveArtifact(host.Key)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact: %w", err)
	}

	ctx = logger.WithKV(ctx, "platform", entry.Platform.String())
	logger.InfoKV(ctx, "Resolved artifact", "url", entry.URL, "sha256", entry.SHA256)

	result := &Result{
		Release:  rel,
		Host:     host,
		Artifact: entry,
		Path:     i.TargetPath(rel.Binary),
	}

	if !i.force && isCurrent(ctx, result.Path, entry.SHA256) {
		logger.InfoKV(ctx, "Installed binary already matches the release, skipping download", "path", result.Path)

		result.UpToDate = true
	} else if err = i.fetchAndInstall(ctx, entry, rel.Binary); err != nil {
		return nil, err
	}

	if i.skipSelfTest {
		logger.Info(ctx, "Self test skipped")
	} else {
		logger.Info(ctx, "Running self test")

		if result.VersionOutput, err = i.SelfTest(ctx, rel.Binary); err != nil {
			return nil, fmt.Errorf("self test: %w", err)
		}
	}

	result.Duration = time.Since(started)

	return result, nil
}

// fetchAndInstall covers the download, verification and install stages.
func (i *Installer) fetchAndInstall(ctx context.Context, entry release.Entry, name string) error {
	logger.Info(ctx, "Downloading artifact")

	data, err := i.Download(ctx, entry)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	logger.InfoKV(ctx, "Verifying checksum", "bytes", len(data))

	if err = Verify(data, entry); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if err = i.VerifySignature(ctx, data, entry); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	i.warnRunningTargets(ctx, name)

	if _, err = i.Install(ctx, data, entry, name); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	return nil
}

// DetectPlatform inspects the host and checks the table serves its OS at all.
func (i *Installer) DetectPlatform(ctx context.Context) (*platform.Host, error) {
	host, err := i.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Detected host",
		"key", host.Key.String(),
		"kernel_arch", host.KernelArch,
		"distribution", host.Platform,
		"distribution_version", host.Version)

	if !i.table.SupportsOS(host.Key.OS) {
		return nil, &release.UnsupportedPlatformError{
			OS:     host.GOOS,
			Arch:   host.GOARCH,
			Reason: fmt.Sprintf("release %s has no artifacts for %s", i.table.Release().Name, host.Key.OS),
		}
	}

	return host, nil
}

// ResolveArtifact looks the artifact up for key.
func (i *Installer) ResolveArtifact(key release.PlatformKey) (release.Entry, error) {
	return i.table.Resolve(key)
}
