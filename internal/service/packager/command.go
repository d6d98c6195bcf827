package packager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/binstall/internal/config"
	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
	"github.com/oshokin/binstall/internal/repository/table"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Name, Version, License and Binary describe the release.
	Name    string
	Version string
	License string
	Binary  string
	// BaseURL is the folder the artifacts will be uploaded to.
	BaseURL string
	// Artifacts are "os/arch=path" pairs naming the local build of each platform.
	Artifacts []string
	// SigningKeyPath optionally points to an armored OpenPGP public key.
	SigningKeyPath string
	// SignatureSuffix, e.g. ".asc", marks each artifact as having a detached
	// signature published next to it.
	SignatureSuffix string
	// Output is where the table is written; the extension selects the format.
	Output string
}

var (
	errBaseURLRequired   = errors.New("base url is required")
	errInvalidArtifact   = errors.New(`artifact must look like "os/arch=path"`)
	errArtifactsRequired = errors.New("at least one artifact is required")
)

// Run hashes the artifacts and writes the release table.
func Run(ctx context.Context, opts *Options) (*release.Table, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "packager")

	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errBaseURLRequired
	}

	if len(opts.Artifacts) == 0 {
		return nil, errArtifactsRequired
	}

	descriptor := release.Descriptor{
		Name:    opts.Name,
		Version: opts.Version,
		License: opts.License,
		Binary:  opts.Binary,
	}

	if opts.SigningKeyPath != "" {
		key, err := os.ReadFile(filepath.Clean(opts.SigningKeyPath))
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}

		descriptor.SigningKey = string(key)
	}

	logger.Info(ctx, "Preparing release table")

	entries := make([]release.Entry, 0, len(opts.Artifacts))
	files := make([]string, 0, len(opts.Artifacts))

	for _, spec := range opts.Artifacts {
		entry, path, err := describeArtifact(opts.BaseURL, spec)
		if err != nil {
			return nil, err
		}

		if opts.SignatureSuffix != "" {
			entry.SignatureURL = entry.URL + opts.SignatureSuffix
		}

		logger.DebugKV(ctx, "Hashed artifact", "path", path, "platform", entry.Platform.String(), "sha256", entry.SHA256)

		entries = append(entries, entry)
		files = append(files, path)
	}

	tbl, err := release.NewTable(descriptor, entries)
	if err != nil {
		return nil, err
	}

	output := opts.Output
	if output == "" {
		output = config.DefaultTableFilename
	}

	logger.InfoKV(ctx, "Saving release table", "path", output)

	if err = table.NewFileRepository(output).Save(ctx, tbl); err != nil {
		return nil, err
	}

	printNextSteps(ctx, opts, files)

	return tbl, nil
}

// describeArtifact parses "os/arch=path", hashes the file and derives its URL.
func describeArtifact(baseURL, spec string) (release.Entry, string, error) {
	platformSpec, path, ok := strings.Cut(spec, "=")
	if !ok || path == "" {
		return release.Entry{}, "", fmt.Errorf("%q: %w", spec, errInvalidArtifact)
	}

	osName, archName, ok := strings.Cut(platformSpec, "/")
	if !ok {
		return release.Entry{}, "", fmt.Errorf("%q: %w", spec, errInvalidArtifact)
	}

	key, err := release.ParsePlatformKey(osName, archName)
	if err != nil {
		return release.Entry{}, "", fmt.Errorf("%q: %w", spec, err)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return release.Entry{}, "", fmt.Errorf("read artifact: %w", err)
	}

	artifactURL, err := url.JoinPath(baseURL, filepath.Base(path))
	if err != nil {
		return release.Entry{}, "", fmt.Errorf("artifact url: %w", err)
	}

	return release.Entry{
		Platform: key,
		URL:      artifactURL,
		SHA256:   release.Digest(contents),
	}, path, nil
}

// printNextSteps logs which files have to be published and where.
func printNextSteps(ctx context.Context, opts *Options, files []string) {
	var builder strings.Builder

	builder.WriteString("Upload the following files to ")
	builder.WriteString(opts.BaseURL)
	builder.WriteString(":\n")

	for i, name := range files {
		if i > 0 {
			builder.WriteString(",\n")
		}

		builder.WriteString(filepath.Base(name))

		if opts.SignatureSuffix != "" {
			builder.WriteString(" (with ")
			builder.WriteString(filepath.Base(name) + opts.SignatureSuffix)
			builder.WriteString(")")
		}
	}

	builder.WriteString("\nThe URLs must stay immutable: replacing a published file breaks its digest.")

	logger.Info(ctx, builder.String())
}
