package installer

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/oshokin/binstall/internal/config"
	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
	"github.com/oshokin/binstall/internal/platform"
	"github.com/oshokin/binstall/internal/repository/table"
)

// Options are inputs accepted by the CLI entry points.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// Flags carries command-line overrides bound onto the settings.
	Flags *pflag.FlagSet
	// InstallerOptions are appended after the settings-derived options.
	InstallerOptions []Option
}

// Plan is the outcome of a dry run.
type Plan struct {
	Release  release.Descriptor
	Host     *platform.Host
	Artifact release.Entry
	Path     string
}

// Run loads settings and the release table, then installs the release.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "binstall")

	inst, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := inst.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Installation failed", "error", err)

		return nil, err
	}

	logger.InfoKV(ctx, "Installation completed",
		"path", result.Path,
		"up_to_date", result.UpToDate,
		"duration", result.Duration.String())

	return result, nil
}

// Resolve detects the platform and picks the artifact without downloading.
func Resolve(ctx context.Context, opts *Options) (*Plan, error) {
	ctx = logger.WithName(ctx, "binstall")

	inst, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	host, err := inst.DetectPlatform(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	entry, err := inst.ResolveArtifact(host.Key)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact: %w", err)
	}

	rel := inst.table.Release()

	return &Plan{
		Release:  rel,
		Host:     host,
		Artifact: entry,
		Path:     inst.TargetPath(rel.Binary),
	}, nil
}

// prepare builds an Installer from settings and the release table.
func prepare(ctx context.Context, opts *Options) (*Installer, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath, opts.Flags)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if lvl, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(lvl)
	}

	repo := table.NewFileRepository(cfg.TablePath)

	logger.DebugKV(ctx, "Loading release table", "path", repo.Path())

	tbl, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load release table: %w", err)
	}

	options := []Option{
		WithTimeout(cfg.Timeout),
		WithAttempts(cfg.Attempts),
		WithMaxArtifactSize(cfg.MaxArtifactSize),
		WithSelfTestTimeout(cfg.SelfTestTimeout),
		WithSkipSelfTest(cfg.SkipSelfTest),
		WithForce(cfg.Force),
	}

	return New(tbl, cfg.BinDir, append(options, opts.InstallerOptions...)...), nil
}
