package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/binstall/internal/logger"
)

// Config holds the installer settings.
type Config struct {
	// TablePath is the release table file (YAML or TOML).
	TablePath string `yaml:"table" mapstructure:"table"`
	// BinDir is the directory the executable is installed into.
	BinDir string `yaml:"bin_dir" mapstructure:"bin_dir"`
	// Timeout bounds a single download attempt.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Attempts is the maximum number of download attempts.
	Attempts uint `yaml:"attempts" mapstructure:"attempts"`
	// MaxArtifactSize caps the downloaded artifact size in bytes.
	MaxArtifactSize int64 `yaml:"max_artifact_size" mapstructure:"max_artifact_size"`
	// SelfTestTimeout bounds the `--version` smoke test.
	SelfTestTimeout time.Duration `yaml:"self_test_timeout" mapstructure:"self_test_timeout"`
	// SkipSelfTest disables the smoke test.
	SkipSelfTest bool `yaml:"skip_self_test" mapstructure:"skip_self_test"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// Force reinstalls even when the target already matches the table digest.
	// It is a per-run switch and is never persisted.
	Force bool `yaml:"-" mapstructure:"force"`
}

// Setting keys shared by the settings file, environment and flags.
const (
	KeyTable           = "table"
	KeyBinDir          = "bin_dir"
	KeyTimeout         = "timeout"
	KeyAttempts        = "attempts"
	KeyMaxArtifactSize = "max_artifact_size"
	KeySelfTestTimeout = "self_test_timeout"
	KeySkipSelfTest    = "skip_self_test"
	KeyLogLevel        = "log_level"
	KeyForce           = "force"
)

const (
	// DefaultConfigFilename is the settings file looked up when none is given.
	DefaultConfigFilename = "binstall-settings.yaml"

	// DefaultTableFilename is the release table looked up when none is given.
	DefaultTableFilename = "binstall-release.yaml"

	// DefaultTimeout bounds one download attempt.
	DefaultTimeout = 2 * time.Minute

	// DefaultAttempts is the number of download attempts.
	DefaultAttempts = 3

	// DefaultMaxArtifactSize is 512 MiB.
	DefaultMaxArtifactSize = 512 << 20

	// DefaultSelfTestTimeout bounds the smoke test.
	DefaultSelfTestTimeout = 10 * time.Second

	// DefaultLogLevel is used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600

	// envPrefix prefixes environment overrides, e.g. BINSTALL_BIN_DIR.
	envPrefix = "BINSTALL"
)

var (
	errConfigIsNotSet     = errors.New("configuration is not set")
	errInvalidLogLevel    = errors.New("invalid log level")
	errInvalidSize        = errors.New("max artifact size must be positive")
	errNoHomeForBinDir    = errors.New("unable to determine default bin directory")
	errBinDirNotDirectory = errors.New("bin directory path is not a directory")
)

// flagKeys maps CLI flag names onto setting keys.
//
//nolint:gochecknoglobals // Read-only lookup table.
var flagKeys = map[string]string{
	"table":             KeyTable,
	"bin-dir":           KeyBinDir,
	"timeout":           KeyTimeout,
	"attempts":          KeyAttempts,
	"self-test-timeout": KeySelfTestTimeout,
	"skip-self-test":    KeySkipSelfTest,
	"log-level":         KeyLogLevel,
	"force":             KeyForce,
}

// Load reads settings from path, environment and flags and validates them.
// An empty path means DefaultConfigFilename, which may be absent; an
// explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	switch _, err := os.Stat(path); {
	case err == nil:
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err = v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// The default settings file is optional.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTable, DefaultTableFilename)
	v.SetDefault(KeyBinDir, "")
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyAttempts, DefaultAttempts)
	v.SetDefault(KeyMaxArtifactSize, DefaultMaxArtifactSize)
	v.SetDefault(KeySelfTestTimeout, DefaultSelfTestTimeout)
	v.SetDefault(KeySkipSelfTest, false)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyForce, false)
}

// Default returns validated settings with every default applied.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.TablePath) == "" {
		cfg.TablePath = DefaultTableFilename
	}

	if cfg.BinDir == "" {
		binDir, err := DefaultBinDir()
		if err != nil {
			return err
		}

		cfg.BinDir = binDir
	}

	if info, err := os.Stat(cfg.BinDir); err == nil && !info.IsDir() {
		return fmt.Errorf("%s: %w", cfg.BinDir, errBinDirNotDirectory)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}

	if cfg.MaxArtifactSize == 0 {
		cfg.MaxArtifactSize = DefaultMaxArtifactSize
	}

	if cfg.MaxArtifactSize < 0 {
		return errInvalidSize
	}

	if cfg.SelfTestTimeout <= 0 {
		cfg.SelfTestTimeout = DefaultSelfTestTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, cfg.LogLevel)
	}

	return nil
}

// DefaultBinDir returns $XDG_BIN_HOME or ~/.local/bin.
func DefaultBinDir() (string, error) {
	if dir := os.Getenv("XDG_BIN_HOME"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoHomeForBinDir, err)
	}

	return filepath.Join(home, ".local", "bin"), nil
}
