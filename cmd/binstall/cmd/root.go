package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/binstall/internal/config"
	"github.com/oshokin/binstall/internal/logger"
	"github.com/oshokin/binstall/internal/service/installer"
	"github.com/oshokin/binstall/internal/version"
)

var errSettingsExist = errors.New("settings file already exists, use --force to overwrite")

var (
	// configPath to the optional settings file.
	configPath string

	// rootCmd installs the release described by the release table.
	rootCmd = &cobra.Command{
		Use:           "binstall",
		Short:         "Install a prebuilt release binary for this machine",
		Long:          "Detects the host platform, downloads the matching artifact, verifies its SHA-256 digest, installs it atomically and runs `<binary> --version`.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInstall,
	}

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the release (default command)",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Show which artifact would be installed without downloading it",
		Args:  cobra.NoArgs,
		RunE:  runResolve,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a settings file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
)

// Execute runs the binstall CLI and exits with a status describing the failure.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()
	if err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "binstall: %v\n", err)
	}

	logger.Sync()
	os.Exit(ExitCode(err))
}

func runInstall(cmd *cobra.Command, _ []string) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	result, err := installer.Run(ctx, &installer.Options{
		ConfigPath: configPath,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)

	return nil
}

func runResolve(cmd *cobra.Command, _ []string) error {
	plan, err := installer.Resolve(cmd.Context(), &installer.Options{
		ConfigPath: configPath,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	printPlan(cmd.OutOrStdout(), plan)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfigFilename
	if len(args) > 0 {
		path = args[0]
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if _, err = os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, errSettingsExist)
	}

	settings, err := config.Default()
	if err != nil {
		return err
	}

	if err = config.Save(path, settings); err != nil {
		return err
	}

	_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

	return nil
}

func printResult(w io.Writer, result *installer.Result) {
	title := color.New(color.FgGreen, color.Bold)
	label := color.New(color.Faint)

	if result.UpToDate {
		_, _ = title.Fprintf(w, "%s %s is already installed\n", result.Release.Name, result.Release.Version)
	} else {
		_, _ = title.Fprintf(w, "%s %s installed\n", result.Release.Name, result.Release.Version)
	}

	_, _ = label.Fprint(w, "  platform: ")
	_, _ = fmt.Fprintln(w, result.Artifact.Platform)
	_, _ = label.Fprint(w, "  path:     ")
	_, _ = fmt.Fprintln(w, result.Path)

	if result.VersionOutput != "" {
		_, _ = label.Fprint(w, "  version:  ")
		_, _ = fmt.Fprintln(w, result.VersionOutput)
	}
}

func printPlan(w io.Writer, plan *installer.Plan) {
	label := color.New(color.Faint)

	_, _ = color.New(color.Bold).Fprintf(w, "%s %s\n", plan.Release.Name, plan.Release.Version)

	rows := [][2]string{
		{"host", fmt.Sprintf("%s/%s", plan.Host.GOOS, plan.Host.GOARCH)},
		{"platform", plan.Artifact.Platform.String()},
		{"url", plan.Artifact.URL},
		{"sha256", plan.Artifact.SHA256},
		{"path", plan.Path},
	}

	if plan.Artifact.SignatureURL != "" {
		rows = append(rows, [2]string{"signature", plan.Artifact.SignatureURL})
	}

	for _, row := range rows {
		_, _ = label.Fprintf(w, "  %-10s ", row[0]+":")
		_, _ = fmt.Fprintln(w, row[1])
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("path to settings file (default %q when present)", config.DefaultConfigFilename))
	flags.StringP("table", "t", "", fmt.Sprintf("path to the release table (default %q)", config.DefaultTableFilename))
	flags.StringP("bin-dir", "b", "", "directory receiving the executable (default $XDG_BIN_HOME or ~/.local/bin)")
	flags.Duration("timeout", config.DefaultTimeout, "timeout of one download attempt")
	flags.Uint("attempts", config.DefaultAttempts, "maximum number of download attempts")
	flags.Duration("self-test-timeout", config.DefaultSelfTestTimeout, "timeout of the --version self test")
	flags.Bool("skip-self-test", false, "do not run the installed binary")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.Bool("force", false, "reinstall even if the installed binary is current, or overwrite the settings file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(installCmd, resolveCmd, configCmd)
}
