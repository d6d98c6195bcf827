package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/binstall/internal/config"
	"github.com/oshokin/binstall/internal/service/packager"
)

var (
	// packagerOptions collects the flags of `table generate`.
	packagerOptions packager.Options

	tableCmd = &cobra.Command{
		Use:   "table",
		Short: "Manage release tables",
	}

	tableGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Hash built artifacts and write a release table",
		Example: `  binstall table generate --name hello --version 2.1.0 \
    --base-url https://example.com/hello/releases/download/v2.1.0 \
    --artifact linux/amd64=dist/hello_linux_amd64 \
    --artifact darwin/all=dist/hello_darwin_all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl, err := packager.Run(cmd.Context(), &packagerOptions)
			if err != nil {
				return err
			}

			_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(),
				"Release table with %d artifacts written to %s\n", tbl.Len(), packagerOptions.Output)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := tableGenerateCmd.Flags()

	flags.StringVar(&packagerOptions.Name, "name", "", "project name")
	flags.StringVar(&packagerOptions.Version, "version", "", "semantic version of the release")
	flags.StringVar(&packagerOptions.License, "license", "", "SPDX license identifier")
	flags.StringVar(&packagerOptions.Binary, "binary", "", "executable name, defaults to the project name")
	flags.StringVar(&packagerOptions.BaseURL, "base-url", "", "folder the artifacts are published to")
	flags.StringArrayVar(&packagerOptions.Artifacts, "artifact", nil, `artifact as "os/arch=path", repeatable`)
	flags.StringVar(&packagerOptions.SigningKeyPath, "signing-key", "", "armored OpenPGP public key file")
	flags.StringVar(&packagerOptions.SignatureSuffix, "signature-suffix", "", `detached signature suffix, e.g. ".asc"`)
	flags.StringVarP(&packagerOptions.Output, "output", "o", config.DefaultTableFilename, "table file, .toml selects TOML")

	_ = tableGenerateCmd.MarkFlagRequired("name")
	_ = tableGenerateCmd.MarkFlagRequired("version")
	_ = tableGenerateCmd.MarkFlagRequired("base-url")
	_ = tableGenerateCmd.MarkFlagRequired("artifact")

	tableCmd.AddCommand(tableGenerateCmd)
	rootCmd.AddCommand(tableCmd)
}
