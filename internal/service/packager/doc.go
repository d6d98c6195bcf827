// Package packager builds the release table consumed by the installer.
//
// It hashes locally built artifacts, derives their download URLs from the
// folder they will be published to, and writes the table as YAML or TOML.
package packager
