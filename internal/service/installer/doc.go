// Package installer downloads, verifies and installs the release artifact
// matching the host platform.
//
// The pipeline runs strictly in order: detect the platform, resolve the
// artifact, download it with bounded retries, verify its SHA-256 (and an
// optional detached OpenPGP signature), install it atomically into the bin
// directory and run `<binary> --version` as a smoke test. Nothing reaches
// the target path before verification succeeds.
package installer
